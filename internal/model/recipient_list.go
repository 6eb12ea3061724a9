// internal/model/recipient_list.go
package model

import "time"

// RecipientList is a reusable, execution-state-free set of recipients
// that can seed one or more campaigns.
type RecipientList struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	CreatedBy   string      `json:"created_by"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   *time.Time  `json:"updated_at,omitempty"`
	LastUsed    *time.Time  `json:"last_used,omitempty"`
	UsageCount  int         `json:"usage_count"`
	Tags        []string    `json:"tags,omitempty"`
	Recipients  []Recipient `json:"recipients"`
}
