// internal/model/campaign.go
package model

import "time"

type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignReady     CampaignStatus = "ready"
	CampaignSending   CampaignStatus = "sending"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
	CampaignCancelled CampaignStatus = "cancelled"
)

type MessageType string

const (
	MessageText     MessageType = "text"
	MessageImage    MessageType = "image"
	MessageDocument MessageType = "document"
)

// Message is the template side of a campaign: Content may contain
// {{placeholder}} tokens resolved per recipient at send time.
type Message struct {
	Type         MessageType `json:"type"`
	Content      string      `json:"content"`
	MediaURL     string      `json:"media_url,omitempty"`
	MediaCaption string      `json:"media_caption,omitempty"`
}

type Settings struct {
	DelayBetweenMessages int  `json:"delay_between_messages"` // milliseconds
	RetryFailedMessages  bool `json:"retry_failed_messages"`
	MaxRetries           int  `json:"max_retries"`
}

// Statistics is derived from recipient statuses but persisted redundantly
// for fast reads. Total == len(Recipients) and Sent+Failed+Pending == Total
// after every mutation.
type Statistics struct {
	Total   int `json:"total"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Pending int `json:"pending"`
}

type Campaign struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	CreatedBy   string         `json:"created_by"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   *time.Time     `json:"updated_at,omitempty"`
	ScheduledAt *time.Time     `json:"scheduled_at,omitempty"`
	Status      CampaignStatus `json:"status"`
	SessionID   string         `json:"session_id"`
	Message     Message        `json:"message"`
	Recipients  []Recipient    `json:"recipients"`
	Statistics  Statistics     `json:"statistics"`
	Settings    Settings       `json:"settings"`
}
