// internal/model/recipient.go
package model

import "time"

type RecipientStatus string

const (
	RecipientPending RecipientStatus = "pending"
	RecipientSent    RecipientStatus = "sent"
	RecipientFailed  RecipientStatus = "failed"
	RecipientRetry   RecipientStatus = "retry"
)

// Recipient is one destination inside a campaign. Number is digits only
// (10-15), canonicalized at import time. Inside a RecipientList the
// execution fields (Status, SentAt, Error, RetryCount) stay zero.
type Recipient struct {
	Number       string            `json:"number"`
	Name         string            `json:"name,omitempty"`
	JobTitle     string            `json:"job_title,omitempty"`
	CompanyName  string            `json:"company_name,omitempty"`
	CustomFields map[string]string `json:"custom_fields,omitempty"`

	Status     RecipientStatus `json:"status,omitempty"`
	SentAt     *time.Time      `json:"sent_at,omitempty"`
	Error      string          `json:"error,omitempty"`
	RetryCount int             `json:"retry_count"`
}

// EligibleForSend reports whether the sender may attempt (re)delivery.
// Failed recipients only re-enter the loop when the campaign opts into
// automatic retries and the retry budget is not exhausted; an explicit
// MarkForRetry resets them to pending instead.
func (r Recipient) EligibleForSend(s Settings) bool {
	switch r.Status {
	case RecipientPending, RecipientRetry:
		return true
	case RecipientFailed:
		return s.RetryFailedMessages && r.RetryCount < s.MaxRetries
	}
	return false
}

// StatusBucket maps a recipient status to its statistics bucket.
// Retry counts as pending: the recipient is still owed an attempt.
func StatusBucket(st RecipientStatus) RecipientStatus {
	if st == RecipientRetry {
		return RecipientPending
	}
	return st
}
