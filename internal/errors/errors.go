// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

// ErrCampaignNotFound is a sentinel error
type ErrCampaignNotFound struct {
	CampaignID string
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign %s not found", e.CampaignID)
}

func NewCampaignNotFound(id string) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// ErrListNotFound is the recipient-list counterpart
type ErrListNotFound struct {
	ListID string
}

func (e *ErrListNotFound) Error() string {
	return fmt.Sprintf("recipient list %s not found", e.ListID)
}

func NewListNotFound(id string) error {
	return &ErrListNotFound{ListID: id}
}

// ErrAlreadyRunning means a start was issued while a runtime queue entry
// for the campaign already exists.
type ErrAlreadyRunning struct {
	CampaignID string
}

func (e *ErrAlreadyRunning) Error() string {
	return fmt.Sprintf("campaign %s is already running", e.CampaignID)
}

func NewAlreadyRunning(id string) error {
	return &ErrAlreadyRunning{CampaignID: id}
}

// ErrChannelUnavailable means the channel session is missing or
// disconnected. Start/resume surface it; the processing step turns it
// into an automatic pause instead.
type ErrChannelUnavailable struct {
	SessionID string
}

func (e *ErrChannelUnavailable) Error() string {
	return fmt.Sprintf("channel session %s is not connected", e.SessionID)
}

func NewChannelUnavailable(sessionID string) error {
	return &ErrChannelUnavailable{SessionID: sessionID}
}

// ValidationError rejects malformed input before anything is persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func NewValidation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsNotFound reports whether err is a campaign or list not-found error.
func IsNotFound(err error) bool {
	var c *ErrCampaignNotFound
	var l *ErrListNotFound
	return errors.As(err, &c) || errors.As(err, &l)
}
