// internal/service/sender.go
package service

import (
	"context"
	"fmt"
	"math"
	"path"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/unclebandit/wabroadcast-backend/internal/activity"
	"github.com/unclebandit/wabroadcast-backend/internal/channel"
	appErrors "github.com/unclebandit/wabroadcast-backend/internal/errors"
	"github.com/unclebandit/wabroadcast-backend/internal/events"
	"github.com/unclebandit/wabroadcast-backend/internal/model"
	"github.com/unclebandit/wabroadcast-backend/internal/sanitize"
)

type queueState string

const (
	queueRunning queueState = "running"
	queuePaused  queueState = "paused"
)

// queueEntry is the runtime-only record marking a campaign as actively
// driven. It is never persisted: a restart loses it, and the persisted
// status is reconciled at startup instead.
type queueEntry struct {
	state          queueState
	processedCount int
	startTime      time.Time
	timer          *time.Timer
}

// SenderRepo is the slice of the campaign store the sender drives.
type SenderRepo interface {
	GetByID(id string) (*model.Campaign, error)
	List(owner string) ([]*model.Campaign, error)
	UpdateStatus(id string, status model.CampaignStatus) error
	UpdateRecipientStatus(id, number string, status model.RecipientStatus, sendErr string) error
	MarkForRetry(id, number string) error
	GetPendingRecipients(id string, limit int) ([]model.Recipient, error)
}

// Sender drives campaigns through the channel one recipient at a time.
// Each running campaign is a self-rescheduling deferred task: the step
// only re-arms itself after the current attempt is recorded, so exactly
// one recipient is in flight per campaign. Campaigns sharing a channel
// session are not serialized against each other; the optional Limiter
// caps aggregate send rate across all campaigns instead.
type Sender struct {
	Repo     SenderRepo
	Channel  channel.Channel
	Activity activity.Sink
	Bus      *events.Bus
	Limiter  *rate.Limiter
	Log      zerolog.Logger

	mu     sync.Mutex
	queues map[string]*queueEntry
}

func NewSender(repo SenderRepo, ch channel.Channel, sink activity.Sink, bus *events.Bus, log zerolog.Logger) *Sender {
	return &Sender{
		Repo:     repo,
		Channel:  ch,
		Activity: sink,
		Bus:      bus,
		Log:      log,
		queues:   map[string]*queueEntry{},
	}
}

// Start begins driving a campaign. Fails when the campaign is missing,
// the channel session is disconnected, or a queue entry already exists.
func (s *Sender) Start(campaignID, actor string) error {
	c, err := s.Repo.GetByID(campaignID)
	if err != nil {
		return err
	}
	if !s.Channel.IsConnected(c.SessionID) {
		return appErrors.NewChannelUnavailable(c.SessionID)
	}

	s.mu.Lock()
	if _, exists := s.queues[campaignID]; exists {
		s.mu.Unlock()
		return appErrors.NewAlreadyRunning(campaignID)
	}
	s.queues[campaignID] = &queueEntry{state: queueRunning, startTime: time.Now()}
	s.mu.Unlock()

	if err := s.Repo.UpdateStatus(campaignID, model.CampaignSending); err != nil {
		s.teardown(campaignID)
		return err
	}

	s.Log.Info().Str("campaign_id", campaignID).Str("actor", actor).Int("recipients", c.Statistics.Total).Msg("campaign started")
	s.Activity.Record(activity.Event{
		Actor: actor, Action: "campaign_started", Subject: "campaign", SubjectID: campaignID,
		Detail: fmt.Sprintf("%d recipients", c.Statistics.Total),
	})

	s.schedule(campaignID, 0)
	return nil
}

// Pause marks the queue paused and flips the campaign status. A no-op
// when no queue entry exists.
func (s *Sender) Pause(campaignID, reason string) error {
	s.mu.Lock()
	e, ok := s.queues[campaignID]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	e.state = queuePaused
	s.mu.Unlock()

	if err := s.Repo.UpdateStatus(campaignID, model.CampaignPaused); err != nil {
		return err
	}

	s.Log.Info().Str("campaign_id", campaignID).Str("reason", reason).Msg("campaign paused")
	s.Bus.Publish(events.Event{CampaignID: campaignID, Status: "paused", Reason: reason})
	s.Activity.Record(activity.Event{
		Action: "campaign_paused", Subject: "campaign", SubjectID: campaignID, Detail: reason,
	})
	return nil
}

// Resume restarts a paused campaign. When the runtime queue survived
// (operator pause) it is flipped back to running; after a restart a new
// entry is seeded with processedCount = statistics.sent so throughput
// numbers stay sane.
func (s *Sender) Resume(campaignID, actor string) error {
	c, err := s.Repo.GetByID(campaignID)
	if err != nil {
		return err
	}
	if !s.Channel.IsConnected(c.SessionID) {
		return appErrors.NewChannelUnavailable(c.SessionID)
	}

	s.mu.Lock()
	e, ok := s.queues[campaignID]
	if ok {
		e.state = queueRunning
	} else {
		s.queues[campaignID] = &queueEntry{
			state:          queueRunning,
			processedCount: c.Statistics.Sent,
			startTime:      time.Now(),
		}
	}
	s.mu.Unlock()

	if err := s.Repo.UpdateStatus(campaignID, model.CampaignSending); err != nil {
		return err
	}

	s.Log.Info().Str("campaign_id", campaignID).Str("actor", actor).Msg("campaign resumed")
	s.Bus.Publish(events.Event{CampaignID: campaignID, Status: "resumed"})
	s.Activity.Record(activity.Event{
		Actor: actor, Action: "campaign_resumed", Subject: "campaign", SubjectID: campaignID,
	})

	s.schedule(campaignID, 0)
	return nil
}

// Stop tears the queue down and cancels the campaign.
func (s *Sender) Stop(campaignID, actor string) error {
	s.teardown(campaignID)

	if err := s.Repo.UpdateStatus(campaignID, model.CampaignCancelled); err != nil {
		return err
	}

	s.Log.Info().Str("campaign_id", campaignID).Str("actor", actor).Msg("campaign stopped")
	s.Bus.Publish(events.Event{CampaignID: campaignID, Status: "stopped"})
	s.Activity.Record(activity.Event{
		Actor: actor, Action: "campaign_stopped", Subject: "campaign", SubjectID: campaignID,
	})
	return nil
}

// RetryFailed re-queues every failed recipient that still has retry
// budget and starts the campaign if it is not already being driven.
func (s *Sender) RetryFailed(campaignID, actor string) (int, string, error) {
	c, err := s.Repo.GetByID(campaignID)
	if err != nil {
		return 0, "", err
	}

	retried := 0
	for _, rec := range c.Recipients {
		if rec.Status != model.RecipientFailed || rec.RetryCount >= c.Settings.MaxRetries {
			continue
		}
		if err := s.Repo.MarkForRetry(campaignID, rec.Number); err != nil {
			return retried, "", err
		}
		retried++
	}

	if retried == 0 {
		return 0, "no_failed_messages", nil
	}

	s.Activity.Record(activity.Event{
		Actor: actor, Action: "campaign_retry", Subject: "campaign", SubjectID: campaignID,
		Detail: fmt.Sprintf("%d recipients re-queued", retried),
	})

	s.mu.Lock()
	_, active := s.queues[campaignID]
	s.mu.Unlock()
	if !active {
		if err := s.Start(campaignID, actor); err != nil {
			return retried, "", err
		}
	}
	return retried, "retrying", nil
}

// Status is a read-only projection for dashboards; it never mutates
// campaign or queue state.
type Status struct {
	CampaignID          string               `json:"campaign_id"`
	Status              model.CampaignStatus `json:"status"`
	Active              bool                 `json:"active"`
	QueueState          string               `json:"queue_state,omitempty"`
	Processed           int                  `json:"processed"`
	Statistics          model.Statistics     `json:"statistics"`
	ProgressPercent     int                  `json:"progress_percent"`
	ThroughputPerMinute float64              `json:"throughput_per_minute"`
	StartedAt           *time.Time           `json:"started_at,omitempty"`
}

func (s *Sender) GetStatus(campaignID string) (*Status, error) {
	c, err := s.Repo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}

	st := &Status{
		CampaignID:      campaignID,
		Status:          c.Status,
		Statistics:      c.Statistics,
		ProgressPercent: progressPercent(c.Statistics),
	}

	s.mu.Lock()
	if e, ok := s.queues[campaignID]; ok {
		st.Active = true
		st.QueueState = string(e.state)
		st.Processed = e.processedCount
		started := e.startTime
		st.StartedAt = &started

		if minutes := time.Since(e.startTime).Minutes(); minutes > 0 {
			st.ThroughputPerMinute = float64(e.processedCount) / minutes
		}
	}
	s.mu.Unlock()

	return st, nil
}

// ReconcileInterrupted flips campaigns left in sending by a previous
// process into paused, so an operator has to resume them explicitly.
// Must run before the sender accepts any start calls.
func (s *Sender) ReconcileInterrupted() error {
	campaigns, err := s.Repo.List("")
	if err != nil {
		return err
	}

	for _, c := range campaigns {
		if c.Status != model.CampaignSending {
			continue
		}
		if err := s.Repo.UpdateStatus(c.ID, model.CampaignPaused); err != nil {
			return err
		}
		s.Log.Warn().Str("campaign_id", c.ID).Msg("campaign was sending at shutdown, reconciled to paused")
	}
	return nil
}

// schedule arms the next processing step. delay 0 means immediately,
// still asynchronous.
func (s *Sender) schedule(campaignID string, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.queues[campaignID]
	if !ok || e.state != queueRunning {
		return
	}
	e.timer = time.AfterFunc(delay, func() { s.step(campaignID) })
}

// step processes exactly one recipient, then re-arms itself. Pausing
// and stopping take effect here, at the boundary between recipients.
func (s *Sender) step(campaignID string) {
	s.mu.Lock()
	e, ok := s.queues[campaignID]
	if !ok || e.state != queueRunning {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	c, err := s.Repo.GetByID(campaignID)
	if err != nil {
		if appErrors.IsNotFound(err) {
			s.teardown(campaignID)
			return
		}
		s.Log.Error().Err(err).Str("campaign_id", campaignID).Msg("reload failed, retrying next step")
		s.schedule(campaignID, stepDelay(nil))
		return
	}

	if !s.Channel.IsConnected(c.SessionID) {
		_ = s.Pause(campaignID, "channel disconnected")
		return
	}

	pending, err := s.Repo.GetPendingRecipients(campaignID, 1)
	if err != nil {
		s.Log.Error().Err(err).Str("campaign_id", campaignID).Msg("pending lookup failed, retrying next step")
		s.schedule(campaignID, stepDelay(c))
		return
	}
	if len(pending) == 0 {
		s.complete(campaignID)
		return
	}

	rec := pending[0]
	s.sendOne(c, rec)

	s.mu.Lock()
	e, ok = s.queues[campaignID]
	if ok {
		e.processedCount++
	}
	s.mu.Unlock()

	s.schedule(campaignID, stepDelay(c))
}

// sendOne renders, sends and records the outcome for one recipient,
// emitting the progress event and activity record either way.
func (s *Sender) sendOne(c *model.Campaign, rec model.Recipient) {
	rendered := RenderTemplate(c.Message.Content, rec)
	payload := buildPayload(c.Message, rendered)

	if s.Limiter != nil {
		_ = s.Limiter.Wait(context.Background())
	}

	_, sendErr := s.Channel.Send(context.Background(), c.SessionID, rec.Number, payload)

	status := model.RecipientSent
	detail := ""
	if sendErr != nil {
		status = model.RecipientFailed
		detail = sendErr.Error()
		s.Log.Warn().Err(sendErr).Str("campaign_id", c.ID).Str("number", rec.Number).Msg("send failed")
	}

	if err := s.Repo.UpdateRecipientStatus(c.ID, rec.Number, status, detail); err != nil {
		s.Log.Error().Err(err).Str("campaign_id", c.ID).Str("number", rec.Number).Msg("status update failed")
	}

	fresh, err := s.Repo.GetByID(c.ID)
	if err != nil {
		fresh = c
	}

	s.Bus.Publish(events.Event{
		CampaignID: c.ID,
		Processed:  fresh.Statistics.Sent + fresh.Statistics.Failed,
		Total:      fresh.Statistics.Total,
		Recipient: &events.RecipientProgress{
			Number: rec.Number,
			Name:   rec.Name,
			Status: status,
			Error:  detail,
		},
	})

	action := "message_sent"
	if sendErr != nil {
		action = "message_failed"
	}
	s.Activity.Record(activity.Event{
		Action: action, Subject: "campaign", SubjectID: c.ID,
		Detail: fmt.Sprintf("to %s: %s", rec.Number, detail),
	})
}

// complete tears down the queue and records the final statistics. When
// the entry is already gone a concurrent Stop won the race; its
// cancelled status stands.
func (s *Sender) complete(campaignID string) {
	if !s.teardown(campaignID) {
		return
	}

	if err := s.Repo.UpdateStatus(campaignID, model.CampaignCompleted); err != nil {
		s.Log.Error().Err(err).Str("campaign_id", campaignID).Msg("completion status update failed")
		return
	}

	stats := model.Statistics{}
	if c, err := s.Repo.GetByID(campaignID); err == nil {
		stats = c.Statistics
	}

	s.Log.Info().Str("campaign_id", campaignID).Int("sent", stats.Sent).Int("failed", stats.Failed).Msg("campaign completed")
	s.Bus.Publish(events.Event{
		CampaignID: campaignID,
		Processed:  stats.Sent + stats.Failed,
		Total:      stats.Total,
		Status:     "completed",
	})
	s.Activity.Record(activity.Event{
		Action: "campaign_completed", Subject: "campaign", SubjectID: campaignID,
		Detail: fmt.Sprintf("sent=%d failed=%d total=%d", stats.Sent, stats.Failed, stats.Total),
	})
}

// teardown removes the runtime queue entry, reporting whether one
// existed.
func (s *Sender) teardown(campaignID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.queues[campaignID]
	if !ok {
		return false
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	delete(s.queues, campaignID)
	return true
}

func stepDelay(c *model.Campaign) time.Duration {
	if c == nil || c.Settings.DelayBetweenMessages <= 0 {
		return time.Second
	}
	return time.Duration(c.Settings.DelayBetweenMessages) * time.Millisecond
}

// buildPayload shapes the channel message per campaign message type.
// The rendered, HTML-stripped text becomes the body for text messages
// and the caption for media.
func buildPayload(m model.Message, rendered string) channel.Payload {
	text := sanitize.ToPlainText(rendered)
	switch m.Type {
	case model.MessageImage:
		caption := text
		if caption == "" {
			caption = m.MediaCaption
		}
		return channel.Payload{Type: "image", MediaURL: m.MediaURL, Caption: caption}
	case model.MessageDocument:
		caption := text
		if caption == "" {
			caption = m.MediaCaption
		}
		return channel.Payload{Type: "document", MediaURL: m.MediaURL, FileName: path.Base(m.MediaURL), Caption: caption}
	default:
		return channel.Payload{Type: "text", Text: text}
	}
}

func progressPercent(stats model.Statistics) int {
	if stats.Total == 0 {
		return 0
	}
	return int(math.Round(float64(stats.Sent+stats.Failed) / float64(stats.Total) * 100))
}
