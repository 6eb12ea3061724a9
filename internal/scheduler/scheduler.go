// internal/scheduler/scheduler.go
package scheduler

import (
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/wabroadcast-backend/internal/errors"
	"github.com/unclebandit/wabroadcast-backend/internal/model"
)

type CampaignLister interface {
	List(owner string) ([]*model.Campaign, error)
}

type CampaignStarter interface {
	Start(campaignID, actor string) error
}

// Scheduler starts ready campaigns whose scheduled time has arrived.
// Draft campaigns are never auto-started, scheduled or not.
type Scheduler struct {
	Repo   CampaignLister
	Sender CampaignStarter
	Log    zerolog.Logger

	cron *cron.Cron
}

func New(repo CampaignLister, sender CampaignStarter, log zerolog.Logger) *Scheduler {
	return &Scheduler{Repo: repo, Sender: sender, Log: log}
}

// Start begins ticking every 30 seconds.
func (s *Scheduler) Start() error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc("@every 30s", s.Tick); err != nil {
		return err
	}
	s.cron.Start()
	s.Log.Info().Msg("campaign scheduler started")
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// Tick runs one scan. Exported so tests (and an admin endpoint) can
// trigger it without waiting for cron.
func (s *Scheduler) Tick() {
	campaigns, err := s.Repo.List("")
	if err != nil {
		s.Log.Error().Err(err).Msg("scheduler: list campaigns failed")
		return
	}

	now := time.Now()
	for _, c := range campaigns {
		if c.Status != model.CampaignReady || c.ScheduledAt == nil || c.ScheduledAt.After(now) {
			continue
		}

		err := s.Sender.Start(c.ID, "scheduler")
		if err == nil {
			s.Log.Info().Str("campaign_id", c.ID).Time("scheduled_at", *c.ScheduledAt).Msg("scheduled campaign started")
			continue
		}

		var running *appErrors.ErrAlreadyRunning
		if errors.As(err, &running) {
			continue
		}

		var unavailable *appErrors.ErrChannelUnavailable
		if errors.As(err, &unavailable) {
			// Session will reconnect eventually; next tick retries.
			s.Log.Warn().Str("campaign_id", c.ID).Msg("scheduled campaign waiting for channel")
			continue
		}

		s.Log.Error().Err(err).Str("campaign_id", c.ID).Msg("scheduled campaign start failed")
	}
}
