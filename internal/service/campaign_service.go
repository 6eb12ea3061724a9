// internal/service/campaign_service.go
package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/unclebandit/wabroadcast-backend/internal/activity"
	appErrors "github.com/unclebandit/wabroadcast-backend/internal/errors"
	"github.com/unclebandit/wabroadcast-backend/internal/model"
	"github.com/unclebandit/wabroadcast-backend/internal/repository"
)

const (
	defaultDelayMs    = 3000
	defaultMaxRetries = 3
)

type CampaignService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	ListRepo     repository.ListRepositoryInterface
	Activity     activity.Sink
	Log          zerolog.Logger
}

type CreateCampaignInput struct {
	Name        string            `json:"name"`
	CreatedBy   string            `json:"created_by"`
	SessionID   string            `json:"session_id"`
	Message     model.Message     `json:"message"`
	Recipients  []model.Recipient `json:"recipients"`
	ListID      string            `json:"list_id,omitempty"`
	ScheduledAt *time.Time        `json:"scheduled_at,omitempty"`
	Settings    *model.Settings   `json:"settings,omitempty"`
	Ready       bool              `json:"ready"`
}

// CreateCampaign validates and persists a new campaign. Recipients come
// either inline (typically from a CSV import) or from a stored list,
// which is then marked as used.
func (s *CampaignService) CreateCampaign(in CreateCampaignInput) (*model.Campaign, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, appErrors.NewValidation("name", "must not be empty")
	}
	if strings.TrimSpace(in.SessionID) == "" {
		return nil, appErrors.NewValidation("session_id", "must not be empty")
	}
	switch in.Message.Type {
	case "", model.MessageText:
		in.Message.Type = model.MessageText
		if strings.TrimSpace(in.Message.Content) == "" {
			return nil, appErrors.NewValidation("message.content", "must not be empty")
		}
	case model.MessageImage, model.MessageDocument:
		if strings.TrimSpace(in.Message.MediaURL) == "" {
			return nil, appErrors.NewValidation("message.media_url", "required for media messages")
		}
	default:
		return nil, appErrors.NewValidation("message.type", fmt.Sprintf("unknown type %q", in.Message.Type))
	}

	recipients := in.Recipients
	if in.ListID != "" {
		list, err := s.ListRepo.GetByID(in.ListID)
		if err != nil {
			return nil, err
		}
		recipients = append(recipients, list.Recipients...)
		if err := s.ListRepo.MarkAsUsed(in.ListID); err != nil {
			return nil, err
		}
	}
	for i := range recipients {
		number, ok := canonicalizePhone(recipients[i].Number)
		if !ok {
			return nil, appErrors.NewValidation("recipients", fmt.Sprintf("invalid number %q", recipients[i].Number))
		}
		recipients[i].Number = number
	}

	settings := model.Settings{DelayBetweenMessages: defaultDelayMs, MaxRetries: defaultMaxRetries}
	if in.Settings != nil {
		settings = *in.Settings
		if settings.DelayBetweenMessages <= 0 {
			settings.DelayBetweenMessages = defaultDelayMs
		}
		if settings.MaxRetries <= 0 {
			settings.MaxRetries = defaultMaxRetries
		}
	}

	status := model.CampaignDraft
	if in.Ready {
		status = model.CampaignReady
	}

	c := &model.Campaign{
		Name:        in.Name,
		CreatedBy:   in.CreatedBy,
		ScheduledAt: in.ScheduledAt,
		Status:      status,
		SessionID:   in.SessionID,
		Message:     in.Message,
		Recipients:  recipients,
		Settings:    settings,
	}
	if err := s.CampaignRepo.Create(c); err != nil {
		return nil, err
	}

	s.Log.Info().Str("campaign_id", c.ID).Str("name", c.Name).Int("recipients", len(c.Recipients)).Msg("campaign created")
	s.Activity.Record(activity.Event{
		Actor: in.CreatedBy, Action: "campaign_created", Subject: "campaign", SubjectID: c.ID,
		Detail: fmt.Sprintf("%d recipients", len(c.Recipients)),
	})
	return c, nil
}

type UpdateCampaignInput struct {
	Name        *string         `json:"name,omitempty"`
	Message     *model.Message  `json:"message,omitempty"`
	ScheduledAt *time.Time      `json:"scheduled_at,omitempty"`
	Settings    *model.Settings `json:"settings,omitempty"`
	Ready       *bool           `json:"ready,omitempty"`
}

// UpdateCampaign applies a partial update. Campaigns being driven right
// now are not editable; pause first.
func (s *CampaignService) UpdateCampaign(id string, in UpdateCampaignInput) (*model.Campaign, error) {
	c, err := s.CampaignRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if c.Status == model.CampaignSending {
		return nil, appErrors.NewValidation("status", "campaign is sending, pause it before editing")
	}

	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return nil, appErrors.NewValidation("name", "must not be empty")
		}
		c.Name = *in.Name
	}
	if in.Message != nil {
		c.Message = *in.Message
	}
	if in.ScheduledAt != nil {
		c.ScheduledAt = in.ScheduledAt
	}
	if in.Settings != nil {
		c.Settings = *in.Settings
	}
	if in.Ready != nil {
		if *in.Ready {
			c.Status = model.CampaignReady
		} else {
			c.Status = model.CampaignDraft
		}
	}

	if err := s.CampaignRepo.Update(c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CampaignService) DeleteCampaign(id, actor string) error {
	if err := s.CampaignRepo.Delete(id); err != nil {
		return err
	}
	s.Activity.Record(activity.Event{
		Actor: actor, Action: "campaign_deleted", Subject: "campaign", SubjectID: id,
	})
	return nil
}

// RenderPreview renders the campaign template against one recipient
// (by number, or the first recipient when number is empty). An override
// template, when given, replaces the stored content for the preview.
func (s *CampaignService) RenderPreview(campaignID, number string, overrideTemplate *string) (string, error) {
	c, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return "", err
	}
	if len(c.Recipients) == 0 {
		return "", appErrors.NewValidation("recipients", "campaign has no recipients")
	}

	rec := c.Recipients[0]
	if number != "" {
		found := false
		for _, r := range c.Recipients {
			if r.Number == number {
				rec = r
				found = true
				break
			}
		}
		if !found {
			return "", appErrors.NewValidation("number", "recipient not in campaign")
		}
	}

	template := c.Message.Content
	if overrideTemplate != nil && strings.TrimSpace(*overrideTemplate) != "" {
		template = *overrideTemplate
	}
	return RenderTemplate(template, rec), nil
}
