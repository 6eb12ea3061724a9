package service

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/wabroadcast-backend/internal/activity"
	appErrors "github.com/unclebandit/wabroadcast-backend/internal/errors"
	"github.com/unclebandit/wabroadcast-backend/internal/model"
	"github.com/unclebandit/wabroadcast-backend/internal/repository"
	"github.com/unclebandit/wabroadcast-backend/internal/store"
)

func newCampaignService(t *testing.T) (*CampaignService, *repository.CampaignRepository, *repository.ListRepository) {
	t.Helper()
	s, err := store.New(t.TempDir(), "test-secret")
	require.NoError(t, err)
	campaignRecords, err := s.Collection("campaigns")
	require.NoError(t, err)
	listRecords, err := s.Collection("recipient_lists")
	require.NoError(t, err)

	campaignRepo := repository.NewCampaignRepository(campaignRecords)
	listRepo := repository.NewListRepository(listRecords)
	svc := &CampaignService{
		CampaignRepo: campaignRepo,
		ListRepo:     listRepo,
		Activity:     activity.NopSink{},
		Log:          zerolog.Nop(),
	}
	return svc, campaignRepo, listRepo
}

func validInput() CreateCampaignInput {
	return CreateCampaignInput{
		Name:      "Launch",
		CreatedBy: "alice",
		SessionID: "session-1",
		Message:   model.Message{Type: model.MessageText, Content: "Hi {{Name}}"},
		Recipients: []model.Recipient{
			{Number: "254712345678", Name: "Jane"},
		},
	}
}

func TestCreateCampaignDefaults(t *testing.T) {
	svc, repo, _ := newCampaignService(t)

	c, err := svc.CreateCampaign(validInput())
	require.NoError(t, err)

	got, err := repo.GetByID(c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignDraft, got.Status)
	assert.Equal(t, 3000, got.Settings.DelayBetweenMessages)
	assert.Equal(t, 3, got.Settings.MaxRetries)
	assert.False(t, got.Settings.RetryFailedMessages)
	assert.Equal(t, model.Statistics{Total: 1, Pending: 1}, got.Statistics)
}

func TestCreateCampaignReadyFlag(t *testing.T) {
	svc, _, _ := newCampaignService(t)

	in := validInput()
	in.Ready = true
	at := time.Now().Add(time.Hour)
	in.ScheduledAt = &at

	c, err := svc.CreateCampaign(in)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignReady, c.Status)
	require.NotNil(t, c.ScheduledAt)
}

func TestCreateCampaignValidation(t *testing.T) {
	svc, _, _ := newCampaignService(t)

	tests := []struct {
		name   string
		mutate func(*CreateCampaignInput)
		field  string
	}{
		{"empty name", func(in *CreateCampaignInput) { in.Name = "  " }, "name"},
		{"empty session", func(in *CreateCampaignInput) { in.SessionID = "" }, "session_id"},
		{"empty text content", func(in *CreateCampaignInput) { in.Message.Content = "" }, "message.content"},
		{"image without media url", func(in *CreateCampaignInput) {
			in.Message = model.Message{Type: model.MessageImage}
		}, "message.media_url"},
		{"unknown message type", func(in *CreateCampaignInput) {
			in.Message.Type = "video"
		}, "message.type"},
		{"short number", func(in *CreateCampaignInput) {
			in.Recipients = []model.Recipient{{Number: "12345"}}
		}, "recipients"},
		{"non-digit number of valid length", func(in *CreateCampaignInput) {
			in.Recipients = []model.Recipient{{Number: "12345abcde"}}
		}, "recipients"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)

			_, err := svc.CreateCampaign(in)
			var v *appErrors.ValidationError
			require.ErrorAs(t, err, &v)
			assert.Equal(t, tt.field, v.Field)
		})
	}
}

func TestCreateCampaignCanonicalizesNumbers(t *testing.T) {
	svc, repo, _ := newCampaignService(t)

	in := validInput()
	in.Recipients = []model.Recipient{{Number: "+254 712-345-678", Name: "Jane"}}

	c, err := svc.CreateCampaign(in)
	require.NoError(t, err)

	got, err := repo.GetByID(c.ID)
	require.NoError(t, err)
	assert.Equal(t, "254712345678", got.Recipients[0].Number)
}

func TestCreateCampaignFromListMarksItUsed(t *testing.T) {
	svc, repo, listRepo := newCampaignService(t)

	list := &model.RecipientList{
		Name: "Leads",
		Recipients: []model.Recipient{
			{Number: "254712345678", Name: "Jane"},
			{Number: "254723456789", Name: "Brian"},
		},
	}
	require.NoError(t, listRepo.Create(list))

	in := validInput()
	in.Recipients = nil
	in.ListID = list.ID

	c, err := svc.CreateCampaign(in)
	require.NoError(t, err)

	got, err := repo.GetByID(c.ID)
	require.NoError(t, err)
	assert.Len(t, got.Recipients, 2)

	usedList, err := listRepo.GetByID(list.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, usedList.UsageCount)
	assert.NotNil(t, usedList.LastUsed)
}

func TestCreateCampaignUnknownList(t *testing.T) {
	svc, _, _ := newCampaignService(t)

	in := validInput()
	in.Recipients = nil
	in.ListID = "missing"

	_, err := svc.CreateCampaign(in)
	assert.True(t, appErrors.IsNotFound(err))
}

func TestUpdateCampaignPartial(t *testing.T) {
	svc, repo, _ := newCampaignService(t)
	c, err := svc.CreateCampaign(validInput())
	require.NoError(t, err)

	name := "Relaunch"
	ready := true
	updated, err := svc.UpdateCampaign(c.ID, UpdateCampaignInput{Name: &name, Ready: &ready})
	require.NoError(t, err)
	assert.Equal(t, "Relaunch", updated.Name)
	assert.Equal(t, model.CampaignReady, updated.Status)

	got, err := repo.GetByID(c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Relaunch", got.Name)
	assert.Equal(t, "Hi {{Name}}", got.Message.Content, "untouched fields survive")
}

func TestUpdateCampaignRejectedWhileSending(t *testing.T) {
	svc, repo, _ := newCampaignService(t)
	c, err := svc.CreateCampaign(validInput())
	require.NoError(t, err)
	require.NoError(t, repo.UpdateStatus(c.ID, model.CampaignSending))

	name := "Relaunch"
	_, err = svc.UpdateCampaign(c.ID, UpdateCampaignInput{Name: &name})
	var v *appErrors.ValidationError
	require.ErrorAs(t, err, &v)
	assert.Equal(t, "status", v.Field)
}

func TestRenderPreview(t *testing.T) {
	svc, _, _ := newCampaignService(t)

	in := validInput()
	in.Message.Content = "Hi {{Name}} from {{Company}}"
	in.Recipients = []model.Recipient{
		{Number: "254712345678", Name: "Ann", CompanyName: "Acme"},
		{Number: "254723456789", Name: "Brian", CompanyName: "Savanna"},
	}
	c, err := svc.CreateCampaign(in)
	require.NoError(t, err)

	// Default: first recipient.
	out, err := svc.RenderPreview(c.ID, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "Hi Ann from Acme", out)

	// Explicit recipient.
	out, err = svc.RenderPreview(c.ID, "254723456789", nil)
	require.NoError(t, err)
	assert.Equal(t, "Hi Brian from Savanna", out)

	// Override template.
	override := "Bye {{Name}}"
	out, err = svc.RenderPreview(c.ID, "", &override)
	require.NoError(t, err)
	assert.Equal(t, "Bye Ann", out)

	// Unknown recipient.
	_, err = svc.RenderPreview(c.ID, "0000000000", nil)
	var v *appErrors.ValidationError
	assert.ErrorAs(t, err, &v)
}

func TestDeleteCampaign(t *testing.T) {
	svc, repo, _ := newCampaignService(t)
	c, err := svc.CreateCampaign(validInput())
	require.NoError(t, err)

	require.NoError(t, svc.DeleteCampaign(c.ID, "alice"))
	_, err = repo.GetByID(c.ID)
	assert.True(t, appErrors.IsNotFound(err))
	assert.True(t, appErrors.IsNotFound(svc.DeleteCampaign(c.ID, "alice")))
}
