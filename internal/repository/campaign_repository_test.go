package repository

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/wabroadcast-backend/internal/errors"
	"github.com/unclebandit/wabroadcast-backend/internal/model"
	"github.com/unclebandit/wabroadcast-backend/internal/store"
)

func newCampaignRepo(t *testing.T) *CampaignRepository {
	t.Helper()
	s, err := store.New(t.TempDir(), "test-secret")
	require.NoError(t, err)
	records, err := s.Collection("campaigns")
	require.NoError(t, err)
	return NewCampaignRepository(records)
}

func seedCampaign(t *testing.T, repo *CampaignRepository, numbers ...string) *model.Campaign {
	t.Helper()
	recipients := make([]model.Recipient, len(numbers))
	for i, n := range numbers {
		recipients[i] = model.Recipient{Number: n, Name: "Recipient " + n}
	}
	c := &model.Campaign{
		Name:      "Launch",
		CreatedBy: "alice",
		SessionID: "session-1",
		Message:   model.Message{Type: model.MessageText, Content: "Hello {{Name}}"},
		Recipients: recipients,
		Settings: model.Settings{
			DelayBetweenMessages: 1000,
			RetryFailedMessages:  true,
			MaxRetries:           3,
		},
	}
	require.NoError(t, repo.Create(c))
	return c
}

func TestCreateInitializesRecipientsAndStatistics(t *testing.T) {
	repo := newCampaignRepo(t)

	c := &model.Campaign{
		Name:    "  <b>Launch</b>  ",
		Message: model.Message{Type: model.MessageText, Content: "Hi <b>there</b><img src=x>"},
		Recipients: []model.Recipient{
			{Number: "1111111111", Status: model.RecipientSent, Error: "stale"},
			{Number: "2222222222"},
		},
	}
	require.NoError(t, repo.Create(c))
	require.NotEmpty(t, c.ID)

	got, err := repo.GetByID(c.ID)
	require.NoError(t, err)

	assert.Equal(t, model.CampaignDraft, got.Status)
	assert.Equal(t, "Launch", got.Name)
	assert.Equal(t, "Hi <b>there</b>", got.Message.Content)
	assert.Equal(t, model.Statistics{Total: 2, Pending: 2}, got.Statistics)
	for _, rec := range got.Recipients {
		assert.Equal(t, model.RecipientPending, rec.Status)
		assert.Empty(t, rec.Error)
		assert.Nil(t, rec.SentAt)
		assert.Zero(t, rec.RetryCount)
	}
}

func TestCreateDedupesRecipientsByNumber(t *testing.T) {
	repo := newCampaignRepo(t)

	c := &model.Campaign{
		Name:    "Dupes",
		Message: model.Message{Type: model.MessageText, Content: "x"},
		Recipients: []model.Recipient{
			{Number: "1111111111", Name: "First"},
			{Number: "1111111111", Name: "Second"},
			{Number: "2222222222"},
		},
	}
	require.NoError(t, repo.Create(c))

	got, err := repo.GetByID(c.ID)
	require.NoError(t, err)
	require.Len(t, got.Recipients, 2)
	assert.Equal(t, "First", got.Recipients[0].Name, "first occurrence wins")
	assert.Equal(t, model.Statistics{Total: 2, Pending: 2}, got.Statistics)
}

func TestGetByIDNotFound(t *testing.T) {
	repo := newCampaignRepo(t)

	_, err := repo.GetByID("missing")
	assert.True(t, appErrors.IsNotFound(err))
}

func TestUpdateRecipientStatusRebalancesBuckets(t *testing.T) {
	repo := newCampaignRepo(t)
	c := seedCampaign(t, repo, "1111111111", "2222222222", "3333333333")

	require.NoError(t, repo.UpdateRecipientStatus(c.ID, "1111111111", model.RecipientSent, ""))
	require.NoError(t, repo.UpdateRecipientStatus(c.ID, "2222222222", model.RecipientFailed, "timeout"))

	got, err := repo.GetByID(c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Statistics{Total: 3, Sent: 1, Failed: 1, Pending: 1}, got.Statistics)

	sent := got.Recipients[0]
	assert.Equal(t, model.RecipientSent, sent.Status)
	require.NotNil(t, sent.SentAt)
	assert.Empty(t, sent.Error)

	failed := got.Recipients[1]
	assert.Equal(t, "timeout", failed.Error)
	assert.Equal(t, 1, failed.RetryCount)
}

func TestUpdateRecipientStatusSameStatusIsNoOp(t *testing.T) {
	repo := newCampaignRepo(t)
	c := seedCampaign(t, repo, "1111111111")

	require.NoError(t, repo.UpdateRecipientStatus(c.ID, "1111111111", model.RecipientSent, ""))
	require.NoError(t, repo.UpdateRecipientStatus(c.ID, "1111111111", model.RecipientSent, ""))

	got, err := repo.GetByID(c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Statistics{Total: 1, Sent: 1}, got.Statistics)
}

func TestRepeatedFailureBurnsARetry(t *testing.T) {
	repo := newCampaignRepo(t)
	c := seedCampaign(t, repo, "1111111111")

	require.NoError(t, repo.UpdateRecipientStatus(c.ID, "1111111111", model.RecipientFailed, "first"))
	require.NoError(t, repo.UpdateRecipientStatus(c.ID, "1111111111", model.RecipientFailed, "second"))

	got, err := repo.GetByID(c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Statistics{Total: 1, Failed: 1}, got.Statistics)
	assert.Equal(t, 2, got.Recipients[0].RetryCount)
	assert.Equal(t, "second", got.Recipients[0].Error)
}

func TestUpdateRecipientStatusUnknownNumber(t *testing.T) {
	repo := newCampaignRepo(t)
	c := seedCampaign(t, repo, "1111111111")

	err := repo.UpdateRecipientStatus(c.ID, "9999999999", model.RecipientSent, "")
	var v *appErrors.ValidationError
	assert.ErrorAs(t, err, &v)
}

func TestMarkForRetry(t *testing.T) {
	repo := newCampaignRepo(t)
	c := seedCampaign(t, repo, "1111111111", "2222222222")

	require.NoError(t, repo.UpdateRecipientStatus(c.ID, "1111111111", model.RecipientFailed, "boom"))
	require.NoError(t, repo.MarkForRetry(c.ID, "1111111111"))

	// Not failed: no-op.
	require.NoError(t, repo.MarkForRetry(c.ID, "2222222222"))

	got, err := repo.GetByID(c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Statistics{Total: 2, Pending: 2}, got.Statistics)
	assert.Equal(t, model.RecipientPending, got.Recipients[0].Status)
	assert.Empty(t, got.Recipients[0].Error)
	assert.Equal(t, 2, got.Recipients[0].RetryCount)
	assert.Zero(t, got.Recipients[1].RetryCount)
}

func TestGetPendingRecipientsOrderAndEligibility(t *testing.T) {
	repo := newCampaignRepo(t)
	c := seedCampaign(t, repo, "1111111111", "2222222222", "3333333333", "4444444444")

	require.NoError(t, repo.UpdateRecipientStatus(c.ID, "1111111111", model.RecipientSent, ""))
	require.NoError(t, repo.UpdateRecipientStatus(c.ID, "2222222222", model.RecipientFailed, "boom"))

	pending, err := repo.GetPendingRecipients(c.ID, 10)
	require.NoError(t, err)
	numbers := []string{}
	for _, rec := range pending {
		numbers = append(numbers, rec.Number)
	}
	// Failed is still eligible: retries are on and the budget is not spent.
	assert.Equal(t, []string{"2222222222", "3333333333", "4444444444"}, numbers)

	pending, err = repo.GetPendingRecipients(c.ID, 1)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "2222222222", pending[0].Number)
}

func TestGetPendingRecipientsExhaustedRetryBudget(t *testing.T) {
	repo := newCampaignRepo(t)
	c := seedCampaign(t, repo, "1111111111")

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.UpdateRecipientStatus(c.ID, "1111111111", model.RecipientFailed, "boom"))
	}

	pending, err := repo.GetPendingRecipients(c.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestCloneResetsProgress(t *testing.T) {
	repo := newCampaignRepo(t)
	c := seedCampaign(t, repo, "1111111111", "2222222222")

	require.NoError(t, repo.UpdateRecipientStatus(c.ID, "1111111111", model.RecipientSent, ""))
	require.NoError(t, repo.UpdateStatus(c.ID, model.CampaignCompleted))

	clone, err := repo.Clone(c.ID, "bob")
	require.NoError(t, err)
	assert.NotEqual(t, c.ID, clone.ID)
	assert.Equal(t, "Launch (copy)", clone.Name)
	assert.Equal(t, "bob", clone.CreatedBy)
	assert.Equal(t, model.CampaignDraft, clone.Status)
	assert.Equal(t, model.Statistics{Total: 2, Pending: 2}, clone.Statistics)
	for _, rec := range clone.Recipients {
		assert.Equal(t, model.RecipientPending, rec.Status)
		assert.Nil(t, rec.SentAt)
	}

	// Source untouched.
	src, err := repo.GetByID(c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignCompleted, src.Status)
	assert.Equal(t, 1, src.Statistics.Sent)
}

func TestListNewestFirstFilteredByOwner(t *testing.T) {
	repo := newCampaignRepo(t)

	a := seedCampaign(t, repo, "1111111111")
	b := &model.Campaign{Name: "Other", CreatedBy: "bob", Message: model.Message{Type: model.MessageText, Content: "x"}}
	require.NoError(t, repo.Create(b))

	all, err := repo.List("")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, b.ID, all[0].ID, "newest first")

	mine, err := repo.List("alice")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, a.ID, mine[0].ID)
}

func TestExportResultsCSV(t *testing.T) {
	repo := newCampaignRepo(t)
	c := seedCampaign(t, repo, "1111111111", "2222222222")

	require.NoError(t, repo.UpdateRecipientStatus(c.ID, "1111111111", model.RecipientSent, ""))
	require.NoError(t, repo.UpdateRecipientStatus(c.ID, "2222222222", model.RecipientFailed, "no route"))

	out, err := repo.ExportResultsCSV(c.ID)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Number,Name,Job Title,Company,Status,Sent At,Error", lines[0])
	assert.Contains(t, lines[1], "sent")
	assert.Contains(t, lines[2], "no route")
}
