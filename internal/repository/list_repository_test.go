package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/wabroadcast-backend/internal/errors"
	"github.com/unclebandit/wabroadcast-backend/internal/model"
	"github.com/unclebandit/wabroadcast-backend/internal/store"
)

func newListRepo(t *testing.T) *ListRepository {
	t.Helper()
	s, err := store.New(t.TempDir(), "test-secret")
	require.NoError(t, err)
	records, err := s.Collection("recipient_lists")
	require.NoError(t, err)
	return NewListRepository(records)
}

func seedList(t *testing.T, repo *ListRepository) *model.RecipientList {
	t.Helper()
	l := &model.RecipientList{
		Name:      "Leads Q3",
		CreatedBy: "alice",
		Tags:      []string{"leads"},
		Recipients: []model.Recipient{
			{Number: "1111111111", Name: "Jane Wanjiru", CompanyName: "Acme", JobTitle: "Ops Lead"},
			{Number: "2222222222", Name: "Brian Otieno", CompanyName: "Savanna", JobTitle: "Sales"},
		},
	}
	require.NoError(t, repo.Create(l))
	return l
}

func TestCreateDedupesByNumber(t *testing.T) {
	repo := newListRepo(t)

	l := &model.RecipientList{
		Name: "Dupes",
		Recipients: []model.Recipient{
			{Number: "1111111111", Name: "First"},
			{Number: "1111111111", Name: "Second"},
			{Number: ""},
			{Number: "2222222222"},
		},
	}
	require.NoError(t, repo.Create(l))

	got, err := repo.GetByID(l.ID)
	require.NoError(t, err)
	require.Len(t, got.Recipients, 2)
	assert.Equal(t, "First", got.Recipients[0].Name, "first occurrence wins")
}

func TestAddRecipientRejectsDuplicate(t *testing.T) {
	repo := newListRepo(t)
	l := seedList(t, repo)

	require.NoError(t, repo.AddRecipient(l.ID, model.Recipient{Number: "3333333333"}))

	err := repo.AddRecipient(l.ID, model.Recipient{Number: "1111111111"})
	var v *appErrors.ValidationError
	assert.ErrorAs(t, err, &v)

	got, err := repo.GetByID(l.ID)
	require.NoError(t, err)
	assert.Len(t, got.Recipients, 3)
}

func TestRemoveAndUpdateRecipient(t *testing.T) {
	repo := newListRepo(t)
	l := seedList(t, repo)

	require.NoError(t, repo.UpdateRecipient(l.ID, model.Recipient{Number: "1111111111", Name: "Renamed"}))
	require.NoError(t, repo.RemoveRecipient(l.ID, "2222222222"))

	got, err := repo.GetByID(l.ID)
	require.NoError(t, err)
	require.Len(t, got.Recipients, 1)
	assert.Equal(t, "Renamed", got.Recipients[0].Name)

	var v *appErrors.ValidationError
	assert.ErrorAs(t, repo.RemoveRecipient(l.ID, "2222222222"), &v)
	assert.ErrorAs(t, repo.UpdateRecipient(l.ID, model.Recipient{Number: "9999999999"}), &v)
}

func TestSearchRecipients(t *testing.T) {
	repo := newListRepo(t)
	l := seedList(t, repo)

	hits, err := repo.SearchRecipients("", "wanjiru")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, l.ID, hits[0].ListID)
	assert.Equal(t, "Jane Wanjiru", hits[0].Recipient.Name)

	hits, err = repo.SearchRecipients("", "savanna")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "2222222222", hits[0].Recipient.Number)

	// Empty query matches nothing rather than everything.
	hits, err = repo.SearchRecipients("", "  ")
	require.NoError(t, err)
	assert.Empty(t, hits)

	// Owner filter.
	hits, err = repo.SearchRecipients("bob", "wanjiru")
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMarkAsUsed(t *testing.T) {
	repo := newListRepo(t)
	l := seedList(t, repo)

	require.NoError(t, repo.MarkAsUsed(l.ID))
	require.NoError(t, repo.MarkAsUsed(l.ID))

	got, err := repo.GetByID(l.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.UsageCount)
	assert.NotNil(t, got.LastUsed)
}

func TestCloneListResetsUsage(t *testing.T) {
	repo := newListRepo(t)
	l := seedList(t, repo)
	require.NoError(t, repo.MarkAsUsed(l.ID))

	clone, err := repo.Clone(l.ID, "bob")
	require.NoError(t, err)
	assert.NotEqual(t, l.ID, clone.ID)
	assert.Equal(t, "Leads Q3 (copy)", clone.Name)
	assert.Equal(t, "bob", clone.CreatedBy)
	assert.Zero(t, clone.UsageCount)
	assert.Nil(t, clone.LastUsed)
	assert.Len(t, clone.Recipients, 2)
}

func TestListNotFound(t *testing.T) {
	repo := newListRepo(t)

	_, err := repo.GetByID("missing")
	assert.True(t, appErrors.IsNotFound(err))
	assert.True(t, appErrors.IsNotFound(repo.Delete("missing")))
	assert.True(t, appErrors.IsNotFound(repo.MarkAsUsed("missing")))
}
