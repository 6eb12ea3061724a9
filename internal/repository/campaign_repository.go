// internal/repository/campaign_repository.go
package repository

import (
	"bytes"
	"encoding/csv"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/wabroadcast-backend/internal/errors"
	"github.com/unclebandit/wabroadcast-backend/internal/model"
	"github.com/unclebandit/wabroadcast-backend/internal/sanitize"
	"github.com/unclebandit/wabroadcast-backend/internal/store"
)

type CampaignRepositoryInterface interface {
	Create(c *model.Campaign) error
	GetByID(id string) (*model.Campaign, error)
	List(owner string) ([]*model.Campaign, error)
	Update(c *model.Campaign) error
	Delete(id string) error
	Clone(id, actor string) (*model.Campaign, error)
	UpdateStatus(id string, status model.CampaignStatus) error
	UpdateRecipientStatus(id, number string, status model.RecipientStatus, sendErr string) error
	MarkForRetry(id, number string) error
	GetPendingRecipients(id string, limit int) ([]model.Recipient, error)
	ExportResultsCSV(id string) ([]byte, error)
}

// CampaignRepository is CRUD plus recipient-status bookkeeping over the
// encrypted record store. All mutations are read-modify-write under one
// mutex; there is exactly one sender runtime per process, so no
// cross-process locking is needed.
type CampaignRepository struct {
	mu      sync.Mutex
	Records *store.Collection
}

func NewCampaignRepository(records *store.Collection) *CampaignRepository {
	return &CampaignRepository{Records: records}
}

// Create sanitizes free-text fields, dedupes recipients by number,
// initializes every recipient to pending and derives the statistics
// counters. Duplicate numbers must never reach the send loop: status
// writes address recipients by number, so a second copy would stay
// pending forever and be re-sent on every step.
func (r *CampaignRepository) Create(c *model.Campaign) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	c.Name = sanitize.StripTags(c.Name)
	c.Message.Content = sanitize.CleanMessageContent(c.Message.Content)

	c.Recipients = dedupeByNumber(c.Recipients)
	for i := range c.Recipients {
		c.Recipients[i].Status = model.RecipientPending
		c.Recipients[i].SentAt = nil
		c.Recipients[i].Error = ""
		c.Recipients[i].RetryCount = 0
	}
	c.Statistics = model.Statistics{
		Total:   len(c.Recipients),
		Pending: len(c.Recipients),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Records.Save(c.ID, c)
}

func (r *CampaignRepository) GetByID(id string) (*model.Campaign, error) {
	var c model.Campaign
	if err := r.Records.Load(id, &c); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return &c, nil
}

// List returns campaigns newest first. An empty owner means all.
func (r *CampaignRepository) List(owner string) ([]*model.Campaign, error) {
	ids, err := r.Records.ListAll()
	if err != nil {
		return nil, err
	}

	campaigns := []*model.Campaign{}
	for _, id := range ids {
		c, err := r.GetByID(id)
		if err != nil {
			// A single unreadable record must not hide the rest.
			continue
		}
		if owner != "" && c.CreatedBy != owner {
			continue
		}
		campaigns = append(campaigns, c)
	}

	sort.Slice(campaigns, func(i, j int) bool {
		return campaigns[i].CreatedAt.After(campaigns[j].CreatedAt)
	})
	return campaigns, nil
}

func (r *CampaignRepository) Update(c *model.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var existing model.Campaign
	if err := r.Records.Load(c.ID, &existing); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return appErrors.NewCampaignNotFound(c.ID)
		}
		return err
	}

	now := time.Now()
	c.UpdatedAt = &now
	c.Name = sanitize.StripTags(c.Name)
	c.Message.Content = sanitize.CleanMessageContent(c.Message.Content)
	return r.Records.Save(c.ID, c)
}

func (r *CampaignRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.Records.Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return appErrors.NewCampaignNotFound(id)
		}
		return err
	}
	return nil
}

// Clone produces a fresh draft with every recipient reset to pending.
// Media references are copied, not duplicated.
func (r *CampaignRepository) Clone(id, actor string) (*model.Campaign, error) {
	src, err := r.GetByID(id)
	if err != nil {
		return nil, err
	}

	cp := *src
	cp.ID = uuid.NewString()
	cp.Name = src.Name + " (copy)"
	cp.CreatedBy = actor
	cp.Status = model.CampaignDraft
	cp.UpdatedAt = nil
	cp.ScheduledAt = nil
	cp.Recipients = make([]model.Recipient, len(src.Recipients))
	copy(cp.Recipients, src.Recipients)

	if err := r.Create(&cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

func (r *CampaignRepository) UpdateStatus(id string, status model.CampaignStatus) error {
	return r.mutate(id, func(c *model.Campaign) error {
		c.Status = status
		return nil
	})
}

// UpdateRecipientStatus is the single invariant-preserving choke point:
// it moves the recipient between statistics buckets atomically with the
// status change. A failed outcome records the error and burns one retry,
// mirroring how the send loop accounts attempts.
func (r *CampaignRepository) UpdateRecipientStatus(id, number string, status model.RecipientStatus, sendErr string) error {
	return r.mutate(id, func(c *model.Campaign) error {
		rec := findRecipient(c, number)
		if rec == nil {
			return appErrors.NewValidation("number", "recipient not in campaign")
		}
		// A repeated failure still has to burn a retry, otherwise an
		// auto-retried recipient could fail forever.
		if rec.Status == status && status != model.RecipientFailed {
			return nil
		}

		adjustBucket(&c.Statistics, model.StatusBucket(rec.Status), -1)
		adjustBucket(&c.Statistics, model.StatusBucket(status), +1)
		rec.Status = status

		switch status {
		case model.RecipientSent:
			now := time.Now()
			rec.SentAt = &now
			rec.Error = ""
		case model.RecipientFailed:
			rec.Error = sendErr
			rec.RetryCount++
		default:
			rec.Error = ""
		}
		return nil
	})
}

// MarkForRetry flips a failed recipient back to pending, charging one
// retry and rebalancing the failed/pending counters.
func (r *CampaignRepository) MarkForRetry(id, number string) error {
	return r.mutate(id, func(c *model.Campaign) error {
		rec := findRecipient(c, number)
		if rec == nil {
			return appErrors.NewValidation("number", "recipient not in campaign")
		}
		if rec.Status != model.RecipientFailed {
			return nil
		}

		c.Statistics.Failed--
		c.Statistics.Pending++
		rec.Status = model.RecipientPending
		rec.Error = ""
		rec.RetryCount++
		return nil
	})
}

// GetPendingRecipients returns up to limit eligible recipients in
// original insertion order; stable ordering is what makes pause/resume
// deterministic.
func (r *CampaignRepository) GetPendingRecipients(id string, limit int) ([]model.Recipient, error) {
	c, err := r.GetByID(id)
	if err != nil {
		return nil, err
	}

	pending := []model.Recipient{}
	for _, rec := range c.Recipients {
		if len(pending) >= limit {
			break
		}
		if rec.EligibleForSend(c.Settings) {
			pending = append(pending, rec)
		}
	}
	return pending, nil
}

// ExportResultsCSV renders per-recipient outcomes as quoted CSV.
func (r *CampaignRepository) ExportResultsCSV(id string) ([]byte, error) {
	c, err := r.GetByID(id)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"Number", "Name", "Job Title", "Company", "Status", "Sent At", "Error"})
	for _, rec := range c.Recipients {
		sentAt := ""
		if rec.SentAt != nil {
			sentAt = rec.SentAt.Format(time.RFC3339)
		}
		_ = w.Write([]string{
			rec.Number, rec.Name, rec.JobTitle, rec.CompanyName,
			string(rec.Status), sentAt, rec.Error,
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// mutate runs a read-modify-write cycle on one campaign under the lock.
func (r *CampaignRepository) mutate(id string, apply func(*model.Campaign) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var c model.Campaign
	if err := r.Records.Load(id, &c); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return appErrors.NewCampaignNotFound(id)
		}
		return err
	}

	if err := apply(&c); err != nil {
		return err
	}

	now := time.Now()
	c.UpdatedAt = &now
	return r.Records.Save(c.ID, &c)
}

func findRecipient(c *model.Campaign, number string) *model.Recipient {
	for i := range c.Recipients {
		if c.Recipients[i].Number == number {
			return &c.Recipients[i]
		}
	}
	return nil
}

func adjustBucket(s *model.Statistics, bucket model.RecipientStatus, delta int) {
	switch bucket {
	case model.RecipientSent:
		s.Sent += delta
	case model.RecipientFailed:
		s.Failed += delta
	case model.RecipientPending:
		s.Pending += delta
	}
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
