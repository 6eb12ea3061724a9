// internal/repository/list_repository.go
package repository

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/wabroadcast-backend/internal/errors"
	"github.com/unclebandit/wabroadcast-backend/internal/model"
	"github.com/unclebandit/wabroadcast-backend/internal/sanitize"
	"github.com/unclebandit/wabroadcast-backend/internal/store"
)

type ListRepositoryInterface interface {
	Create(l *model.RecipientList) error
	GetByID(id string) (*model.RecipientList, error)
	List(owner string) ([]*model.RecipientList, error)
	Update(l *model.RecipientList) error
	Delete(id string) error
	Clone(id, actor string) (*model.RecipientList, error)
	MarkAsUsed(id string) error
	AddRecipient(id string, rec model.Recipient) error
	RemoveRecipient(id, number string) error
	UpdateRecipient(id string, rec model.Recipient) error
	SearchRecipients(owner, query string) ([]SearchHit, error)
}

// SearchHit pairs a matching recipient with the list it came from.
type SearchHit struct {
	ListID    string          `json:"list_id"`
	ListName  string          `json:"list_name"`
	Recipient model.Recipient `json:"recipient"`
}

// ListRepository is CRUD over reusable recipient lists. Lists carry no
// execution state; they only seed campaigns.
type ListRepository struct {
	mu      sync.Mutex
	Records *store.Collection
}

func NewListRepository(records *store.Collection) *ListRepository {
	return &ListRepository{Records: records}
}

// Create dedupes recipients by number, keeping the first occurrence.
func (r *ListRepository) Create(l *model.RecipientList) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	l.CreatedAt = time.Now()
	l.Name = sanitize.StripTags(l.Name)
	l.Description = sanitize.StripTags(l.Description)
	l.Recipients = dedupeByNumber(l.Recipients)

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Records.Save(l.ID, l)
}

func (r *ListRepository) GetByID(id string) (*model.RecipientList, error) {
	var l model.RecipientList
	if err := r.Records.Load(id, &l); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, appErrors.NewListNotFound(id)
		}
		return nil, err
	}
	return &l, nil
}

func (r *ListRepository) List(owner string) ([]*model.RecipientList, error) {
	ids, err := r.Records.ListAll()
	if err != nil {
		return nil, err
	}

	lists := []*model.RecipientList{}
	for _, id := range ids {
		l, err := r.GetByID(id)
		if err != nil {
			continue
		}
		if owner != "" && l.CreatedBy != owner {
			continue
		}
		lists = append(lists, l)
	}

	sort.Slice(lists, func(i, j int) bool {
		return lists[i].CreatedAt.After(lists[j].CreatedAt)
	})
	return lists, nil
}

func (r *ListRepository) Update(l *model.RecipientList) error {
	return r.mutate(l.ID, func(existing *model.RecipientList) error {
		existing.Name = sanitize.StripTags(l.Name)
		existing.Description = sanitize.StripTags(l.Description)
		existing.Tags = l.Tags
		if l.Recipients != nil {
			existing.Recipients = dedupeByNumber(l.Recipients)
		}
		return nil
	})
}

func (r *ListRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.Records.Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return appErrors.NewListNotFound(id)
		}
		return err
	}
	return nil
}

func (r *ListRepository) Clone(id, actor string) (*model.RecipientList, error) {
	src, err := r.GetByID(id)
	if err != nil {
		return nil, err
	}

	cp := *src
	cp.ID = uuid.NewString()
	cp.Name = src.Name + " (copy)"
	cp.CreatedBy = actor
	cp.UsageCount = 0
	cp.LastUsed = nil
	cp.UpdatedAt = nil
	cp.Recipients = make([]model.Recipient, len(src.Recipients))
	copy(cp.Recipients, src.Recipients)

	if err := r.Create(&cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

// MarkAsUsed is called whenever the list seeds a campaign's recipients.
func (r *ListRepository) MarkAsUsed(id string) error {
	return r.mutate(id, func(l *model.RecipientList) error {
		now := time.Now()
		l.UsageCount++
		l.LastUsed = &now
		return nil
	})
}

func (r *ListRepository) AddRecipient(id string, rec model.Recipient) error {
	return r.mutate(id, func(l *model.RecipientList) error {
		for _, existing := range l.Recipients {
			if existing.Number == rec.Number {
				return appErrors.NewValidation("number", "duplicate number in list")
			}
		}
		l.Recipients = append(l.Recipients, rec)
		return nil
	})
}

func (r *ListRepository) RemoveRecipient(id, number string) error {
	return r.mutate(id, func(l *model.RecipientList) error {
		for i, rec := range l.Recipients {
			if rec.Number == number {
				l.Recipients = append(l.Recipients[:i], l.Recipients[i+1:]...)
				return nil
			}
		}
		return appErrors.NewValidation("number", "recipient not in list")
	})
}

func (r *ListRepository) UpdateRecipient(id string, rec model.Recipient) error {
	return r.mutate(id, func(l *model.RecipientList) error {
		for i := range l.Recipients {
			if l.Recipients[i].Number == rec.Number {
				l.Recipients[i] = rec
				return nil
			}
		}
		return appErrors.NewValidation("number", "recipient not in list")
	})
}

// SearchRecipients matches by substring on number, name, company and
// job title across every list the owner can see.
func (r *ListRepository) SearchRecipients(owner, query string) ([]SearchHit, error) {
	lists, err := r.List(owner)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(query))
	hits := []SearchHit{}
	if q == "" {
		return hits, nil
	}

	for _, l := range lists {
		for _, rec := range l.Recipients {
			if strings.Contains(strings.ToLower(rec.Number), q) ||
				strings.Contains(strings.ToLower(rec.Name), q) ||
				strings.Contains(strings.ToLower(rec.CompanyName), q) ||
				strings.Contains(strings.ToLower(rec.JobTitle), q) {
				hits = append(hits, SearchHit{ListID: l.ID, ListName: l.Name, Recipient: rec})
			}
		}
	}
	return hits, nil
}

func (r *ListRepository) mutate(id string, apply func(*model.RecipientList) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var l model.RecipientList
	if err := r.Records.Load(id, &l); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return appErrors.NewListNotFound(id)
		}
		return err
	}

	if err := apply(&l); err != nil {
		return err
	}

	now := time.Now()
	l.UpdatedAt = &now
	return r.Records.Save(l.ID, &l)
}

func dedupeByNumber(recipients []model.Recipient) []model.Recipient {
	seen := map[string]bool{}
	out := make([]model.Recipient, 0, len(recipients))
	for _, rec := range recipients {
		if rec.Number == "" || seen[rec.Number] {
			continue
		}
		seen[rec.Number] = true
		out = append(out, rec)
	}
	return out
}

var _ ListRepositoryInterface = (*ListRepository)(nil)
