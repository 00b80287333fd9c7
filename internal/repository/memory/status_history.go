package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/leadsla/internal/model"
	"github.com/jwalitptl/leadsla/pkg/validator"
)

type statusHistoryRepository struct {
	mem       *Memory
	validator validator.Validator
	entries   []model.StatusHistory
}

func (r *statusHistoryRepository) Append(_ context.Context, entry *model.StatusHistory) error {
	if err := r.validator.Validate(entry); err != nil {
		return err
	}

	r.mem.mu.Lock()
	defer r.mem.mu.Unlock()

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if !entry.CreatedAt.Valid {
		entry.CreatedAt = model.NewTimestamp(time.Now())
	}
	entry.UpdatedAt = entry.CreatedAt
	if entry.Metadata == nil {
		entry.Metadata = model.JSONMap{}
	}
	r.entries = append(r.entries, *entry)
	return nil
}

// List returns newest first, matching the postgres ordering.
func (r *statusHistoryRepository) List(_ context.Context, filters *model.AuditFilters) ([]*model.StatusHistory, error) {
	r.mem.mu.RLock()
	defer r.mem.mu.RUnlock()

	if filters == nil {
		filters = &model.AuditFilters{}
	}

	type indexed struct {
		entry model.StatusHistory
		idx   int
	}
	matched := make([]indexed, 0, len(r.entries))
	for i, e := range r.entries {
		if filters.ActionType != "" && e.ActionType != filters.ActionType {
			continue
		}
		if filters.LeadID != nil && e.LeadID != *filters.LeadID {
			continue
		}
		if filters.UserID != nil && e.UpdatedBy != *filters.UserID {
			continue
		}
		matched = append(matched, indexed{entry: e, idx: i})
	}
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.entry.UpdatedAt.Time.Equal(b.entry.UpdatedAt.Time) {
			return a.entry.UpdatedAt.Time.After(b.entry.UpdatedAt.Time)
		}
		return a.idx > b.idx
	})

	matched = page(matched, filters.Offset, filters.Limit)
	out := make([]*model.StatusHistory, 0, len(matched))
	for _, m := range matched {
		e := m.entry
		out = append(out, &e)
	}
	return out, nil
}
