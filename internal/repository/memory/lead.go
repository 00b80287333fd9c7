package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/leadsla/internal/model"
	apperrors "github.com/jwalitptl/leadsla/pkg/errors"
)

type leadRow struct {
	lead model.Lead
	seq  int
}

type leadRepository struct {
	mem  *Memory
	data map[string]*leadRow
	seq  int
}

// PutLead inserts or replaces a lead. It stands in for the CRUD layer.
func (m *Memory) PutLead(lead *model.Lead) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.leads
	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}
	if !lead.CreatedAt.Valid {
		lead.CreatedAt = model.NewTimestamp(time.Now())
	}
	if lead.Status == "" {
		lead.Status = model.LeadStatusActive
	}
	if existing, ok := r.data[lead.ID.String()]; ok {
		existing.lead = *lead
		return
	}
	r.seq++
	r.data[lead.ID.String()] = &leadRow{lead: *lead, seq: r.seq}
}

func copyLead(l model.Lead) *model.Lead {
	out := l
	if l.AssigneeID != nil {
		id := *l.AssigneeID
		out.AssigneeID = &id
	}
	return &out
}

func (r *leadRepository) Get(_ context.Context, id uuid.UUID) (*model.Lead, error) {
	r.mem.mu.RLock()
	defer r.mem.mu.RUnlock()

	row, ok := r.data[id.String()]
	if !ok {
		return nil, apperrors.NotFound("lead", nil)
	}
	return copyLead(row.lead), nil
}

func (r *leadRepository) List(_ context.Context, filters *model.LeadFilters) ([]*model.Lead, error) {
	r.mem.mu.RLock()
	defer r.mem.mu.RUnlock()

	if filters == nil {
		filters = &model.LeadFilters{}
	}

	rows := make([]*leadRow, 0, len(r.data))
	for _, row := range r.data {
		if filters.Status != "" && row.lead.Status != filters.Status {
			continue
		}
		if filters.AssigneeID != nil && (row.lead.AssigneeID == nil || *row.lead.AssigneeID != *filters.AssigneeID) {
			continue
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	rows = page(rows, filters.Offset, filters.Limit)
	out := make([]*model.Lead, 0, len(rows))
	for _, row := range rows {
		out = append(out, copyLead(row.lead))
	}
	return out, nil
}

func (r *leadRepository) UpdateStatus(_ context.Context, id uuid.UUID, status model.LeadStatus) (*model.Lead, error) {
	if !status.Valid() {
		return nil, apperrors.BadRequest(fmt.Sprintf("unknown lead status %q", status), nil)
	}

	r.mem.mu.Lock()
	defer r.mem.mu.Unlock()

	row, ok := r.data[id.String()]
	if !ok {
		return nil, apperrors.NotFound("lead", nil)
	}
	row.lead.Status = status
	row.lead.UpdatedAt = model.NewTimestamp(time.Now())
	return copyLead(row.lead), nil
}

func (r *leadRepository) UpdateStatusIf(_ context.Context, id uuid.UUID, from, status model.LeadStatus) (*model.Lead, bool, error) {
	if !status.Valid() {
		return nil, false, apperrors.BadRequest(fmt.Sprintf("unknown lead status %q", status), nil)
	}

	r.mem.mu.Lock()
	defer r.mem.mu.Unlock()

	row, ok := r.data[id.String()]
	if !ok || row.lead.Status != from {
		return nil, false, nil
	}
	row.lead.Status = status
	row.lead.UpdatedAt = model.NewTimestamp(time.Now())
	return copyLead(row.lead), true, nil
}

func page[T any](rows []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(rows) {
			return nil
		}
		rows = rows[offset:]
	}
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}
