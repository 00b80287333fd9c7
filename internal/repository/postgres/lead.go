package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/leadsla/internal/model"
	"github.com/jwalitptl/leadsla/internal/repository"
	apperrors "github.com/jwalitptl/leadsla/pkg/errors"
)

const leadColumns = `id, name, COALESCE(email, '') AS email, COALESCE(website, '') AS website,
        COALESCE(source, '') AS source, COALESCE(notes, '') AS notes, status,
        deadline, sla_deadline, assignee_id, created_by, created_at, updated_at`

type leadRepository struct {
	*BaseRepository
}

func NewLeadRepository(base *BaseRepository) repository.LeadRepository {
	return &leadRepository{BaseRepository: base}
}

func (r *leadRepository) Get(ctx context.Context, id uuid.UUID) (*model.Lead, error) {
	start := time.Now()
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`

	var lead model.Lead
	err := r.GetDB().GetContext(ctx, &lead, query, id)
	if err := r.observe("get_lead", "lead", start, err); err != nil {
		return nil, err
	}
	return &lead, nil
}

func (r *leadRepository) List(ctx context.Context, filters *model.LeadFilters) ([]*model.Lead, error) {
	start := time.Now()
	if filters == nil {
		filters = &model.LeadFilters{}
	}

	var conditions []string
	var args []interface{}

	if filters.Status != "" {
		args = append(args, filters.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filters.AssigneeID != nil {
		args = append(args, *filters.AssigneeID)
		conditions = append(conditions, fmt.Sprintf("assignee_id = $%d", len(args)))
	}

	query := `SELECT ` + leadColumns + ` FROM leads`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	// Stable order so paged full scans see every row exactly once.
	query += " ORDER BY created_at ASC, id ASC"

	if filters.Limit > 0 {
		args = append(args, filters.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filters.Offset > 0 {
		args = append(args, filters.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	var leads []*model.Lead
	err := r.GetDB().SelectContext(ctx, &leads, query, args...)
	if err := r.observe("list_leads", "lead", start, err); err != nil {
		return nil, err
	}
	return leads, nil
}

func (r *leadRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.LeadStatus) (*model.Lead, error) {
	if !status.Valid() {
		return nil, apperrors.BadRequest(fmt.Sprintf("unknown lead status %q", status), nil)
	}

	start := time.Now()
	query := `
        UPDATE leads SET status = $1, updated_at = NOW()
        WHERE id = $2
        RETURNING ` + leadColumns

	var lead model.Lead
	err := r.GetDB().GetContext(ctx, &lead, query, status, id)
	if err := r.observe("update_lead_status", "lead", start, err); err != nil {
		return nil, err
	}
	return &lead, nil
}

func (r *leadRepository) UpdateStatusIf(ctx context.Context, id uuid.UUID, from, status model.LeadStatus) (*model.Lead, bool, error) {
	if !status.Valid() {
		return nil, false, apperrors.BadRequest(fmt.Sprintf("unknown lead status %q", status), nil)
	}

	start := time.Now()
	query := `
        UPDATE leads SET status = $1, updated_at = NOW()
        WHERE id = $2 AND status = $3
        RETURNING ` + leadColumns

	var lead model.Lead
	err := r.GetDB().GetContext(ctx, &lead, query, status, id, from)
	if err := r.observe("update_lead_status_if", "lead", start, err); err != nil {
		if apperrors.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &lead, true, nil
}
