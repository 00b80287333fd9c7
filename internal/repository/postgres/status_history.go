package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/leadsla/internal/model"
	"github.com/jwalitptl/leadsla/internal/repository"
)

type statusHistoryRepository struct {
	*BaseRepository
}

func NewStatusHistoryRepository(base *BaseRepository) repository.StatusHistoryRepository {
	return &statusHistoryRepository{BaseRepository: base}
}

func (r *statusHistoryRepository) Append(ctx context.Context, entry *model.StatusHistory) error {
	if err := r.validator.Validate(entry); err != nil {
		return err
	}
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

	query := `
        INSERT INTO status_history (
            id, lead_id, status, action_type, comment, updated_by, metadata, created_at, updated_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `

	start := time.Now()
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, query,
			entry.ID,
			entry.LeadID,
			entry.Status,
			entry.ActionType,
			entry.Comment,
			entry.UpdatedBy,
			entry.Metadata,
			entry.CreatedAt,
			entry.UpdatedAt,
		)
		return err
	})
	return r.observe("append_status_history", "status history", start, err)
}

func (r *statusHistoryRepository) List(ctx context.Context, filters *model.AuditFilters) ([]*model.StatusHistory, error) {
	if filters == nil {
		filters = &model.AuditFilters{}
	}

	var conditions []string
	var args []interface{}

	if filters.ActionType != "" {
		args = append(args, filters.ActionType)
		conditions = append(conditions, fmt.Sprintf("action_type = $%d", len(args)))
	}
	if filters.LeadID != nil {
		args = append(args, *filters.LeadID)
		conditions = append(conditions, fmt.Sprintf("lead_id = $%d", len(args)))
	}
	if filters.UserID != nil {
		args = append(args, *filters.UserID)
		conditions = append(conditions, fmt.Sprintf("updated_by = $%d", len(args)))
	}

	query := `SELECT id, lead_id, status, action_type, comment, updated_by, metadata, created_at, updated_at FROM status_history`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY updated_at DESC, id DESC"

	if filters.Limit > 0 {
		args = append(args, filters.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filters.Offset > 0 {
		args = append(args, filters.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	start := time.Now()
	var entries []*model.StatusHistory
	err := r.GetDB().SelectContext(ctx, &entries, query, args...)
	if err := r.observe("list_status_history", "status history", start, err); err != nil {
		return nil, err
	}
	return entries, nil
}
