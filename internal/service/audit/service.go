package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/leadsla/internal/model"
	"github.com/jwalitptl/leadsla/internal/repository"
	apperrors "github.com/jwalitptl/leadsla/pkg/errors"
	"github.com/jwalitptl/leadsla/pkg/logger"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

type Service struct {
	history repository.StatusHistoryRepository
	leads   repository.LeadRepository
	logger  *logger.Logger
	now     func() time.Time
}

func NewService(history repository.StatusHistoryRepository, leads repository.LeadRepository, log *logger.Logger) *Service {
	return &Service{
		history: history,
		leads:   leads,
		logger:  log,
		now:     time.Now,
	}
}

type LogOptions struct {
	Comment  string
	Metadata map[string]interface{}
}

// Append writes entry as-is, stamping the id and timestamps when unset.
func (s *Service) Append(ctx context.Context, entry *model.StatusHistory) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if !entry.CreatedAt.Valid {
		entry.CreatedAt = model.NewTimestamp(s.now())
	}
	entry.UpdatedAt = entry.CreatedAt
	if entry.Metadata == nil {
		entry.Metadata = model.JSONMap{}
	}
	if err := s.history.Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// LogAction records a non-transition action against a lead along with a
// snapshot of the lead's status at the time of the action.
func (s *Service) LogAction(ctx context.Context, leadID uuid.UUID, action string, actorID uuid.UUID, opts *LogOptions) error {
	lead, err := s.leads.Get(ctx, leadID)
	if err != nil {
		return fmt.Errorf("failed to load lead for audit: %w", err)
	}

	status := lead.Status
	entry := &model.StatusHistory{
		LeadID:     leadID,
		Status:     &status,
		ActionType: action,
		UpdatedBy:  actorID,
	}
	applyOptions(entry, opts)
	return s.Append(ctx, entry)
}

// RecordStatusChange appends the single status_change entry that every
// transition requires. It does not touch the lead itself.
func (s *Service) RecordStatusChange(ctx context.Context, leadID uuid.UUID, status model.LeadStatus, actorID uuid.UUID, comment string) (*model.StatusHistory, error) {
	if !status.Valid() {
		return nil, apperrors.BadRequest(fmt.Sprintf("unknown lead status %q", status), nil)
	}
	entry := &model.StatusHistory{
		LeadID:     leadID,
		Status:     &status,
		ActionType: model.ActionStatusChange,
		UpdatedBy:  actorID,
	}
	applyOptions(entry, &LogOptions{Comment: comment})
	if err := s.Append(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// List returns entries newest first. A non-positive limit means the
// default; anything above MaxLimit is clamped.
func (s *Service) List(ctx context.Context, filters *model.AuditFilters) ([]*model.StatusHistory, error) {
	if filters == nil {
		filters = &model.AuditFilters{}
	}
	f := *filters
	f.Limit = ClampLimit(f.Limit)
	if f.Offset < 0 {
		f.Offset = 0
	}

	entries, err := s.history.List(ctx, &f)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return entries, nil
}

func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

func applyOptions(entry *model.StatusHistory, opts *LogOptions) {
	if opts == nil {
		return
	}
	if opts.Comment != "" {
		comment := opts.Comment
		entry.Comment = &comment
	}
	if len(opts.Metadata) > 0 {
		entry.Metadata = model.JSONMap(opts.Metadata)
	}
}
