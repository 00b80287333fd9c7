package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/leadsla/internal/model"
)

// All repository interfaces in one file. Together they are the record store
// contract: filtered/paged reads, inserts, and patch-style updates that
// report not-found through pkg/errors.
type (
	LeadRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Lead, error)
		List(ctx context.Context, filters *model.LeadFilters) ([]*model.Lead, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.LeadStatus) (*model.Lead, error)
		// UpdateStatusIf moves the lead to status only while it is still in
		// from. ok is false when the lead has moved on or is gone.
		UpdateStatusIf(ctx context.Context, id uuid.UUID, from, status model.LeadStatus) (lead *model.Lead, ok bool, err error)
	}

	UserRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
	}

	// StatusHistoryRepository is append-only: there is no update or delete.
	StatusHistoryRepository interface {
		Append(ctx context.Context, entry *model.StatusHistory) error
		List(ctx context.Context, filters *model.AuditFilters) ([]*model.StatusHistory, error)
	}

	NotificationRepository interface {
		// Create inserts unconditionally.
		Create(ctx context.Context, notification *model.Notification) error
		// CreateIfAbsent inserts unless a sent notification already exists for
		// the same (lead_id, message_type). It reports whether a row was written.
		CreateIfAbsent(ctx context.Context, notification *model.Notification) (bool, error)
		Exists(ctx context.Context, leadID uuid.UUID, messageType model.MessageType) (bool, error)
		ListByLead(ctx context.Context, leadID uuid.UUID) ([]*model.Notification, error)
	}

	// Store bundles the collections so services can be wired from one value.
	Store interface {
		Leads() LeadRepository
		Users() UserRepository
		StatusHistory() StatusHistoryRepository
		Notifications() NotificationRepository
	}
)
