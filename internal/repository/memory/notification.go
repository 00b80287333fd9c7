package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/leadsla/internal/model"
	"github.com/jwalitptl/leadsla/pkg/validator"
)

type notificationRepository struct {
	mem       *Memory
	validator validator.Validator
	rows      []model.Notification
}

func (r *notificationRepository) prepare(n *model.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	return r.validator.Validate(n)
}

func (r *notificationRepository) Create(_ context.Context, n *model.Notification) error {
	if err := r.prepare(n); err != nil {
		return err
	}

	r.mem.mu.Lock()
	defer r.mem.mu.Unlock()
	r.rows = append(r.rows, *n)
	return nil
}

// CreateIfAbsent mirrors the notifications_sent_once partial unique index.
func (r *notificationRepository) CreateIfAbsent(_ context.Context, n *model.Notification) (bool, error) {
	if err := r.prepare(n); err != nil {
		return false, err
	}

	r.mem.mu.Lock()
	defer r.mem.mu.Unlock()

	if n.Status == model.NotificationStatusSent && n.MessageType.Deduplicated() {
		for _, row := range r.rows {
			if row.LeadID == n.LeadID && row.MessageType == n.MessageType && row.Status == model.NotificationStatusSent {
				return false, nil
			}
		}
	}
	r.rows = append(r.rows, *n)
	return true, nil
}

func (r *notificationRepository) Exists(_ context.Context, leadID uuid.UUID, messageType model.MessageType) (bool, error) {
	r.mem.mu.RLock()
	defer r.mem.mu.RUnlock()

	for _, row := range r.rows {
		if row.LeadID == leadID && row.MessageType == messageType {
			return true, nil
		}
	}
	return false, nil
}

func (r *notificationRepository) ListByLead(_ context.Context, leadID uuid.UUID) ([]*model.Notification, error) {
	r.mem.mu.RLock()
	defer r.mem.mu.RUnlock()

	var out []*model.Notification
	for _, row := range r.rows {
		if row.LeadID == leadID {
			n := row
			out = append(out, &n)
		}
	}
	return out, nil
}
