package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/leadsla/internal/model"
	"github.com/jwalitptl/leadsla/internal/repository"
)

const insertNotification = `
        INSERT INTO notifications (
            id, lead_id, assignee_id, channel, message_type, status, retry_count, sent_at, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

type notificationRepository struct {
	*BaseRepository
}

func NewNotificationRepository(base *BaseRepository) repository.NotificationRepository {
	return &notificationRepository{
		BaseRepository: base,
	}
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

func (r *notificationRepository) args(n *model.Notification) []interface{} {
	return []interface{}{
		n.ID, n.LeadID, n.AssigneeID, n.Channel, n.MessageType, n.Status, n.RetryCount, n.SentAt, n.CreatedAt,
	}
}

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	if err := r.prepare(n); err != nil {
		return err
	}

	start := time.Now()
	_, err := r.GetDB().ExecContext(ctx, insertNotification, r.args(n)...)
	return r.observe("create_notification", "notification", start, err)
}

// CreateIfAbsent relies on the partial unique index
// notifications_sent_once (lead_id, message_type) for deduplicated types.
func (r *notificationRepository) CreateIfAbsent(ctx context.Context, n *model.Notification) (bool, error) {
	if err := r.prepare(n); err != nil {
		return false, err
	}

	start := time.Now()
	res, err := r.GetDB().ExecContext(ctx, insertNotification+` ON CONFLICT DO NOTHING`, r.args(n)...)
	if err := r.observe("create_notification_if_absent", "notification", start, err); err != nil {
		return false, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, r.observe("create_notification_if_absent", "notification", start, err)
	}
	return rows > 0, nil
}

func (r *notificationRepository) Exists(ctx context.Context, leadID uuid.UUID, messageType model.MessageType) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM notifications WHERE lead_id = $1 AND message_type = $2)`

	start := time.Now()
	var exists bool
	err := r.GetDB().GetContext(ctx, &exists, query, leadID, messageType)
	if err := r.observe("notification_exists", "notification", start, err); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *notificationRepository) ListByLead(ctx context.Context, leadID uuid.UUID) ([]*model.Notification, error) {
	query := `
        SELECT id, lead_id, assignee_id, channel, message_type, status, retry_count, sent_at, created_at
        FROM notifications WHERE lead_id = $1 ORDER BY created_at ASC`

	start := time.Now()
	var out []*model.Notification
	err := r.GetDB().SelectContext(ctx, &out, query, leadID)
	if err := r.observe("list_notifications", "notification", start, err); err != nil {
		return nil, err
	}
	return out, nil
}
