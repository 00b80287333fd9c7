package model

import (
	"time"

	"github.com/google/uuid"
)

type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
)

type MessageType string

const (
	MessageTypeAssignment MessageType = "assignment"
	MessageTypeReminder   MessageType = "reminder"
	MessageTypeSLABreach  MessageType = "sla_breach"
)

// Deduplicated reports whether at most one sent notification of this type
// may exist per lead. Assignment emails can be resent on request.
func (t MessageType) Deduplicated() bool {
	return t == MessageTypeReminder || t == MessageTypeSLABreach
}

const ChannelEmail = "email"

// Notification records a completed send. Rows are append-only.
type Notification struct {
	ID          uuid.UUID          `json:"id" db:"id"`
	LeadID      uuid.UUID          `json:"lead_id" db:"lead_id" validate:"required"`
	AssigneeID  uuid.UUID          `json:"assignee_id" db:"assignee_id" validate:"required"`
	Channel     string             `json:"channel" db:"channel" validate:"required,oneof=email"`
	MessageType MessageType        `json:"message_type" db:"message_type" validate:"required,oneof=assignment reminder sla_breach"`
	Status      NotificationStatus `json:"status" db:"status" validate:"required,oneof=pending sent failed"`
	RetryCount  int                `json:"retry_count" db:"retry_count" validate:"gte=0"`
	SentAt      *time.Time         `json:"sent_at,omitempty" db:"sent_at"`
	CreatedAt   time.Time          `json:"created_at" db:"created_at"`
}
