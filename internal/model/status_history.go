package model

import (
	"github.com/google/uuid"
)

// Audit action types
const (
	ActionLeadCreated      = "lead_created"
	ActionLeadAssigned     = "lead_assigned"
	ActionStatusChange     = "status_change"
	ActionNotificationSent = "notification_sent"
)

// StatusHistory is one append-only audit record for a lead. Entries are
// never updated or deleted.
type StatusHistory struct {
	ID         uuid.UUID   `json:"id" db:"id"`
	LeadID     uuid.UUID   `json:"lead_id" db:"lead_id" validate:"required"`
	Status     *LeadStatus `json:"status,omitempty" db:"status"`
	ActionType string      `json:"action_type" db:"action_type" validate:"required"`
	Comment    *string     `json:"comment,omitempty" db:"comment"`
	UpdatedBy  uuid.UUID   `json:"updated_by" db:"updated_by"`
	Metadata   JSONMap     `json:"metadata" db:"metadata"`
	CreatedAt  Timestamp   `json:"created_at" db:"created_at"`
	UpdatedAt  Timestamp   `json:"updated_at" db:"updated_at"`
}

type AuditFilters struct {
	ActionType string
	LeadID     *uuid.UUID
	UserID     *uuid.UUID
	Pagination
}
