package model

import (
	"github.com/google/uuid"
)

type LeadStatus string

const (
	LeadStatusActive      LeadStatus = "active"
	LeadStatusInProgress  LeadStatus = "in_progress"
	LeadStatusAssigned    LeadStatus = "assigned"
	LeadStatusClosed      LeadStatus = "closed"
	LeadStatusSLABreached LeadStatus = "sla_breached"
)

func (s LeadStatus) Valid() bool {
	switch s {
	case LeadStatusActive, LeadStatusInProgress, LeadStatusAssigned, LeadStatusClosed, LeadStatusSLABreached:
		return true
	}
	return false
}

// Lead is a unit of work moving through the assignment workflow. Leads are
// owned by the CRUD layer; this service reads them and only ever writes the
// status field.
type Lead struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	Name        string     `json:"name" db:"name"`
	Email       string     `json:"email,omitempty" db:"email"`
	Website     string     `json:"website,omitempty" db:"website"`
	Source      string     `json:"source" db:"source"`
	Notes       string     `json:"notes,omitempty" db:"notes"`
	Status      LeadStatus `json:"status" db:"status"`
	Deadline    Timestamp  `json:"deadline" db:"deadline"`
	SLADeadline Timestamp  `json:"sla_deadline" db:"sla_deadline"`
	AssigneeID  *uuid.UUID `json:"assignee_id,omitempty" db:"assignee_id"`
	CreatedBy   uuid.UUID  `json:"created_by" db:"created_by"`
	CreatedAt   Timestamp  `json:"created_at" db:"created_at"`
	UpdatedAt   Timestamp  `json:"updated_at" db:"updated_at"`
}

func (l *Lead) Assigned() bool {
	return l.AssigneeID != nil && *l.AssigneeID != uuid.Nil
}

type LeadFilters struct {
	Status     LeadStatus
	AssigneeID *uuid.UUID
	Pagination
}
