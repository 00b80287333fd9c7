package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/leadsla/internal/model"
	"github.com/jwalitptl/leadsla/internal/service/audit"
)

// RecordCreation audits a lead the CRUD layer has just inserted and, when it
// was created with an assignee, mails that assignee. The email is best
// effort: a failed send is reported as OutcomeFailed, never as an error.
func (s *Service) RecordCreation(ctx context.Context, leadID, actorID uuid.UUID) (Outcome, error) {
	lead, err := s.leads.Get(ctx, leadID)
	if err != nil {
		return "", err
	}

	snapshot := map[string]interface{}{
		"name":         lead.Name,
		"website":      lead.Website,
		"source":       lead.Source,
		"status":       string(lead.Status),
		"deadline":     lead.Deadline.String(),
		"sla_deadline": lead.SLADeadline.String(),
		"notes":        lead.Notes,
		"created_by":   lead.CreatedBy.String(),
	}
	if lead.Assigned() {
		snapshot["assignee_id"] = lead.AssigneeID.String()
	}
	if err := s.auditor.LogAction(ctx, leadID, model.ActionLeadCreated, actorID, &audit.LogOptions{Metadata: snapshot}); err != nil {
		return "", err
	}

	if !lead.Assigned() {
		return OutcomeSkipped, nil
	}
	return s.bestEffortAssignment(ctx, lead, *lead.AssigneeID), nil
}

// RecordAssignment audits an assignment the CRUD layer has applied: a
// lead_assigned entry, then a status_change to assigned. The assignee is
// mailed last and a failed send does not fail the assignment.
func (s *Service) RecordAssignment(ctx context.Context, leadID, assigneeID, actorID uuid.UUID, comment string) (Outcome, error) {
	lead, err := s.leads.Get(ctx, leadID)
	if err != nil {
		return "", err
	}

	meta := map[string]interface{}{
		"assigned_to": assigneeID.String(),
		"assigned_by": actorID.String(),
	}
	if comment != "" {
		meta["comment"] = comment
	}
	if err := s.auditor.LogAction(ctx, leadID, model.ActionLeadAssigned, actorID, &audit.LogOptions{Metadata: meta}); err != nil {
		return "", err
	}

	note := strings.TrimSpace(fmt.Sprintf("Assigned to %s. %s", assigneeID, comment))
	if _, err := s.auditor.RecordStatusChange(ctx, leadID, model.LeadStatusAssigned, actorID, note); err != nil {
		return "", err
	}

	return s.bestEffortAssignment(ctx, lead, assigneeID), nil
}

func (s *Service) bestEffortAssignment(ctx context.Context, lead *model.Lead, assigneeID uuid.UUID) Outcome {
	out, err := s.SendAssignment(ctx, lead, assigneeID)
	if err != nil {
		s.logger.Warn(err, "assignment email not sent",
			"lead_id", lead.ID.String(),
			"assignee_id", assigneeID.String())
		return OutcomeFailed
	}
	return out
}
