package sla

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/leadsla/internal/model"
	"github.com/jwalitptl/leadsla/internal/repository"
	"github.com/jwalitptl/leadsla/internal/service/audit"
	"github.com/jwalitptl/leadsla/internal/service/notification"
	apperrors "github.com/jwalitptl/leadsla/pkg/errors"
	"github.com/jwalitptl/leadsla/pkg/logger"
	"github.com/jwalitptl/leadsla/pkg/metrics"
)

const (
	CheckReminders = "reminders"
	CheckBreaches  = "breaches"

	breachComment = "SLA deadline passed"
)

// Notifier is the part of the notification service the evaluator drives.
type Notifier interface {
	SendReminder(ctx context.Context, lead *model.Lead) (notification.Outcome, error)
	SendBreach(ctx context.Context, lead *model.Lead) (notification.Outcome, error)
	AlreadySent(ctx context.Context, leadID uuid.UUID, messageType model.MessageType) (bool, error)
}

type Options struct {
	ReminderWindow time.Duration
	AtRiskWindow   time.Duration
	// DefaultDuration is carried for callers that want it; deadlines are
	// not derived from it.
	DefaultDuration time.Duration
	PageSize        int
	SystemActor     uuid.UUID
}

type Service struct {
	leads    repository.LeadRepository
	notifier Notifier
	auditor  *audit.Service
	metrics  *metrics.Metrics
	logger   *logger.Logger
	opts     Options
	now      func() time.Time
}

func NewService(leads repository.LeadRepository, notifier Notifier, auditor *audit.Service, m *metrics.Metrics, log *logger.Logger, opts Options) *Service {
	if opts.PageSize <= 0 {
		opts.PageSize = 500
	}
	return &Service{
		leads:    leads,
		notifier: notifier,
		auditor:  auditor,
		metrics:  m,
		logger:   log,
		opts:     opts,
		now:      time.Now,
	}
}

// Report summarises one evaluation pass.
type Report struct {
	Check      string `json:"check"`
	Evaluated  int    `json:"evaluated"`
	Matched    int    `json:"matched"`
	Sent       int    `json:"sent"`
	Duplicates int    `json:"duplicates"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
	Breached   int    `json:"breached"`
	Errors     int    `json:"errors"`
}

func (r *Report) record(out notification.Outcome) {
	switch out {
	case notification.OutcomeSent:
		r.Sent++
	case notification.OutcomeDuplicate:
		r.Duplicates++
	case notification.OutcomeFailed:
		r.Failed++
	case notification.OutcomeSkipped:
		r.Skipped++
	}
}

// EvaluateAndDispatchReminders mails every active lead whose deadline falls
// inside the reminder window, once per lead.
func (s *Service) EvaluateAndDispatchReminders(ctx context.Context) (*Report, error) {
	report := &Report{Check: CheckReminders}
	leads, err := s.collect(ctx, model.LeadStatusActive)
	if err != nil {
		return report, err
	}

	now := s.now().UTC()
	for _, lead := range leads {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Evaluated++
		if !IsApproaching(lead, now, s.opts.ReminderWindow) {
			continue
		}
		report.Matched++

		out, err := s.notifier.SendReminder(ctx, lead)
		if err != nil {
			s.leadFailed(report, lead, err)
			continue
		}
		report.record(out)
	}
	s.metrics.LeadsEvaluated.WithLabelValues(CheckReminders).Add(float64(report.Evaluated))
	return report, nil
}

// EvaluateAndDispatchBreaches marks every active lead past its SLA deadline
// as sla_breached, then alerts the lead's creator.
func (s *Service) EvaluateAndDispatchBreaches(ctx context.Context) (*Report, error) {
	report := &Report{Check: CheckBreaches}
	leads, err := s.collect(ctx, model.LeadStatusActive)
	if err != nil {
		return report, err
	}

	now := s.now().UTC()
	for _, lead := range leads {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Evaluated++
		if !IsBreached(lead, now) {
			continue
		}
		report.Matched++

		// only a lead that is still active may be marked; one closed or
		// reassigned since the scan read it is left alone
		updated, ok, err := s.leads.UpdateStatusIf(ctx, lead.ID, model.LeadStatusActive, model.LeadStatusSLABreached)
		if err != nil {
			s.leadFailed(report, lead, err)
			continue
		}
		if !ok {
			report.Skipped++
			continue
		}
		report.Breached++
		s.metrics.BreachesMarked.Inc()

		if _, err := s.auditor.RecordStatusChange(ctx, lead.ID, model.LeadStatusSLABreached, s.opts.SystemActor, breachComment); err != nil {
			report.Errors++
			s.metrics.LeadErrors.WithLabelValues(report.Check).Inc()
			s.logger.Error(err, "lead marked sla_breached without a history entry",
				"check", report.Check,
				"lead_id", lead.ID.String())
		}

		out, err := s.notifier.SendBreach(ctx, updated)
		if err != nil {
			s.leadFailed(report, lead, err)
			continue
		}
		report.record(out)
	}
	s.metrics.LeadsEvaluated.WithLabelValues(CheckBreaches).Add(float64(report.Evaluated))
	return report, nil
}

// RecordStatusChange logs a transition the caller has already applied.
func (s *Service) RecordStatusChange(ctx context.Context, leadID uuid.UUID, status model.LeadStatus, actorID uuid.UUID, comment string) (*model.StatusHistory, error) {
	if _, err := s.leads.Get(ctx, leadID); err != nil {
		return nil, err
	}
	return s.auditor.RecordStatusChange(ctx, leadID, status, actorID, comment)
}

// TransitionStatus writes the new status and its history entry. Any status
// may follow any other.
func (s *Service) TransitionStatus(ctx context.Context, leadID uuid.UUID, status model.LeadStatus, actorID uuid.UUID, comment string) (*model.Lead, error) {
	lead, err := s.leads.UpdateStatus(ctx, leadID, status)
	if err != nil {
		return nil, err
	}
	if _, err := s.auditor.RecordStatusChange(ctx, leadID, status, actorID, comment); err != nil {
		s.logger.Error(err, "lead status changed without a history entry",
			"lead_id", leadID.String(),
			"status", string(status))
		return lead, err
	}
	return lead, nil
}

func (s *Service) AlreadyNotified(ctx context.Context, leadID uuid.UUID, messageType model.MessageType) (bool, error) {
	switch messageType {
	case model.MessageTypeAssignment, model.MessageTypeReminder, model.MessageTypeSLABreach:
	default:
		return false, apperrors.BadRequest(fmt.Sprintf("unknown message type %q", messageType), nil)
	}
	return s.notifier.AlreadySent(ctx, leadID, messageType)
}

// Summary classifies every lead.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	leads, err := s.collect(ctx, "")
	if err != nil {
		return nil, err
	}
	summary := Summarize(leads, s.now().UTC(), s.opts.AtRiskWindow)
	return &summary, nil
}

// LeadsByStatus returns the leads currently in the given SLA class.
func (s *Service) LeadsByStatus(ctx context.Context, status Status) ([]*model.Lead, error) {
	if !status.Valid() {
		return nil, apperrors.BadRequest(fmt.Sprintf("unknown sla status %q", status), nil)
	}
	leads, err := s.collect(ctx, "")
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	out := make([]*model.Lead, 0)
	for _, l := range leads {
		if Classify(l, now, s.opts.AtRiskWindow) == status {
			out = append(out, l)
		}
	}
	return out, nil
}

// collect reads every page before anything is processed, so status
// updates made during the pass cannot shift the offsets.
func (s *Service) collect(ctx context.Context, status model.LeadStatus) ([]*model.Lead, error) {
	var all []*model.Lead
	for offset := 0; ; offset += s.opts.PageSize {
		page, err := s.leads.List(ctx, &model.LeadFilters{
			Status:     status,
			Pagination: model.Pagination{Offset: offset, Limit: s.opts.PageSize},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list leads: %w", err)
		}
		all = append(all, page...)
		if len(page) < s.opts.PageSize {
			return all, nil
		}
	}
}

func (s *Service) leadFailed(report *Report, lead *model.Lead, err error) {
	report.Errors++
	s.metrics.LeadErrors.WithLabelValues(report.Check).Inc()
	s.logger.Error(err, "lead evaluation failed",
		"check", report.Check,
		"lead_id", lead.ID.String())
}
