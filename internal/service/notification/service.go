package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/leadsla/internal/email"
	"github.com/jwalitptl/leadsla/internal/model"
	"github.com/jwalitptl/leadsla/internal/repository"
	"github.com/jwalitptl/leadsla/internal/service/audit"
	apperrors "github.com/jwalitptl/leadsla/pkg/errors"
	"github.com/jwalitptl/leadsla/pkg/logger"
	"github.com/jwalitptl/leadsla/pkg/metrics"
)

// Outcome describes what happened to one notification request.
type Outcome string

const (
	OutcomeSent      Outcome = "sent"
	OutcomeFailed    Outcome = "failed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeSkipped   Outcome = "skipped"
)

type Options struct {
	MaxRetries   int
	BackoffUnit  time.Duration
	UserCacheTTL time.Duration
	// SystemActor is recorded as the author of notification_sent entries.
	SystemActor uuid.UUID
}

type Service struct {
	leads         repository.LeadRepository
	notifications repository.NotificationRepository
	users         *userDirectory
	transport     email.Transport
	composer      *email.Composer
	auditor       *audit.Service
	metrics       *metrics.Metrics
	logger        *logger.Logger

	maxRetries  int
	backoffUnit time.Duration
	actor       uuid.UUID
	now         func() time.Time
}

func NewService(
	store repository.Store,
	transport email.Transport,
	composer *email.Composer,
	auditor *audit.Service,
	m *metrics.Metrics,
	log *logger.Logger,
	opts Options,
) *Service {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	return &Service{
		leads:         store.Leads(),
		notifications: store.Notifications(),
		users:         newUserDirectory(store.Users(), opts.UserCacheTTL),
		transport:     transport,
		composer:      composer,
		auditor:       auditor,
		metrics:       m,
		logger:        log,
		maxRetries:    opts.MaxRetries,
		backoffUnit:   opts.BackoffUnit,
		actor:         opts.SystemActor,
		now:           time.Now,
	}
}

// AlreadySent reports whether any notification of messageType exists for
// the lead.
func (s *Service) AlreadySent(ctx context.Context, leadID uuid.UUID, messageType model.MessageType) (bool, error) {
	return s.notifications.Exists(ctx, leadID, messageType)
}

// SendAssignment mails the assignee about a newly assigned lead. Assignment
// emails are never deduplicated.
func (s *Service) SendAssignment(ctx context.Context, lead *model.Lead, assigneeID uuid.UUID) (Outcome, error) {
	assignee, err := s.users.Get(ctx, assigneeID)
	if err != nil {
		return "", fmt.Errorf("failed to load assignee: %w", err)
	}
	msg, err := s.composer.Assignment(lead, assignee)
	if err != nil {
		return "", err
	}
	return s.deliver(ctx, lead, assignee, model.MessageTypeAssignment, msg)
}

// ResendAssignment repeats the assignment email for the lead's current
// assignee.
func (s *Service) ResendAssignment(ctx context.Context, leadID uuid.UUID) (Outcome, error) {
	lead, err := s.leads.Get(ctx, leadID)
	if err != nil {
		return "", err
	}
	if !lead.Assigned() {
		return "", apperrors.BadRequest("lead has no assignee", nil)
	}
	return s.SendAssignment(ctx, lead, *lead.AssigneeID)
}

// SendReminder mails the assignee that the lead's deadline is close.
// Unassigned leads are skipped.
func (s *Service) SendReminder(ctx context.Context, lead *model.Lead) (Outcome, error) {
	if !lead.Assigned() {
		return OutcomeSkipped, nil
	}
	if out, done, err := s.guard(ctx, lead.ID, model.MessageTypeReminder); done {
		return out, err
	}
	assignee, err := s.users.Get(ctx, *lead.AssigneeID)
	if err != nil {
		return "", fmt.Errorf("failed to load assignee: %w", err)
	}
	msg, err := s.composer.Reminder(lead, assignee)
	if err != nil {
		return "", err
	}
	return s.deliver(ctx, lead, assignee, model.MessageTypeReminder, msg)
}

// SendBreach alerts the lead's creator that its SLA has been breached.
func (s *Service) SendBreach(ctx context.Context, lead *model.Lead) (Outcome, error) {
	if out, done, err := s.guard(ctx, lead.ID, model.MessageTypeSLABreach); done {
		return out, err
	}
	creator, err := s.users.Get(ctx, lead.CreatedBy)
	if err != nil {
		return "", fmt.Errorf("failed to load lead creator: %w", err)
	}
	msg, err := s.composer.Breach(lead)
	if err != nil {
		return "", err
	}
	return s.deliver(ctx, lead, creator, model.MessageTypeSLABreach, msg)
}

// guard is the fast-path duplicate check. done is true when the caller
// must stop.
func (s *Service) guard(ctx context.Context, leadID uuid.UUID, messageType model.MessageType) (Outcome, bool, error) {
	sent, err := s.AlreadySent(ctx, leadID, messageType)
	if err != nil {
		return "", true, err
	}
	if sent {
		s.metrics.NotificationsSuppressed.WithLabelValues(string(messageType)).Inc()
		return OutcomeDuplicate, true, nil
	}
	return "", false, nil
}

// deliver runs send -> write notification -> write audit, in that order.
func (s *Service) deliver(ctx context.Context, lead *model.Lead, recipient *model.User, messageType model.MessageType, msg *email.Message) (Outcome, error) {
	if !s.Dispatch(ctx, messageType, recipient.Email, msg.Subject, msg.HTML) {
		s.metrics.NotificationsFailed.WithLabelValues(string(messageType)).Inc()
		return OutcomeFailed, nil
	}
	s.metrics.NotificationsSent.WithLabelValues(string(messageType)).Inc()

	sentAt := s.now().UTC()
	n := &model.Notification{
		ID:          uuid.New(),
		LeadID:      lead.ID,
		AssigneeID:  recipient.ID,
		Channel:     model.ChannelEmail,
		MessageType: messageType,
		Status:      model.NotificationStatusSent,
		RetryCount:  0,
		SentAt:      &sentAt,
		CreatedAt:   sentAt,
	}

	if messageType.Deduplicated() {
		inserted, err := s.notifications.CreateIfAbsent(ctx, n)
		if err != nil {
			return OutcomeSent, fmt.Errorf("failed to record notification: %w", err)
		}
		if !inserted {
			s.logger.Warn(nil, "notification already recorded by a concurrent sender",
				"lead_id", lead.ID.String(),
				"message_type", string(messageType))
			s.metrics.NotificationsSuppressed.WithLabelValues(string(messageType)).Inc()
			return OutcomeDuplicate, nil
		}
	} else if err := s.notifications.Create(ctx, n); err != nil {
		return OutcomeSent, fmt.Errorf("failed to record notification: %w", err)
	}

	status := lead.Status
	err := s.auditor.Append(ctx, &model.StatusHistory{
		LeadID:     lead.ID,
		Status:     &status,
		ActionType: model.ActionNotificationSent,
		UpdatedBy:  s.actor,
		Metadata: model.JSONMap{
			"message_type":    string(messageType),
			"recipient_id":    recipient.ID.String(),
			"notification_id": n.ID.String(),
		},
	})
	if err != nil {
		s.logger.Warn(err, "failed to audit notification",
			"lead_id", lead.ID.String(),
			"notification_id", n.ID.String())
	}

	s.logger.Info("notification sent",
		"lead_id", lead.ID.String(),
		"message_type", string(messageType),
		"recipient_id", recipient.ID.String())
	return OutcomeSent, nil
}

func (s *Service) ListForLead(ctx context.Context, leadID uuid.UUID) ([]*model.Notification, error) {
	return s.notifications.ListByLead(ctx, leadID)
}
