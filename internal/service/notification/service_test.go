package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/leadsla/internal/email"
	"github.com/jwalitptl/leadsla/internal/model"
	"github.com/jwalitptl/leadsla/internal/repository"
	"github.com/jwalitptl/leadsla/internal/repository/memory"
	"github.com/jwalitptl/leadsla/internal/service/audit"
	apperrors "github.com/jwalitptl/leadsla/pkg/errors"
	"github.com/jwalitptl/leadsla/pkg/logger"
	"github.com/jwalitptl/leadsla/pkg/metrics"
)

type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Send(ctx context.Context, to, subject, htmlBody string) error {
	args := m.Called(ctx, to, subject, htmlBody)
	return args.Error(0)
}

// flakyTransport fails the first n sends.
type flakyTransport struct {
	mu    sync.Mutex
	fails int
	calls int
	to    []string
}

func (t *flakyTransport) Send(_ context.Context, to, _, _ string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	if t.calls <= t.fails {
		return apperrors.Transport(errors.New("relay unavailable"))
	}
	t.to = append(t.to, to)
	return nil
}

type fixture struct {
	svc     *Service
	mem     *memory.Memory
	metrics *metrics.Metrics
	lead    *model.Lead
	owner   *model.User
	agent   *model.User
}

func newFixture(t *testing.T, transport email.Transport) *fixture {
	t.Helper()
	mem := memory.New()
	m := metrics.New("test")
	log := logger.Nop()

	owner := &model.User{Name: "Sam", Email: "sam@example.com"}
	agent := &model.User{Name: "Dana", Email: "dana@example.com"}
	mem.PutUser(owner)
	mem.PutUser(agent)

	lead := &model.Lead{
		Name:        "Acme",
		Status:      model.LeadStatusActive,
		Deadline:    model.NewTimestamp(time.Now().Add(10 * time.Minute)),
		SLADeadline: model.NewTimestamp(time.Now().Add(10 * time.Minute)),
		AssigneeID:  &agent.ID,
		CreatedBy:   owner.ID,
	}
	mem.PutLead(lead)

	auditor := audit.NewService(mem.StatusHistory(), mem.Leads(), log)
	svc := NewService(mem, transport, email.NewComposer("http://localhost:5173"), auditor, m, log, Options{
		MaxRetries:   3,
		BackoffUnit:  time.Millisecond,
		UserCacheTTL: time.Minute,
	})
	return &fixture{svc: svc, mem: mem, metrics: m, lead: lead, owner: owner, agent: agent}
}

func notificationsFor(t *testing.T, mem *memory.Memory, leadID uuid.UUID) []*model.Notification {
	t.Helper()
	rows, err := mem.Notifications().ListByLead(context.Background(), leadID)
	require.NoError(t, err)
	return rows
}

func TestDispatchSucceedsOnThirdAttempt(t *testing.T) {
	tr := &flakyTransport{fails: 2}
	f := newFixture(t, tr)

	out, err := f.svc.SendReminder(context.Background(), f.lead)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSent, out)
	assert.Equal(t, 3, tr.calls)

	rows := notificationsFor(t, f.mem, f.lead.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, model.NotificationStatusSent, rows[0].Status)
	assert.Equal(t, model.MessageTypeReminder, rows[0].MessageType)
	assert.Equal(t, 0, rows[0].RetryCount)
	assert.Equal(t, f.agent.ID, rows[0].AssigneeID)
	assert.NotNil(t, rows[0].SentAt)

	assert.Equal(t, float64(2), testutil.ToFloat64(f.metrics.DispatchRetries.WithLabelValues("reminder")))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.NotificationsSent.WithLabelValues("reminder")))

	entries, err := f.mem.StatusHistory().List(context.Background(), &model.AuditFilters{ActionType: model.ActionNotificationSent})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "reminder", entries[0].Metadata["message_type"])
	assert.Equal(t, rows[0].ID.String(), entries[0].Metadata["notification_id"])
}

func TestDispatchExhaustionIsNotAnError(t *testing.T) {
	tr := new(MockTransport)
	tr.On("Send", mock.Anything, "dana@example.com", mock.Anything, mock.Anything).
		Return(apperrors.Transport(errors.New("relay unavailable")))
	f := newFixture(t, tr)

	out, err := f.svc.SendReminder(context.Background(), f.lead)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, out)
	tr.AssertNumberOfCalls(t, "Send", 3)

	assert.Empty(t, notificationsFor(t, f.mem, f.lead.ID))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.NotificationsFailed.WithLabelValues("reminder")))
}

func TestDispatchStopsWhenContextCancelled(t *testing.T) {
	tr := &flakyTransport{fails: 10}
	f := newFixture(t, tr)
	f.svc.backoffUnit = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	ok := f.svc.Dispatch(ctx, model.MessageTypeReminder, "dana@example.com", "s", "b")
	assert.False(t, ok)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, tr.calls)
}

func TestBackoffDoubles(t *testing.T) {
	f := newFixture(t, &flakyTransport{})
	f.svc.backoffUnit = time.Second

	assert.Equal(t, time.Second, f.svc.backoff(0))
	assert.Equal(t, 2*time.Second, f.svc.backoff(1))
	assert.Equal(t, 4*time.Second, f.svc.backoff(2))
}

func TestReminderSentOnce(t *testing.T) {
	tr := &flakyTransport{}
	f := newFixture(t, tr)
	ctx := context.Background()

	out, err := f.svc.SendReminder(ctx, f.lead)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSent, out)

	out, err = f.svc.SendReminder(ctx, f.lead)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, out)

	assert.Equal(t, 1, tr.calls)
	assert.Len(t, notificationsFor(t, f.mem, f.lead.ID), 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.NotificationsSuppressed.WithLabelValues("reminder")))

	sent, err := f.svc.AlreadySent(ctx, f.lead.ID, model.MessageTypeReminder)
	require.NoError(t, err)
	assert.True(t, sent)
}

func TestReminderSkipsUnassignedLead(t *testing.T) {
	tr := &flakyTransport{}
	f := newFixture(t, tr)
	f.lead.AssigneeID = nil

	out, err := f.svc.SendReminder(context.Background(), f.lead)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, out)
	assert.Zero(t, tr.calls)
}

func TestReminderMissingAssignee(t *testing.T) {
	tr := &flakyTransport{}
	f := newFixture(t, tr)
	ghost := uuid.New()
	f.lead.AssigneeID = &ghost

	_, err := f.svc.SendReminder(context.Background(), f.lead)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Zero(t, tr.calls)
}

func TestBreachGoesToCreator(t *testing.T) {
	tr := &flakyTransport{}
	f := newFixture(t, tr)

	out, err := f.svc.SendBreach(context.Background(), f.lead)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSent, out)
	assert.Equal(t, []string{"sam@example.com"}, tr.to)

	rows := notificationsFor(t, f.mem, f.lead.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, model.MessageTypeSLABreach, rows[0].MessageType)
	assert.Equal(t, f.owner.ID, rows[0].AssigneeID)
}

func TestAssignmentIsNotDeduplicated(t *testing.T) {
	tr := &flakyTransport{}
	f := newFixture(t, tr)
	ctx := context.Background()

	out, err := f.svc.SendAssignment(ctx, f.lead, f.agent.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSent, out)

	out, err = f.svc.ResendAssignment(ctx, f.lead.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSent, out)

	assert.Equal(t, 2, tr.calls)
	assert.Len(t, notificationsFor(t, f.mem, f.lead.ID), 2)
}

func TestResendAssignmentRequiresAssignee(t *testing.T) {
	f := newFixture(t, &flakyTransport{})
	lead := &model.Lead{Name: "Orphan", CreatedBy: f.owner.ID}
	f.mem.PutLead(lead)

	_, err := f.svc.ResendAssignment(context.Background(), lead.ID)
	assert.Equal(t, apperrors.ErrBadRequest, apperrors.CodeOf(err))

	_, err = f.svc.ResendAssignment(context.Background(), uuid.New())
	assert.True(t, apperrors.IsNotFound(err))
}

type countingUsers struct {
	repository.UserRepository
	calls int
}

func (c *countingUsers) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	c.calls++
	return c.UserRepository.Get(ctx, id)
}

func TestUserDirectoryCaches(t *testing.T) {
	mem := memory.New()
	u := &model.User{Name: "Dana", Email: "dana@example.com"}
	mem.PutUser(u)
	repo := &countingUsers{UserRepository: mem.Users()}

	dir := newUserDirectory(repo, time.Minute)
	for i := 0; i < 3; i++ {
		got, err := dir.Get(context.Background(), u.ID)
		require.NoError(t, err)
		assert.Equal(t, "dana@example.com", got.Email)
	}
	assert.Equal(t, 1, repo.calls)

	uncached := newUserDirectory(repo, 0)
	_, _ = uncached.Get(context.Background(), u.ID)
	_, _ = uncached.Get(context.Background(), u.ID)
	assert.Equal(t, 3, repo.calls)
}

func historyFor(t *testing.T, mem *memory.Memory, leadID uuid.UUID, action string) []*model.StatusHistory {
	t.Helper()
	rows, err := mem.StatusHistory().List(context.Background(), &model.AuditFilters{LeadID: &leadID, ActionType: action})
	require.NoError(t, err)
	return rows
}

func TestRecordAssignment(t *testing.T) {
	tr := &flakyTransport{}
	f := newFixture(t, tr)
	ctx := context.Background()

	out, err := f.svc.RecordAssignment(ctx, f.lead.ID, f.agent.ID, f.owner.ID, "priority account")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSent, out)

	assigned := historyFor(t, f.mem, f.lead.ID, model.ActionLeadAssigned)
	require.Len(t, assigned, 1)
	assert.Equal(t, f.owner.ID, assigned[0].UpdatedBy)
	assert.Equal(t, f.agent.ID.String(), assigned[0].Metadata["assigned_to"])
	assert.Equal(t, "priority account", assigned[0].Metadata["comment"])
	require.NotNil(t, assigned[0].Status)
	assert.Equal(t, model.LeadStatusActive, *assigned[0].Status)

	changes := historyFor(t, f.mem, f.lead.ID, model.ActionStatusChange)
	require.Len(t, changes, 1)
	assert.Equal(t, model.LeadStatusAssigned, *changes[0].Status)
	require.NotNil(t, changes[0].Comment)
	assert.Contains(t, *changes[0].Comment, f.agent.ID.String())

	assert.Equal(t, []string{"dana@example.com"}, tr.to)
	rows := notificationsFor(t, f.mem, f.lead.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, model.MessageTypeAssignment, rows[0].MessageType)
}

func TestRecordAssignmentSurvivesFailedEmail(t *testing.T) {
	tr := &flakyTransport{}
	f := newFixture(t, tr)

	// the assignee is unknown to the directory, so the email cannot go out
	out, err := f.svc.RecordAssignment(context.Background(), f.lead.ID, uuid.New(), f.owner.ID, "")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, out)

	assert.Len(t, historyFor(t, f.mem, f.lead.ID, model.ActionLeadAssigned), 1)
	assert.Len(t, historyFor(t, f.mem, f.lead.ID, model.ActionStatusChange), 1)
	assert.Empty(t, tr.to)
}

func TestRecordAssignmentUnknownLead(t *testing.T) {
	f := newFixture(t, &flakyTransport{})

	_, err := f.svc.RecordAssignment(context.Background(), uuid.New(), f.agent.ID, f.owner.ID, "")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestRecordCreation(t *testing.T) {
	t.Run("assigned lead mails the assignee", func(t *testing.T) {
		tr := &flakyTransport{}
		f := newFixture(t, tr)

		out, err := f.svc.RecordCreation(context.Background(), f.lead.ID, f.owner.ID)
		require.NoError(t, err)
		assert.Equal(t, OutcomeSent, out)

		created := historyFor(t, f.mem, f.lead.ID, model.ActionLeadCreated)
		require.Len(t, created, 1)
		assert.Equal(t, "Acme", created[0].Metadata["name"])
		assert.Equal(t, f.agent.ID.String(), created[0].Metadata["assignee_id"])
		assert.Equal(t, []string{"dana@example.com"}, tr.to)
	})

	t.Run("unassigned lead is only audited", func(t *testing.T) {
		tr := &flakyTransport{}
		f := newFixture(t, tr)
		lead := &model.Lead{Name: "Solo", CreatedBy: f.owner.ID}
		f.mem.PutLead(lead)

		out, err := f.svc.RecordCreation(context.Background(), lead.ID, f.owner.ID)
		require.NoError(t, err)
		assert.Equal(t, OutcomeSkipped, out)
		assert.Len(t, historyFor(t, f.mem, lead.ID, model.ActionLeadCreated), 1)
		assert.Empty(t, tr.to)
	})
}
