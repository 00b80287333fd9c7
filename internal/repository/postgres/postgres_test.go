package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/leadsla/internal/config"
	"github.com/jwalitptl/leadsla/internal/model"
	apperrors "github.com/jwalitptl/leadsla/pkg/errors"
	"github.com/jwalitptl/leadsla/pkg/metrics"
)

func newMockBase(t *testing.T) (*BaseRepository, sqlmock.Sqlmock, *metrics.Metrics) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	m := metrics.New("test")
	return NewBaseRepository(sqlx.NewDb(db, "sqlmock"), m), mock, m
}

var leadCols = []string{
	"id", "name", "email", "website", "source", "notes", "status",
	"deadline", "sla_deadline", "assignee_id", "created_by", "created_at", "updated_at",
}

func TestLeadRepositoryGetNotFound(t *testing.T) {
	base, mock, _ := newMockBase(t)
	repo := NewLeadRepository(base)
	id := uuid.New()

	mock.ExpectQuery(`SELECT .* FROM leads WHERE id = \$1`).
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), id)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepositoryListFiltersAndPages(t *testing.T) {
	base, mock, _ := newMockBase(t)
	repo := NewLeadRepository(base)

	id := uuid.New()
	creator := uuid.New()
	deadline := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(leadCols).
		AddRow(id.String(), "Acme", "", "", "manual", "", "active",
			deadline, "2025-01-01 12:00:00", nil, creator.String(), deadline, deadline)

	mock.ExpectQuery(`SELECT .* FROM leads WHERE status = \$1 ORDER BY created_at ASC, id ASC LIMIT \$2 OFFSET \$3`).
		WithArgs("active", 100, 200).
		WillReturnRows(rows)

	leads, err := repo.List(context.Background(), &model.LeadFilters{
		Status:     model.LeadStatusActive,
		Pagination: model.Pagination{Offset: 200, Limit: 100},
	})
	require.NoError(t, err)
	require.Len(t, leads, 1)

	lead := leads[0]
	assert.Equal(t, id, lead.ID)
	assert.Equal(t, model.LeadStatusActive, lead.Status)
	assert.True(t, lead.Deadline.Time.Equal(deadline))
	assert.True(t, lead.SLADeadline.Valid, "naive text sla_deadline parses as UTC")
	assert.True(t, lead.SLADeadline.Time.Equal(deadline))
	assert.Nil(t, lead.AssigneeID)
	assert.Equal(t, creator, lead.CreatedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepositoryUpdateStatus(t *testing.T) {
	base, mock, m := newMockBase(t)
	repo := NewLeadRepository(base)
	id := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(`UPDATE leads SET status = \$1, updated_at = NOW\(\) WHERE id = \$2 RETURNING`).
		WithArgs("sla_breached", id).
		WillReturnRows(sqlmock.NewRows(leadCols).
			AddRow(id.String(), "Acme", "", "", "manual", "", "sla_breached",
				nil, nil, nil, uuid.NewString(), now, now))

	lead, err := repo.UpdateStatus(context.Background(), id, model.LeadStatusSLABreached)
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusSLABreached, lead.Status)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DatabaseOperations.WithLabelValues("update_lead_status", "success")))

	_, err = repo.UpdateStatus(context.Background(), id, "archived")
	assert.Equal(t, apperrors.ErrBadRequest, apperrors.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepositoryUpdateStatusIf(t *testing.T) {
	base, mock, _ := newMockBase(t)
	repo := NewLeadRepository(base)
	id := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(`UPDATE leads SET status = \$1, updated_at = NOW\(\) WHERE id = \$2 AND status = \$3 RETURNING`).
		WithArgs("sla_breached", id, "active").
		WillReturnRows(sqlmock.NewRows(leadCols).
			AddRow(id.String(), "Acme", "", "", "manual", "", "sla_breached",
				nil, nil, nil, uuid.NewString(), now, now))
	mock.ExpectQuery(`UPDATE leads SET status = \$1, updated_at = NOW\(\) WHERE id = \$2 AND status = \$3 RETURNING`).
		WithArgs("sla_breached", id, "active").
		WillReturnRows(sqlmock.NewRows(leadCols))

	lead, ok, err := repo.UpdateStatusIf(context.Background(), id, model.LeadStatusActive, model.LeadStatusSLABreached)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.LeadStatusSLABreached, lead.Status)

	// the lead was closed in between: no row matches
	lead, ok, err = repo.UpdateStatusIf(context.Background(), id, model.LeadStatusActive, model.LeadStatusSLABreached)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, lead)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryCreateIfAbsent(t *testing.T) {
	base, mock, _ := newMockBase(t)
	repo := NewNotificationRepository(base)

	n := func() *model.Notification {
		return &model.Notification{
			LeadID:      uuid.New(),
			AssigneeID:  uuid.New(),
			Channel:     model.ChannelEmail,
			MessageType: model.MessageTypeReminder,
			Status:      model.NotificationStatusSent,
		}
	}

	mock.ExpectExec(`INSERT INTO notifications .* ON CONFLICT DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO notifications .* ON CONFLICT DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := repo.CreateIfAbsent(context.Background(), n())
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.CreateIfAbsent(context.Background(), n())
	require.NoError(t, err)
	assert.False(t, inserted, "conflict means already sent")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryRejectsInvalid(t *testing.T) {
	base, mock, _ := newMockBase(t)
	repo := NewNotificationRepository(base)

	err := repo.Create(context.Background(), &model.Notification{
		LeadID:      uuid.New(),
		AssigneeID:  uuid.New(),
		Channel:     "sms",
		MessageType: model.MessageTypeReminder,
		Status:      model.NotificationStatusSent,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrBadRequest, apperrors.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryExists(t *testing.T) {
	base, mock, _ := newMockBase(t)
	repo := NewNotificationRepository(base)
	leadID := uuid.New()

	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM notifications WHERE lead_id = \$1 AND message_type = \$2\)`).
		WithArgs(leadID, "reminder").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.Exists(context.Background(), leadID, model.MessageTypeReminder)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusHistoryAppendUsesTransaction(t *testing.T) {
	base, mock, _ := newMockBase(t)
	repo := NewStatusHistoryRepository(base)
	status := model.LeadStatusSLABreached

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO status_history`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	entry := &model.StatusHistory{
		LeadID:     uuid.New(),
		Status:     &status,
		ActionType: model.ActionStatusChange,
		UpdatedBy:  uuid.New(),
	}
	require.NoError(t, repo.Append(context.Background(), entry))
	assert.NotEqual(t, uuid.Nil, entry.ID)
	assert.True(t, entry.CreatedAt.Valid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusHistoryAppendStoreError(t *testing.T) {
	base, mock, _ := newMockBase(t)
	repo := NewStatusHistoryRepository(base)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO status_history`).WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := repo.Append(context.Background(), &model.StatusHistory{
		LeadID:     uuid.New(),
		ActionType: model.ActionLeadCreated,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsStore(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{
		Host:           "db.internal",
		Port:           5432,
		User:           "leads",
		Password:       `it's a s\ecret`,
		Name:           "leads",
		SSLMode:        "require",
		ConnectTimeout: 1500 * time.Millisecond,
	})
	assert.Equal(t,
		`host=db.internal port=5432 user=leads password='it\'s a s\\ecret' dbname=leads sslmode=require application_name=leadsla-scheduler connect_timeout=2`,
		dsn)

	empty := DSN(config.DatabaseConfig{Host: "localhost", Port: 5432, User: "postgres", Name: "leads", SSLMode: "disable"})
	assert.Contains(t, empty, "password='' ")
	assert.NotContains(t, empty, "connect_timeout")
}
