package audit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/leadsla/internal/model"
	"github.com/jwalitptl/leadsla/internal/repository/memory"
	apperrors "github.com/jwalitptl/leadsla/pkg/errors"
	"github.com/jwalitptl/leadsla/pkg/logger"
)

func newTestService(t *testing.T) (*Service, *memory.Memory) {
	t.Helper()
	mem := memory.New()
	return NewService(mem.StatusHistory(), mem.Leads(), logger.Nop()), mem
}

func TestLogActionSnapshotsStatus(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()
	lead := &model.Lead{Name: "Acme", Status: model.LeadStatusAssigned}
	mem.PutLead(lead)
	actor := uuid.New()

	err := svc.LogAction(ctx, lead.ID, model.ActionLeadAssigned, actor, &LogOptions{
		Metadata: map[string]interface{}{"assignee_id": "someone"},
	})
	require.NoError(t, err)

	entries, err := svc.List(ctx, &model.AuditFilters{LeadID: &lead.ID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.ActionLeadAssigned, entries[0].ActionType)
	require.NotNil(t, entries[0].Status)
	assert.Equal(t, model.LeadStatusAssigned, *entries[0].Status)
	assert.Equal(t, actor, entries[0].UpdatedBy)
	assert.Equal(t, "someone", entries[0].Metadata["assignee_id"])

	err = svc.LogAction(ctx, uuid.New(), model.ActionLeadCreated, actor, nil)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestRecordStatusChange(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	leadID := uuid.New()

	entry, err := svc.RecordStatusChange(ctx, leadID, model.LeadStatusInProgress, uuid.New(), "picked up")
	require.NoError(t, err)
	assert.Equal(t, model.ActionStatusChange, entry.ActionType)
	require.NotNil(t, entry.Comment)
	assert.Equal(t, "picked up", *entry.Comment)
	assert.True(t, entry.CreatedAt.Valid)

	_, err = svc.RecordStatusChange(ctx, leadID, "archived", uuid.New(), "")
	assert.Equal(t, apperrors.ErrBadRequest, apperrors.CodeOf(err))
}

func TestListClampsLimit(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	leadID := uuid.New()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 60; i++ {
		require.NoError(t, svc.Append(ctx, &model.StatusHistory{
			LeadID:     leadID,
			ActionType: model.ActionStatusChange,
			CreatedAt:  model.NewTimestamp(base.Add(time.Duration(i) * time.Second)),
		}))
	}

	entries, err := svc.List(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, entries, DefaultLimit)
	assert.True(t, entries[0].UpdatedAt.Time.After(entries[1].UpdatedAt.Time))

	entries, err = svc.List(ctx, &model.AuditFilters{Pagination: model.Pagination{Offset: 55, Limit: 10}})
	require.NoError(t, err)
	assert.Len(t, entries, 5)

	assert.Equal(t, MaxLimit, ClampLimit(1000))
	assert.Equal(t, 1, ClampLimit(1))
}
