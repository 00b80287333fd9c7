package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 120, cfg.SLA.DefaultDurationMinutes)
	assert.Equal(t, 5*time.Minute, cfg.SLA.SchedulerInterval())
	assert.Equal(t, 30*time.Minute, cfg.SLA.ReminderWindow())
	assert.Equal(t, time.Hour, cfg.SLA.AtRiskWindow())
	assert.Equal(t, 3, cfg.Dispatch.MaxRetries)
	assert.Equal(t, time.Second, cfg.Dispatch.BackoffUnit)
	assert.Equal(t, "http://localhost:5173", cfg.App.URL)
	assert.Equal(t, StoreDriverPostgres, cfg.Store.Driver)
	assert.Equal(t, 500, cfg.Scheduler.PageSize)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yml := []byte(`
sla:
  scheduler_interval_minutes: 1
  reminder_before_deadline_minutes: 15
  system_user_id: 7f1b7c3e-2a52-4a39-9d0e-2f6f3b6f2d11
smtp:
  host: smtp.example.com
  from_email: file@example.com
store:
  driver: memory
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), yml, 0o600))

	t.Setenv("SMTP_FROM_EMAIL", "env@example.com")
	t.Setenv("DISPATCH_MAX_RETRIES", "5")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, time.Minute, cfg.SLA.SchedulerInterval())
	assert.Equal(t, 15*time.Minute, cfg.SLA.ReminderWindow())
	assert.Equal(t, "7f1b7c3e-2a52-4a39-9d0e-2f6f3b6f2d11", cfg.SLA.SystemActor().String())
	assert.Equal(t, "smtp.example.com", cfg.SMTP.Host)
	assert.Equal(t, "env@example.com", cfg.SMTP.FromEmail)
	assert.Equal(t, 5, cfg.Dispatch.MaxRetries)
	assert.Equal(t, StoreDriverMemory, cfg.Store.Driver)
}

func TestValidate(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	bad := *cfg
	bad.SLA.SchedulerIntervalMinutes = 0
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Store.Driver = "mongo"
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.SLA.SystemUserID = "not-a-uuid"
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Dispatch.MaxRetries = 0
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Database.ConnectTimeout = 0
	assert.Error(t, bad.Validate())
	bad.Store.Driver = StoreDriverMemory
	assert.NoError(t, bad.Validate())
}
