package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/leadsla/internal/service/sla"
	"github.com/jwalitptl/leadsla/pkg/lock"
	"github.com/jwalitptl/leadsla/pkg/logger"
	"github.com/jwalitptl/leadsla/pkg/metrics"
)

var (
	ErrAlreadyRunning = errors.New("scheduler already running")
	ErrNotRunning     = errors.New("scheduler not running")
	// ErrTickInProgress is returned when another tick of the same check
	// holds the lock, here or on another replica.
	ErrTickInProgress = errors.New("tick already in progress")
	ErrUnknownCheck   = errors.New("unknown check")
)

// Evaluator runs the two SLA checks.
type Evaluator interface {
	EvaluateAndDispatchReminders(ctx context.Context) (*sla.Report, error)
	EvaluateAndDispatchBreaches(ctx context.Context) (*sla.Report, error)
}

type SLASchedulerConfig struct {
	ReminderInterval time.Duration
	BreachInterval   time.Duration
	// LockTTL bounds how long a crashed replica can block a check.
	LockTTL time.Duration
}

// SLAScheduler drives the reminder and breach checks on two independent
// tickers. A tick that finds the previous tick of the same check still
// running is skipped.
type SLAScheduler struct {
	evaluator Evaluator
	locker    lock.Locker
	config    SLASchedulerConfig
	logger    *logger.Logger
	metrics   *metrics.Metrics
	workerID  string

	busy map[string]*atomic.Bool

	mu         sync.Mutex
	running    bool
	stopCh     chan struct{}
	doneCh     chan struct{}
	cancelWork context.CancelFunc
}

func NewSLAScheduler(evaluator Evaluator, locker lock.Locker, config SLASchedulerConfig, log *logger.Logger, m *metrics.Metrics) *SLAScheduler {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	if config.LockTTL <= 0 {
		config.LockTTL = time.Minute
	}
	workerID := generateWorkerID()
	return &SLAScheduler{
		evaluator: evaluator,
		locker:    locker,
		config:    config,
		logger:    log.WithFields(map[string]interface{}{"worker_id": workerID}),
		metrics:   m,
		workerID:  workerID,
		busy: map[string]*atomic.Bool{
			sla.CheckReminders: {},
			sla.CheckBreaches:  {},
		},
	}
}

// Start launches both timers. The first tick fires one interval after
// Start. Ticks run on a context detached from ctx so that shutdown lets
// in-flight work finish; Stop is the only way to interrupt them.
func (s *SLAScheduler) Start(ctx context.Context) error {
	if s.config.ReminderInterval <= 0 || s.config.BreachInterval <= 0 {
		return fmt.Errorf("invalid scheduler intervals: reminders=%s breaches=%s",
			s.config.ReminderInterval, s.config.BreachInterval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}

	workCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.cancelWork = cancel
	s.running = true

	var wg sync.WaitGroup
	wg.Add(2)
	go s.loop(ctx, workCtx, &wg, sla.CheckReminders, s.config.ReminderInterval)
	go s.loop(ctx, workCtx, &wg, sla.CheckBreaches, s.config.BreachInterval)
	go func(done chan struct{}) {
		wg.Wait()
		close(done)
	}(s.doneCh)

	s.logger.Info("Starting SLA scheduler",
		"reminder_interval", s.config.ReminderInterval.String(),
		"breach_interval", s.config.BreachInterval.String())
	return nil
}

// Stop prevents new ticks and waits for in-flight ticks to finish. If ctx
// expires first, in-flight ticks are cancelled and ctx.Err() is returned.
func (s *SLAScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.running = false
	close(s.stopCh)
	done := s.doneCh
	cancel := s.cancelWork
	s.mu.Unlock()

	defer cancel()
	select {
	case <-done:
		s.logger.Info("SLA scheduler stopped")
		return nil
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	}
}

func (s *SLAScheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Trigger runs one check immediately under the same exclusion rules as a
// timer tick.
func (s *SLAScheduler) Trigger(ctx context.Context, check string) (*sla.Report, error) {
	if _, ok := s.busy[check]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCheck, check)
	}
	return s.tick(ctx, check)
}

func (s *SLAScheduler) loop(parent, workCtx context.Context, wg *sync.WaitGroup, check string, interval time.Duration) {
	defer wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-parent.Done():
			return
		case <-ticker.C:
			// stop may have raced the ticker
			select {
			case <-s.stopCh:
				return
			default:
			}
			if _, err := s.tick(workCtx, check); err != nil && !errors.Is(err, ErrTickInProgress) {
				s.logger.Error(err, "SLA check failed", "check", check)
			}
		}
	}
}

func (s *SLAScheduler) tick(ctx context.Context, check string) (*sla.Report, error) {
	busy := s.busy[check]
	if !busy.CompareAndSwap(false, true) {
		s.metrics.TicksSkipped.WithLabelValues(check, "running").Inc()
		s.logger.Debug("skipping tick, previous tick still running", "check", check)
		return nil, ErrTickInProgress
	}
	defer busy.Store(false)

	release, ok, err := s.locker.TryLock(ctx, "sla:"+check, s.config.LockTTL)
	if err != nil {
		s.metrics.TicksTotal.WithLabelValues(check, "error").Inc()
		return nil, fmt.Errorf("failed to acquire tick lock: %w", err)
	}
	if !ok {
		s.metrics.TicksSkipped.WithLabelValues(check, "locked").Inc()
		s.logger.Debug("skipping tick, lock held elsewhere", "check", check)
		return nil, ErrTickInProgress
	}
	defer release()

	timer := prometheus.NewTimer(s.metrics.TickDuration.WithLabelValues(check))
	defer timer.ObserveDuration()

	var report *sla.Report
	switch check {
	case sla.CheckReminders:
		report, err = s.evaluator.EvaluateAndDispatchReminders(ctx)
	case sla.CheckBreaches:
		report, err = s.evaluator.EvaluateAndDispatchBreaches(ctx)
	}
	if err != nil {
		s.metrics.TicksTotal.WithLabelValues(check, "error").Inc()
		return report, err
	}
	s.metrics.TicksTotal.WithLabelValues(check, "success").Inc()

	s.logger.Info("SLA check complete",
		"check", check,
		"evaluated", report.Evaluated,
		"matched", report.Matched,
		"sent", report.Sent,
		"duplicates", report.Duplicates,
		"failed", report.Failed,
		"breached", report.Breached,
		"errors", report.Errors)
	return report, nil
}

func generateWorkerID() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s-%d", hostname, time.Now().UnixNano())
}
