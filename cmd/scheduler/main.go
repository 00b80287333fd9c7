package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/leadsla/internal/config"
	"github.com/jwalitptl/leadsla/internal/email"
	"github.com/jwalitptl/leadsla/internal/handler"
	audithandler "github.com/jwalitptl/leadsla/internal/handler/audit"
	notificationhandler "github.com/jwalitptl/leadsla/internal/handler/notification"
	slahandler "github.com/jwalitptl/leadsla/internal/handler/sla"
	"github.com/jwalitptl/leadsla/internal/repository"
	"github.com/jwalitptl/leadsla/internal/repository/memory"
	"github.com/jwalitptl/leadsla/internal/repository/postgres"
	"github.com/jwalitptl/leadsla/internal/router"
	"github.com/jwalitptl/leadsla/internal/service/audit"
	"github.com/jwalitptl/leadsla/internal/service/notification"
	"github.com/jwalitptl/leadsla/internal/service/sla"
	"github.com/jwalitptl/leadsla/internal/worker"
	"github.com/jwalitptl/leadsla/pkg/lock"
	"github.com/jwalitptl/leadsla/pkg/logger"
	"github.com/jwalitptl/leadsla/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Logger.Fatal().Err(err).Msg("Failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	appLogger := logger.NewLogger(&logger.Config{
		Level:      level,
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		JSON:       cfg.Log.JSON,
	})
	log.Logger = *appLogger.Zerolog()

	if err := run(cfg, appLogger); err != nil {
		appLogger.Fatal(err, "Scheduler exited")
	}
}

func run(cfg *config.Config, appLogger *logger.Logger) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New("leadsla")
	m.MustRegister(registry)

	deps := map[string]handler.Pinger{}

	store, db, err := openStore(cfg, m, appLogger)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		deps["database"] = db
	}

	var locker lock.Locker
	if cfg.Redis.URL != "" {
		redisLocker, err := lock.NewRedisLocker(lock.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			RetryBackoff: cfg.Redis.RetryBackoff,
			PoolSize:     cfg.Redis.PoolSize,
		}, appLogger.Zerolog())
		if err != nil {
			return err
		}
		defer redisLocker.Close()
		locker = redisLocker
		deps["redis"] = handler.PingFunc(redisLocker.Ping)
		appLogger.Info("Using redis tick lock")
	}

	auditor := audit.NewService(store.StatusHistory(), store.Leads(), appLogger)
	notifier := notification.NewService(
		store,
		email.NewSMTPTransport(cfg.SMTP),
		email.NewComposer(cfg.App.URL),
		auditor,
		m,
		appLogger,
		notification.Options{
			MaxRetries:   cfg.Dispatch.MaxRetries,
			BackoffUnit:  cfg.Dispatch.BackoffUnit,
			UserCacheTTL: cfg.Dispatch.UserCacheTTL,
			SystemActor:  cfg.SLA.SystemActor(),
		},
	)
	slaSvc := sla.NewService(store.Leads(), notifier, auditor, m, appLogger, sla.Options{
		ReminderWindow:  cfg.SLA.ReminderWindow(),
		AtRiskWindow:    cfg.SLA.AtRiskWindow(),
		DefaultDuration: cfg.SLA.DefaultDuration(),
		PageSize:        cfg.Scheduler.PageSize,
		SystemActor:     cfg.SLA.SystemActor(),
	})

	scheduler := worker.NewSLAScheduler(slaSvc, locker, worker.SLASchedulerConfig{
		ReminderInterval: cfg.SLA.SchedulerInterval(),
		BreachInterval:   cfg.SLA.SchedulerInterval(),
		LockTTL:          cfg.Scheduler.LockTTL,
	}, appLogger, m)

	r := router.NewRouter(
		handler.NewHandler(registry, deps),
		audithandler.NewHandler(auditor),
		slahandler.NewHandler(slaSvc, scheduler),
		notificationhandler.NewHandler(notifier),
		router.RouterConfig{
			CommandRate:  rate.Every(time.Second),
			CommandBurst: 5,
			Registerer:   registry,
			Logger:       appLogger.Zerolog(),
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// failing to start the timers is the one fatal condition
	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		appLogger.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		appLogger.Info("Shutting down...")
	case err := <-serverErr:
		if err != nil {
			appLogger.Error(err, "HTTP server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(err, "HTTP server shutdown failed")
	}
	if err := scheduler.Stop(shutdownCtx); err != nil && !errors.Is(err, worker.ErrNotRunning) {
		appLogger.Error(err, "Scheduler did not stop cleanly")
	}
	return nil
}

func openStore(cfg *config.Config, m *metrics.Metrics, appLogger *logger.Logger) (repository.Store, *sqlx.DB, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		appLogger.Warn(nil, "Using in-memory store; records are lost on exit")
		return memory.New(), nil, nil
	default:
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
		defer cancel()
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewStore(db, m), db, nil
	}
}
