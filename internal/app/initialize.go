package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/deskhero/deskhero/internal/cleanup"
	"github.com/deskhero/deskhero/internal/config"
	"github.com/deskhero/deskhero/internal/kvstore"
	"github.com/deskhero/deskhero/internal/logger"
	"github.com/deskhero/deskhero/internal/metrics"
	"github.com/deskhero/deskhero/internal/notify"
	"github.com/deskhero/deskhero/internal/recovery"
	"github.com/deskhero/deskhero/internal/retention"
	"github.com/deskhero/deskhero/internal/sessions"
	"github.com/deskhero/deskhero/internal/store"
)

// Initialize builds and starts every component in dependency order:
// fast store, durable store, session manager, recovery coordinator,
// retention engine, cleanup scheduler, metrics listener.
func (a *App) Initialize(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return fmt.Errorf("application already started")
	}

	a.bus = notify.NewBus()
	a.prom = metrics.New()

	a.kv = kvstore.NewRedisClient(kvstore.Config{
		Addr:     a.config.Redis.Addr,
		Password: a.config.Redis.Password,
		DB:       a.config.Redis.DB,
	})
	a.logger.Info("fast store client created",
		logger.Field{Key: "addr", Value: a.config.Redis.Addr},
		logger.Field{Key: "db", Value: a.config.Redis.DB})

	db, err := store.New(a.config.Database.Path)
	if err != nil {
		return fmt.Errorf("open durable store: %w", err)
	}
	a.db = db
	a.logger.Info("durable store opened",
		logger.Field{Key: "path", Value: a.config.Database.Path})

	a.sessionManager = sessions.NewManager(a.db, a.logger)

	a.coordinator = recovery.NewCoordinator(
		a.kv,
		a.sessionManager,
		a.db,
		recovery.NewConnectionTable(),
		a.bus,
		a.prom,
		a.logger,
		recovery.Config{
			SnapshotTTL:       time.Duration(a.config.Recovery.SnapshotTTLMinutes) * time.Minute,
			SnapshotInterval:  time.Duration(a.config.Recovery.SnapshotIntervalSeconds) * time.Second,
			MaxMessageHistory: a.config.Recovery.MaxMessageHistory,
		},
	)
	if err := a.coordinator.Initialize(ctx); err != nil {
		return err
	}

	a.policies = retention.NewEngine(a.kv, a.logger)

	a.cleaner = cleanup.NewScheduler(
		a.kv,
		a.db,
		a.policies,
		a.coordinator,
		a.bus,
		a.prom,
		a.logger,
		cleanup.Config{
			Enabled:    a.config.Cleanup.Enabled,
			Hour:       a.config.Cleanup.Hour,
			BatchLimit: a.config.Cleanup.BatchLimit,
		},
	)
	if err := a.cleaner.Start(ctx); err != nil {
		return fmt.Errorf("start cleanup scheduler: %w", err)
	}

	if a.config.Metrics.Enabled {
		a.startMetricsListener(a.config.Metrics)
	}

	a.started = true
	return nil
}

// startMetricsListener serves /metrics on its own listener. Listener
// failure is logged, not fatal: observability must not take the service
// down.
func (a *App) startMetricsListener(cfg config.MetricsConfig) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.prom.Handler())
	a.metricSrv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.logger.Info("metrics listener started",
			logger.Field{Key: "addr", Value: cfg.Addr})
		if err := a.metricSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics listener failed", err)
		}
	}()
}
