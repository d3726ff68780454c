// Package app wires the DeskHero session lifecycle service: the fast store,
// the durable store, the recovery coordinator, the retention engine and the
// cleanup scheduler, plus the optional Prometheus listener.
package app

import (
	"context"
	"net/http"
	"sync"

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

// App holds every major component and manages their lifecycle.
type App struct {
	config *config.Config
	logger *logger.Logger

	kv kvstore.Client
	db *store.Store

	sessionManager *sessions.Manager
	coordinator    *recovery.Coordinator
	policies       *retention.Engine
	cleaner        *cleanup.Scheduler

	prom      *metrics.Metrics
	bus       *notify.Bus
	metricSrv *http.Server

	mu      sync.RWMutex
	started bool
}

// New creates an App with configuration and logger only; the remaining
// components are built in Initialize.
func New(cfg *config.Config, log *logger.Logger) *App {
	return &App{
		config: cfg,
		logger: log,
	}
}

// Coordinator exposes the recovery coordinator for command handlers.
func (a *App) Coordinator() *recovery.Coordinator {
	return a.coordinator
}

// Cleaner exposes the cleanup scheduler for command handlers.
func (a *App) Cleaner() *cleanup.Scheduler {
	return a.cleaner
}

// Policies exposes the retention policy engine for command handlers.
func (a *App) Policies() *retention.Engine {
	return a.policies
}

// Run initializes all components and blocks until the context is cancelled,
// then performs a graceful shutdown.
func (a *App) Run(ctx context.Context) error {
	if err := a.Initialize(ctx); err != nil {
		return err
	}

	a.logger.Info("deskhero is running")

	<-ctx.Done()

	return a.Shutdown()
}
