package app

import (
	"context"
	"time"
)

// Shutdown stops components in reverse dependency order: cleanup scheduler,
// metrics listener, recovery coordinator (which closes the fast store),
// then the durable store. Individual failures are logged and do not stop
// the sequence; the first error is returned.
func (a *App) Shutdown() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started {
		return nil
	}

	a.logger.Info("shutting down")

	var firstErr error

	if a.cleaner != nil {
		a.cleaner.Stop()
	}

	if a.metricSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.metricSrv.Shutdown(ctx); err != nil {
			a.logger.Error("failed to stop metrics listener", err)
			if firstErr == nil {
				firstErr = err
			}
		}
		cancel()
	}

	if a.coordinator != nil {
		if err := a.coordinator.Cleanup(); err != nil {
			a.logger.Error("failed to stop recovery coordinator", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("failed to close durable store", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	a.started = false
	a.logger.Info("shutdown complete")
	return firstErr
}
