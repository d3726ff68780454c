package cleanup

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/deskhero/deskhero/internal/kvstore"
)

// GetCleanupMetrics returns a copy of the cumulative cleanup counters.
func (s *Scheduler) GetCleanupMetrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// recordRun folds a finished run into the counters and persists them.
func (s *Scheduler) recordRun(ctx context.Context, jobs []Job, duration time.Duration) {
	s.mu.Lock()
	for _, job := range jobs {
		s.stats.SessionsProcessed += int64(job.RecordsProcessed)
		s.stats.ErrorCount += int64(len(job.Errors))
		if job.Type != JobTypeDelete {
			s.stats.SessionsArchived += int64(job.RecordsAffected)
		} else {
			s.stats.SessionsDeleted += int64(job.RecordsAffected)
		}
	}
	s.stats.Runs++
	// Running average over all runs.
	prev := s.stats.AverageProcessingTimeMs * (s.stats.Runs - 1)
	s.stats.AverageProcessingTimeMs = (prev + duration.Milliseconds()) / s.stats.Runs
	s.stats.LastRunAt = time.Now()
	snapshot := s.stats
	s.mu.Unlock()

	s.persistMetrics(ctx, snapshot)
}

// loadMetrics restores persisted counters; absence or corruption starts
// from zero.
func (s *Scheduler) loadMetrics(ctx context.Context) {
	raw, err := s.kv.Get(ctx, kvstore.MetricsKey)
	if errors.Is(err, kvstore.ErrKeyNotFound) {
		return
	}
	if err != nil {
		s.log.Error("failed to load cleanup metrics", err)
		return
	}
	var m Metrics
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		s.log.Warn("ignoring corrupted cleanup metrics")
		return
	}
	s.mu.Lock()
	s.stats = m
	s.mu.Unlock()
}

func (s *Scheduler) persistMetrics(ctx context.Context, m Metrics) {
	payload, err := json.Marshal(m)
	if err != nil {
		s.log.Error("failed to marshal cleanup metrics", err)
		return
	}
	// Metrics survive restarts; no expiry.
	if err := s.kv.SetWithExpiry(ctx, kvstore.MetricsKey, string(payload), 0); err != nil {
		s.log.Error("failed to persist cleanup metrics", err)
	}
}
