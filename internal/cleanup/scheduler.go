package cleanup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/deskhero/deskhero/internal/kvstore"
	"github.com/deskhero/deskhero/internal/logger"
	"github.com/deskhero/deskhero/internal/metrics"
	"github.com/deskhero/deskhero/internal/notify"
	"github.com/deskhero/deskhero/internal/recovery"
	"github.com/deskhero/deskhero/internal/retention"
	"github.com/deskhero/deskhero/internal/store"
)

// ErrCleanupInProgress is returned when RunCleanup is invoked while another
// run is still active. Cleanup is the only operation with a process-wide
// mutual-exclusion guard.
var ErrCleanupInProgress = errors.New("cleanup already in progress")

// Config holds scheduler tuning.
type Config struct {
	Enabled bool // arm the daily schedule
	Hour    int  // hour of day (0-23) for the scheduled run
	// BatchLimit caps records processed per data type per run; 0 = no cap.
	BatchLimit int
}

// Scheduler enforces retention policies on a daily cadence and on demand.
type Scheduler struct {
	kv       kvstore.Client
	db       *store.Store
	policies *retention.Engine
	coord    *recovery.Coordinator
	log      *logger.Logger
	prom     *metrics.Metrics
	bus      *notify.Bus
	cfg      Config

	cron    *cron.Cron
	running atomic.Bool

	mu    sync.Mutex
	stats Metrics
}

// NewScheduler wires a cleanup scheduler. prom and bus may be nil.
func NewScheduler(
	kv kvstore.Client,
	db *store.Store,
	policies *retention.Engine,
	coord *recovery.Coordinator,
	bus *notify.Bus,
	prom *metrics.Metrics,
	log *logger.Logger,
	cfg Config,
) *Scheduler {
	if cfg.Hour < 0 || cfg.Hour > 23 {
		cfg.Hour = 3
	}
	return &Scheduler{
		kv:       kv,
		db:       db,
		policies: policies,
		coord:    coord,
		log:      log,
		prom:     prom,
		bus:      bus,
		cfg:      cfg,
	}
}

// Start loads persisted state and arms the daily schedule. Scheduled run
// failures are logged and never fatal; cron re-arms the next day regardless
// of outcome.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.policies.Load(ctx); err != nil {
		return err
	}
	s.loadMetrics(ctx)

	if !s.cfg.Enabled {
		s.log.Info("cleanup schedule disabled")
		return nil
	}

	s.cron = cron.New()
	spec := fmt.Sprintf("0 %d * * *", s.cfg.Hour)
	_, err := s.cron.AddFunc(spec, func() {
		runCtx, cancel := context.WithTimeout(context.Background(), time.Hour)
		defer cancel()
		if _, err := s.RunCleanup(runCtx); err != nil {
			s.log.Error("scheduled cleanup failed", err)
		}
	})
	if err != nil {
		return fmt.Errorf("arm cleanup schedule: %w", err)
	}
	s.cron.Start()

	s.log.Info("cleanup schedule armed",
		logger.Field{Key: "hour", Value: s.cfg.Hour})
	return nil
}

// Stop halts the daily schedule. An in-flight run completes.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// RunCleanup enforces retention for the requested data types, or every type
// with a policy when none are given. Data types run strictly sequentially to
// bound load on the durable store; a single record's failure is collected on
// the job and never aborts the batch.
func (s *Scheduler) RunCleanup(ctx context.Context, dataTypes ...string) ([]Job, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrCleanupInProgress
	}
	defer s.running.Store(false)

	if len(dataTypes) == 0 {
		dataTypes = s.policies.DataTypes()
	}

	start := time.Now()
	s.log.Info("cleanup run started",
		logger.Field{Key: "data_types", Value: dataTypes})

	var jobs []Job
	for _, dataType := range dataTypes {
		policy, ok := s.policies.Policy(dataType)
		if !ok {
			s.log.Warn("skipping data type without policy",
				logger.Field{Key: "data_type", Value: dataType})
			continue
		}
		job := s.runJob(ctx, policy)
		jobs = append(jobs, job)

		if s.prom != nil {
			s.prom.CleanupJobsTotal.WithLabelValues(job.DataType, job.Status).Inc()
		}
		if s.bus != nil {
			s.bus.Publish(notify.Event{
				Type:     notify.EventCleanupJobCompleted,
				DataType: job.DataType,
				Metadata: map[string]any{
					"job_id":            job.ID,
					"status":            job.Status,
					"records_processed": job.RecordsProcessed,
					"records_affected":  job.RecordsAffected,
					"errors":            len(job.Errors),
				},
			})
		}
	}

	duration := time.Since(start)
	s.recordRun(ctx, jobs, duration)
	if s.prom != nil {
		s.prom.CleanupDuration.Observe(duration.Seconds())
	}

	if err := s.db.InsertAudit(ctx, "cleanup_run", "",
		fmt.Sprintf("%d jobs in %dms", len(jobs), duration.Milliseconds())); err != nil {
		s.log.Warn("cleanup run audit entry failed",
			logger.Field{Key: "error", Value: err.Error()})
	}

	s.log.Info("cleanup run finished",
		logger.Field{Key: "jobs", Value: len(jobs)},
		logger.Field{Key: "duration_ms", Value: duration.Milliseconds()})
	return jobs, nil
}

// runJob enforces one policy. The returned job carries partial-failure
// detail; only a top-level fetch error marks the job failed.
func (s *Scheduler) runJob(ctx context.Context, policy retention.Policy) Job {
	job := Job{
		ID:        uuid.New().String(),
		Type:      jobTypeFor(policy),
		Status:    JobStatusRunning,
		DataType:  policy.DataType,
		StartedAt: time.Now(),
	}

	switch policy.DataType {
	case store.DataTypeRecoverySnapshots:
		// Snapshots live in the fast store only; deletion is delegated to
		// the coordinator, which owns the snapshot key namespace.
		scanned, deleted, err := s.coord.CleanupExpiredSnapshots(ctx, policy.RetentionWindow())
		job.RecordsProcessed = scanned
		job.RecordsAffected = deleted
		if err != nil {
			job.Errors = append(job.Errors, err.Error())
			job.Status = JobStatusFailed
		} else {
			job.Status = JobStatusCompleted
		}
	default:
		s.runDurableJob(ctx, policy, &job)
	}

	now := time.Now()
	job.CompletedAt = &now
	return job
}

func (s *Scheduler) runDurableJob(ctx context.Context, policy retention.Policy, job *Job) {
	cutoff := policy.Cutoff(time.Now())
	records, err := s.db.FindOlderThan(ctx, policy.DataType, cutoff, s.cfg.BatchLimit)
	if err != nil {
		job.Errors = append(job.Errors, err.Error())
		job.Status = JobStatusFailed
		return
	}

	job.RecordsProcessed = len(records)
	for _, rec := range records {
		if policy.ArchiveEnabled {
			if err := s.archiveExpiredRecord(ctx, policy, rec); err != nil {
				// Never delete a record whose archive write was not
				// confirmed; skip it and move on.
				job.Errors = append(job.Errors, fmt.Sprintf("archive %s: %v", rec.ID, err))
				continue
			}
		}

		if policy.DeleteAfterArchive || !policy.ArchiveEnabled {
			if err := s.db.DeleteByID(ctx, policy.DataType, rec.ID); err != nil {
				// The archive copy already exists; the orphan is logged,
				// not rolled back.
				job.Errors = append(job.Errors, fmt.Sprintf("delete %s: %v", rec.ID, err))
				s.log.Warn("archived record could not be deleted",
					logger.Field{Key: "data_type", Value: policy.DataType},
					logger.Field{Key: "record_id", Value: rec.ID})
				continue
			}
		}
		job.RecordsAffected++
	}
	job.Status = JobStatusCompleted
}

// jobTypeFor classifies a job by the dominant action its policy takes.
func jobTypeFor(p retention.Policy) string {
	switch {
	case p.ArchiveEnabled && p.AnonymizeBeforeArchive:
		return JobTypeAnonymize
	case p.ArchiveEnabled && p.CompressionEnabled:
		return JobTypeCompress
	case p.ArchiveEnabled:
		return JobTypeArchive
	default:
		return JobTypeDelete
	}
}
