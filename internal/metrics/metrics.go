// Package metrics provides Prometheus metrics for the session lifecycle core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	SnapshotsTotal   *prometheus.CounterVec
	SnapshotErrors   prometheus.Counter
	RecoveriesTotal  *prometheus.CounterVec
	CleanupJobsTotal *prometheus.CounterVec
	CleanupDuration  prometheus.Histogram
	TrackedSessions  prometheus.Gauge

	registry *prometheus.Registry
}

// New creates and registers all collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		SnapshotsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskhero_snapshots_total",
				Help: "Total session snapshots written, by reason.",
			},
			[]string{"reason"},
		),
		SnapshotErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "deskhero_snapshot_errors_total",
				Help: "Snapshot writes that failed and were swallowed.",
			},
		),
		RecoveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskhero_recoveries_total",
				Help: "Session recovery attempts by outcome (full, partial, failed).",
			},
			[]string{"type"},
		),
		CleanupJobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskhero_cleanup_jobs_total",
				Help: "Cleanup jobs by data type and final status.",
			},
			[]string{"data_type", "status"},
		),
		CleanupDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "deskhero_cleanup_duration_seconds",
				Help:    "Duration of full cleanup runs.",
				Buckets: prometheus.DefBuckets,
			},
		),
		TrackedSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "deskhero_tracked_sessions",
				Help: "Sessions currently tracked with a live connection.",
			},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.SnapshotsTotal,
		m.SnapshotErrors,
		m.RecoveriesTotal,
		m.CleanupJobsTotal,
		m.CleanupDuration,
		m.TrackedSessions,
	)

	return m
}

// Handler returns an HTTP handler serving the registry in Prometheus format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
