// Package config provides configuration loading and validation for DeskHero.
// It supports TOML configuration files with environment variable expansion,
// default values, and validation.
//
// Configuration structure:
//   - [logging]: Log level, format, and output
//   - [redis]: Fast-store connection (snapshots, archives, policies, metrics)
//   - [database]: Durable SQLite store path
//   - [recovery]: Snapshot TTL and periodic snapshot interval
//   - [cleanup]: Daily retention enforcement schedule
//   - [metrics]: Prometheus listener
//
// Environment variables can be referenced using ${VAR} or ${VAR:default}
// syntax. For example: password = "${REDIS_PASSWORD:}"
package config

// Config represents the main application configuration.
type Config struct {
	Logging  LoggingConfig  `toml:"logging"`
	Redis    RedisConfig    `toml:"redis"`
	Database DatabaseConfig `toml:"database"`
	Recovery RecoveryConfig `toml:"recovery"`
	Cleanup  CleanupConfig  `toml:"cleanup"`
	Metrics  MetricsConfig  `toml:"metrics"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Output string `toml:"output"`
}

// RedisConfig configures the fast key-value store.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// DatabaseConfig configures the durable relational store.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// RecoveryConfig configures the session recovery coordinator.
type RecoveryConfig struct {
	// SnapshotTTLMinutes is the expiry applied to snapshot writes. The
	// recovery_snapshots retention policy prunes the same namespace by
	// timestamp during cleanup runs; the write TTL is authoritative here.
	SnapshotTTLMinutes int `toml:"snapshot_ttl_minutes"`
	// SnapshotIntervalSeconds is the periodic snapshot cadence for tracked
	// connections.
	SnapshotIntervalSeconds int `toml:"snapshot_interval_seconds"`
	// MaxMessageHistory caps messages restored on recovery.
	MaxMessageHistory int `toml:"max_message_history"`
}

// CleanupConfig configures the retention enforcement scheduler.
type CleanupConfig struct {
	Enabled    bool `toml:"enabled"`
	Hour       int  `toml:"hour"`
	BatchLimit int  `toml:"batch_limit"`
}

// MetricsConfig configures the Prometheus listener.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}
