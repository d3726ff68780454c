package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Load reads, defaults and env-expands a TOML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	expandEnvVars(&cfg)

	return &cfg, nil
}

// Default returns a configuration with every default applied, used when no
// config file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() []error {
	var errs []error

	if c.Logging.Level == "" {
		errs = append(errs, fmt.Errorf("logging.level is required"))
	} else {
		validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
		if !validLevels[strings.ToLower(c.Logging.Level)] {
			errs = append(errs, fmt.Errorf("invalid logging.level: %s (expected: debug, info, warn, error)", c.Logging.Level))
		}
	}

	if c.Logging.Format != "" {
		validFormats := map[string]bool{"json": true, "text": true}
		if !validFormats[strings.ToLower(c.Logging.Format)] {
			errs = append(errs, fmt.Errorf("invalid logging.format: %s (expected: json, text)", c.Logging.Format))
		}
	}

	if c.Redis.Addr == "" {
		errs = append(errs, fmt.Errorf("redis.addr is required"))
	}
	if c.Redis.DB < 0 || c.Redis.DB > 15 {
		errs = append(errs, fmt.Errorf("redis.db must be between 0 and 15 (got %d)", c.Redis.DB))
	}

	if c.Database.Path == "" {
		errs = append(errs, fmt.Errorf("database.path is required"))
	} else if strings.Contains(c.Database.Path, "..") {
		errs = append(errs, fmt.Errorf("database.path contains potentially dangerous path traversal sequence"))
	}

	if c.Recovery.SnapshotTTLMinutes < 1 {
		errs = append(errs, fmt.Errorf("recovery.snapshot_ttl_minutes must be >= 1 (got %d)", c.Recovery.SnapshotTTLMinutes))
	}
	if c.Recovery.SnapshotIntervalSeconds < 1 {
		errs = append(errs, fmt.Errorf("recovery.snapshot_interval_seconds must be >= 1 (got %d)", c.Recovery.SnapshotIntervalSeconds))
	}
	if c.Recovery.MaxMessageHistory < 1 {
		errs = append(errs, fmt.Errorf("recovery.max_message_history must be >= 1 (got %d)", c.Recovery.MaxMessageHistory))
	}

	if c.Cleanup.Hour < 0 || c.Cleanup.Hour > 23 {
		errs = append(errs, fmt.Errorf("cleanup.hour must be between 0 and 23 (got %d)", c.Cleanup.Hour))
	}
	if c.Cleanup.BatchLimit < 0 {
		errs = append(errs, fmt.Errorf("cleanup.batch_limit must be >= 0 (got %d)", c.Cleanup.BatchLimit))
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		errs = append(errs, fmt.Errorf("metrics.addr is required when metrics are enabled"))
	}

	return errs
}

// applyDefaults fills zero values with sensible defaults.
func applyDefaults(c *Config) {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}

	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}

	if c.Database.Path == "" {
		c.Database.Path = "./data/deskhero.db"
	}

	if c.Recovery.SnapshotTTLMinutes == 0 {
		c.Recovery.SnapshotTTLMinutes = 24 * 60
	}
	if c.Recovery.SnapshotIntervalSeconds == 0 {
		c.Recovery.SnapshotIntervalSeconds = 30
	}
	if c.Recovery.MaxMessageHistory == 0 {
		c.Recovery.MaxMessageHistory = 50
	}

	if c.Cleanup.Hour == 0 {
		c.Cleanup.Hour = 3
	}
	if c.Cleanup.BatchLimit == 0 {
		c.Cleanup.BatchLimit = 1000
	}

	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9090"
	}
}

// expandEnvVars expands ${VAR} and ${VAR:default} references in string
// fields that commonly carry secrets or deployment-specific values.
func expandEnvVars(c *Config) {
	c.Redis.Addr = expandString(c.Redis.Addr)
	c.Redis.Password = expandString(c.Redis.Password)
	c.Database.Path = expandString(c.Database.Path)
	c.Logging.Output = expandString(c.Logging.Output)
}

// expandString replaces every ${VAR} or ${VAR:default} occurrence.
func expandString(s string) string {
	for {
		start := strings.Index(s, "${")
		if start == -1 {
			return s
		}
		end := strings.Index(s[start:], "}")
		if end == -1 {
			return s
		}
		end += start

		ref := s[start+2 : end]
		name := ref
		def := ""
		if idx := strings.Index(ref, ":"); idx != -1 {
			name = ref[:idx]
			def = ref[idx+1:]
		}

		value, ok := os.LookupEnv(name)
		if !ok {
			value = def
		}
		s = s[:start] + value + s[end+1:]
	}
}
