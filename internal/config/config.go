// Package config loads Conductor Core's YAML configuration and applies the
// environment variable overrides required by spec §6, following the
// teacher's load-defaults-then-merge-YAML-then-apply-env-overrides shape
// in its own internal/config/config.go.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// RetryConfig holds exponential-backoff parameters for Transient errors
// (spec §7). It is loaded and resolved here only: the Wave Executor's
// withRetry does not read it and uses its own fixed schedule (5 attempts,
// 200ms base delay, the same values as these defaults).
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"-"`
	BaseDelayMS int           `yaml:"base_delay_ms"`
}

// Config holds every tunable named in spec §6 plus the ambient stack
// settings (log level/dir) the distilled spec is silent on.
type Config struct {
	// LockTimeout is how long a Durable Store mutator waits for an
	// exclusive lock before failing with LockBusy/LockTimeout.
	LockTimeout time.Duration `yaml:"-"`
	LockTimeoutMS int         `yaml:"lock_timeout_ms"`

	// ActivityMaxBytes is the rotation threshold for activity_stream.md.
	ActivityMaxBytes int64 `yaml:"activity_max_bytes"`

	// StaleTaskThreshold is how long a "running" watchdog entry can go
	// without a heartbeat before startup reconciliation marks it failed.
	StaleTaskThreshold time.Duration `yaml:"-"`
	StaleTaskSeconds   int           `yaml:"stale_task_seconds"`

	// CheckpointBusyTimeout bounds how long a micro-checkpoint blocks
	// waiting for an in-progress wave checkpoint (spec §4.7).
	CheckpointBusyTimeout time.Duration `yaml:"-"`
	CheckpointBusyMS      int           `yaml:"checkpoint_busy_ms"`

	Retry RetryConfig `yaml:"retry"`

	LogLevel string `yaml:"log_level"`
	LogDir   string `yaml:"log_dir"`

	// StateDir is the root directory for all Durable Store-owned files
	// (tasks.md, execution_plan.json, task_timers.json,
	// wave_executor_state.json, activity_stream.md, lock files).
	StateDir string `yaml:"state_dir"`
}

// DefaultConfig returns the built-in defaults named in spec §6.
func DefaultConfig() *Config {
	cfg := &Config{
		LockTimeoutMS:         30000,
		ActivityMaxBytes:      102400,
		StaleTaskSeconds:      3600,
		CheckpointBusyMS:      30000,
		Retry: RetryConfig{
			MaxAttempts: 5,
			BaseDelayMS: 200,
		},
		LogLevel: "info",
		LogDir:   ".conductor-core/logs",
		StateDir: ".conductor-core",
	}
	cfg.resolveDurations()
	return cfg
}

func (c *Config) resolveDurations() {
	c.LockTimeout = time.Duration(c.LockTimeoutMS) * time.Millisecond
	c.StaleTaskThreshold = time.Duration(c.StaleTaskSeconds) * time.Second
	c.CheckpointBusyTimeout = time.Duration(c.CheckpointBusyMS) * time.Millisecond
	c.Retry.BaseDelay = time.Duration(c.Retry.BaseDelayMS) * time.Millisecond
}

// LoadConfig loads configuration from path, merging over defaults, then
// applies environment variable overrides. A missing file is not an error —
// defaults (plus env overrides) are returned, matching the teacher's
// LoadConfig behavior for a missing config file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to access config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	cfg.resolveDurations()
	return cfg, nil
}

// applyEnvOverrides applies the three environment variables spec §6
// requires to govern Durable Store / Watchdog behavior:
//   - LOCK_TIMEOUT_MS
//   - ACTIVITY_MAX_BYTES
//   - STALE_TASK_SECONDS
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("LOCK_TIMEOUT_MS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.LockTimeoutMS = n
		}
	}
	if val := os.Getenv("ACTIVITY_MAX_BYTES"); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.ActivityMaxBytes = n
		}
	}
	if val := os.Getenv("STALE_TASK_SECONDS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.StaleTaskSeconds = n
		}
	}
}
