// Package config handles TOML configuration for logkeep.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Backend names.
const (
	BackendAWS    = "aws"
	BackendMemory = "memory"
)

// Config is the root configuration structure.
type Config struct {
	Backend   string          `toml:"backend"`
	AWS       AWSConfig       `toml:"aws"`
	Memory    MemoryConfig    `toml:"memory"`
	Lifecycle LifecycleConfig `toml:"lifecycle"`
	OTEL      OTELConfig      `toml:"otel"`
	Journal   JournalConfig   `toml:"journal"`
	Daemon    DaemonConfig    `toml:"daemon"`
	Log       LogConfig       `toml:"log"`
}

// AWSConfig holds AWS backend settings. An empty region defers to the
// SDK's default chain (env, shared config).
type AWSConfig struct {
	Region  string `toml:"region"`
	Profile string `toml:"profile"`
}

// MemoryConfig holds settings for the in-memory backend.
type MemoryConfig struct {
	VisibilityDelayStr string        `toml:"visibility_delay"`
	VisibilityDelay    time.Duration `toml:"-"`
	PageSize           int           `toml:"page_size"`
}

// LifecycleConfig holds wait settings for create and delete.
type LifecycleConfig struct {
	TimeoutStr       string        `toml:"timeout"`
	Timeout          time.Duration `toml:"-"`
	RetryIntervalStr string        `toml:"retry_interval"`
	RetryInterval    time.Duration `toml:"-"`
}

// OTELConfig holds OpenTelemetry settings.
type OTELConfig struct {
	Endpoint    string        `toml:"endpoint"`
	Insecure    bool          `toml:"insecure"`
	ServiceName string        `toml:"service_name"`
	Traces      TracesConfig  `toml:"traces"`
	Metrics     MetricsConfig `toml:"metrics"`
}

// TracesConfig holds tracing settings.
type TracesConfig struct {
	Enabled    bool    `toml:"enabled"`
	SampleRate float64 `toml:"sample_rate"`
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// JournalConfig holds the operation journal settings.
type JournalConfig struct {
	Path     string `toml:"path"`
	Disabled bool   `toml:"disabled"`
}

// DaemonConfig holds settings for continuous apply.
type DaemonConfig struct {
	IntervalStr string        `toml:"interval"`
	Interval    time.Duration `toml:"-"`
	MetricsAddr string        `toml:"metrics_addr"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	// defaults always parse
	_ = parseDurations(cfg)
	return cfg
}

// Load reads and parses a TOML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)

	if err := parseDurations(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Backend == "" {
		cfg.Backend = BackendAWS
	}
	if cfg.Memory.VisibilityDelayStr == "" {
		cfg.Memory.VisibilityDelayStr = "500ms"
	}
	if cfg.Memory.PageSize == 0 {
		cfg.Memory.PageSize = 50
	}
	if cfg.Lifecycle.TimeoutStr == "" {
		cfg.Lifecycle.TimeoutStr = "30s"
	}
	if cfg.Lifecycle.RetryIntervalStr == "" {
		cfg.Lifecycle.RetryIntervalStr = "100ms"
	}
	if cfg.OTEL.ServiceName == "" {
		cfg.OTEL.ServiceName = "logkeep"
	}
	if cfg.Journal.Path == "" {
		cfg.Journal.Path = ".logkeep/journal.db"
	}
	if cfg.Daemon.IntervalStr == "" {
		cfg.Daemon.IntervalStr = "1m"
	}
	if cfg.Daemon.MetricsAddr == "" {
		cfg.Daemon.MetricsAddr = ":9090"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"memory.visibility_delay", cfg.Memory.VisibilityDelayStr, &cfg.Memory.VisibilityDelay},
		{"lifecycle.timeout", cfg.Lifecycle.TimeoutStr, &cfg.Lifecycle.Timeout},
		{"lifecycle.retry_interval", cfg.Lifecycle.RetryIntervalStr, &cfg.Lifecycle.RetryInterval},
		{"daemon.interval", cfg.Daemon.IntervalStr, &cfg.Daemon.Interval},
	}

	for _, f := range fields {
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parse %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}

// Validate checks the configuration is valid.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendAWS, BackendMemory:
	default:
		return fmt.Errorf("backend: unknown backend %q", c.Backend)
	}
	if c.Lifecycle.Timeout <= 0 {
		return fmt.Errorf("lifecycle: timeout must be positive (got %v)", c.Lifecycle.Timeout)
	}
	if c.Lifecycle.RetryInterval <= 0 {
		return fmt.Errorf("lifecycle: retry_interval must be positive (got %v)", c.Lifecycle.RetryInterval)
	}
	if c.Memory.PageSize < 1 {
		return fmt.Errorf("memory: page_size must be at least 1 (got %d)", c.Memory.PageSize)
	}
	if c.OTEL.Traces.SampleRate < 0.0 || c.OTEL.Traces.SampleRate > 1.0 {
		return fmt.Errorf("otel: traces.sample_rate must be between 0.0 and 1.0 (got %v)", c.OTEL.Traces.SampleRate)
	}
	return nil
}
