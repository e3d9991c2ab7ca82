package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
backend = "memory"

[aws]
region = "eu-west-1"
profile = "production"

[memory]
visibility_delay = "120ms"
page_size = 2

[lifecycle]
timeout = "500ms"
retry_interval = "50ms"

[otel]
endpoint = "localhost:4317"
insecure = true
service_name = "logkeep"

[otel.traces]
enabled = true
sample_rate = 1.0

[otel.metrics]
enabled = true

[journal]
path = "/tmp/journal.db"

[daemon]
interval = "5m"
metrics_addr = ":9100"

[log]
level = "debug"
`
	path := writeTempConfig(t, content)
	cfg, err := Load(path)

	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, BackendMemory, cfg.Backend)
	assert.Equal(t, "eu-west-1", cfg.AWS.Region)
	assert.Equal(t, "production", cfg.AWS.Profile)
	assert.Equal(t, 120*time.Millisecond, cfg.Memory.VisibilityDelay)
	assert.Equal(t, 2, cfg.Memory.PageSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Lifecycle.Timeout)
	assert.Equal(t, 50*time.Millisecond, cfg.Lifecycle.RetryInterval)
	assert.Equal(t, "localhost:4317", cfg.OTEL.Endpoint)
	assert.True(t, cfg.OTEL.Insecure)
	assert.True(t, cfg.OTEL.Traces.Enabled)
	assert.Equal(t, 1.0, cfg.OTEL.Traces.SampleRate)
	assert.True(t, cfg.OTEL.Metrics.Enabled)
	assert.Equal(t, "/tmp/journal.db", cfg.Journal.Path)
	assert.Equal(t, 5*time.Minute, cfg.Daemon.Interval)
	assert.Equal(t, ":9100", cfg.Daemon.MetricsAddr)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_Defaults(t *testing.T) {
	path := writeTempConfig(t, "")
	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, BackendAWS, cfg.Backend)
	assert.Equal(t, "logkeep", cfg.OTEL.ServiceName)
	assert.Equal(t, 30*time.Second, cfg.Lifecycle.Timeout)
	assert.Equal(t, 100*time.Millisecond, cfg.Lifecycle.RetryInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.Memory.VisibilityDelay)
	assert.Equal(t, time.Minute, cfg.Daemon.Interval)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestDefault_MatchesEmptyFile(t *testing.T) {
	path := writeTempConfig(t, "")
	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, loaded, Default())
	assert.NoError(t, Default().Validate())
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	require.Error(t, err)
}

func TestLoad_InvalidTOML(t *testing.T) {
	content := `
[aws
region =
`
	path := writeTempConfig(t, content)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_InvalidDuration(t *testing.T) {
	content := `
[lifecycle]
retry_interval = "not-a-duration"
`
	path := writeTempConfig(t, content)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lifecycle.retry_interval")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown backend", func(c *Config) { c.Backend = "gcp" }, "unknown backend"},
		{"zero timeout", func(c *Config) { c.Lifecycle.Timeout = 0 }, "timeout must be positive"},
		{"zero interval", func(c *Config) { c.Lifecycle.RetryInterval = 0 }, "retry_interval must be positive"},
		{"page size", func(c *Config) { c.Memory.PageSize = 0 }, "page_size"},
		{"sample rate", func(c *Config) { c.OTEL.Traces.SampleRate = 1.5 }, "sample_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	err := os.WriteFile(path, []byte(content), 0644)
	require.NoError(t, err)
	return path
}
