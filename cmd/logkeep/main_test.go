package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/logkeep/internal/lifecycle"
)

func TestMain(m *testing.M) {
	pterm.DisableStyling()
	os.Exit(m.Run())
}

// writeConfig writes a memory-backend config with a journal under dir.
func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	content := fmt.Sprintf(`
backend = "memory"

[memory]
visibility_delay = "20ms"
page_size = 2

[lifecycle]
timeout = "2s"
retry_interval = "10ms"

[journal]
path = %q

[log]
level = "error"
`, filepath.Join(dir, "journal.db"))

	path := filepath.Join(dir, "logkeep.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := execute(context.Background(), args, &out)
	return out.String(), err
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitConfirmed, exitCode(nil))
	assert.Equal(t, exitNotConfirmed, exitCode(errNotConfirmed))
	assert.Equal(t, exitNotConfirmed, exitCode(fmt.Errorf("apply: %w", errNotConfirmed)))
	assert.Equal(t, exitError, exitCode(errors.New("boom")))
}

func TestGroupCreate(t *testing.T) {
	cfg := writeConfig(t, t.TempDir())

	out, err := runCLI(t, "--config", cfg, "group", "create", "/app/web")
	require.NoError(t, err)
	assert.Contains(t, out, "group /app/web is ready")
	assert.Contains(t, out, "arn:")
}

func TestGroupCreate_NotConfirmed(t *testing.T) {
	cfg := writeConfig(t, t.TempDir())

	// The memory backend hides the group for 20ms, longer than the wait.
	_, err := runCLI(t, "--config", cfg, "--timeout", "1ms", "--retry-interval", "1ms", "group", "create", "/app/web")
	assert.ErrorIs(t, err, errNotConfirmed)
}

func TestGroupDescribe_Missing(t *testing.T) {
	cfg := writeConfig(t, t.TempDir())

	_, err := runCLI(t, "--config", cfg, "group", "describe", "/nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, lifecycle.ErrNotFound)
	assert.Equal(t, exitError, exitCode(err))
}

func TestGroupList_Empty(t *testing.T) {
	cfg := writeConfig(t, t.TempDir())

	out, err := runCLI(t, "--config", cfg, "group", "list", "--prefix", "/app")
	require.NoError(t, err)
	assert.Contains(t, out, "no log groups found")
}

func TestGroupList_InvalidPattern(t *testing.T) {
	cfg := writeConfig(t, t.TempDir())

	_, err := runCLI(t, "--config", cfg, "group", "list", "--match", "/app/[web")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid pattern")
}

func TestStreamCreate_CreatesGroup(t *testing.T) {
	cfg := writeConfig(t, t.TempDir())

	out, err := runCLI(t, "--config", cfg, "stream", "create", "/app/web", "access")
	require.NoError(t, err)
	assert.Contains(t, out, "stream /app/web/access is ready")
}

func TestStreamList_MissingGroup(t *testing.T) {
	cfg := writeConfig(t, t.TempDir())

	out, err := runCLI(t, "--config", cfg, "stream", "list", "/nope")
	require.NoError(t, err)
	assert.Contains(t, out, "no streams in /nope")
}

func TestWhoami_Memory(t *testing.T) {
	cfg := writeConfig(t, t.TempDir())

	out, err := runCLI(t, "--config", cfg, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "memory")
	assert.Contains(t, out, "000000000000")
}

func TestRoles_Unsupported(t *testing.T) {
	cfg := writeConfig(t, t.TempDir())

	_, err := runCLI(t, "--config", cfg, "roles")
	assert.ErrorIs(t, err, errUnsupported)
}

func TestUnknownBackend(t *testing.T) {
	cfg := writeConfig(t, t.TempDir())

	_, err := runCLI(t, "--config", cfg, "--backend", "gcp", "group", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown backend")
}

func TestApply_ThenHistory(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir)

	manifest := filepath.Join(dir, "logs.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte(`
groups:
  - name: /app/web
    streams:
      - name: access
  - name: /app/old
    state: absent
`), 0o600))

	out, err := runCLI(t, "--config", cfg, "apply", "-f", manifest)
	require.NoError(t, err)
	assert.Contains(t, out, "3 actions confirmed")

	out, err = runCLI(t, "--config", cfg, "history", "--limit", "0")
	require.NoError(t, err)
	assert.Contains(t, out, lifecycle.OpCreateGroup)
	assert.Contains(t, out, lifecycle.OpCreateStream)
	assert.Contains(t, out, "/app/old")

	out, err = runCLI(t, "--config", cfg, "history", "--key", "/app/web")
	require.NoError(t, err)
	assert.Contains(t, out, "/app/web: 1 operations recorded")

	out, err = runCLI(t, "--config", cfg, "history", "--latest", "/app/web")
	require.NoError(t, err)
	assert.Contains(t, out, "/app/web/access")

	out, err = runCLI(t, "--config", cfg, "history", "--compact", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "removed 2 entries")
}

func TestApply_PolicyDenies(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir)

	manifest := filepath.Join(dir, "logs.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte(`
groups:
  - name: /prod/payments
    state: absent
`), 0o600))

	policy := filepath.Join(dir, "protect.rego")
	require.NoError(t, os.WriteFile(policy, []byte(`package logkeep

import rego.v1

deny contains msg if {
	startswith(input.group, "/prod/")
	msg := sprintf("group %s is protected", [input.group])
}
`), 0o600))

	out, err := runCLI(t, "--config", cfg, "apply", "-f", manifest, "--policy", policy)
	assert.ErrorIs(t, err, errNotConfirmed)
	assert.Contains(t, out, "denied")
	assert.Contains(t, out, "group /prod/payments is protected")
}

func TestApply_RequiresManifest(t *testing.T) {
	cfg := writeConfig(t, t.TempDir())

	_, err := runCLI(t, "--config", cfg, "apply")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file")
}
