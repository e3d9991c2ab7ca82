package reconcile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleManifest = `
groups:
  - name: /app/web
    streams:
      - name: access
      - name: legacy
        state: absent
  - name: /app/old
    state: absent
`

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest([]byte(sampleManifest))
	require.NoError(t, err)

	require.Len(t, m.Groups, 2)
	web := m.Groups[0]
	assert.Equal(t, "/app/web", web.Name)
	assert.Equal(t, StatePresent, web.State)
	require.Len(t, web.Streams, 2)
	assert.Equal(t, StatePresent, web.Streams[0].State)
	assert.Equal(t, StateAbsent, web.Streams[1].State)
	assert.Equal(t, StateAbsent, m.Groups[1].State)
	assert.Equal(t, []string{"/app/web", "/app/old"}, m.GroupNames())
}

func TestLoadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logkeep.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleManifest), 0o600))

	m, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Len(t, m.Groups, 2)

	_, err = LoadManifest(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read manifest")
}

func TestParseManifest_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "bad yaml",
			yaml:    "groups: [",
			wantErr: "parse manifest",
		},
		{
			name:    "missing group name",
			yaml:    "groups:\n  - state: present\n",
			wantErr: "groups[0]: name is required",
		},
		{
			name:    "duplicate group",
			yaml:    "groups:\n  - name: a\n  - name: a\n",
			wantErr: `group "a": listed more than once`,
		},
		{
			name:    "unknown state",
			yaml:    "groups:\n  - name: a\n    state: gone\n",
			wantErr: `unknown state "gone"`,
		},
		{
			name:    "duplicate stream",
			yaml:    "groups:\n  - name: a\n    streams:\n      - name: s\n      - name: s\n",
			wantErr: "stream a/s: listed more than once",
		},
		{
			name:    "present stream in absent group",
			yaml:    "groups:\n  - name: a\n    state: absent\n    streams:\n      - name: s\n",
			wantErr: "present in an absent group",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseManifest_Empty(t *testing.T) {
	m, err := ParseManifest([]byte(""))
	require.NoError(t, err)
	assert.Empty(t, m.Groups)
}
