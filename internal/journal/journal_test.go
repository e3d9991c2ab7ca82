package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) (*Journal, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "journal.db")
	j, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j, path
}

func TestRecord_FillsIdentity(t *testing.T) {
	j, _ := openTestJournal(t)

	e, err := j.Record(Entry{Op: "create_group", Key: "app", Status: StatusConfirmed, Duration: 150 * time.Millisecond})
	require.NoError(t, err)

	assert.Equal(t, int64(1), e.Rev)
	_, err = uuid.Parse(e.ID)
	assert.NoError(t, err)
	assert.WithinDuration(t, time.Now(), e.At, time.Second)
	assert.Equal(t, int64(1), j.CurrentRevision())
}

func TestRecord_RequiresKey(t *testing.T) {
	j, _ := openTestJournal(t)

	_, err := j.Record(Entry{Op: "create_group"})
	require.Error(t, err)
	assert.Equal(t, int64(0), j.CurrentRevision())
}

func TestLatest(t *testing.T) {
	j, _ := openTestJournal(t)

	_, err := j.Record(Entry{Op: "create_group", Key: "app", Status: StatusUnconfirmed})
	require.NoError(t, err)
	_, err = j.Record(Entry{Op: "create_group", Key: "app", Status: StatusConfirmed})
	require.NoError(t, err)
	_, err = j.Record(Entry{Op: "create_stream", Key: "app/web", Status: StatusError, Error: "throttled"})
	require.NoError(t, err)

	latest, ok := j.Latest("app")
	require.True(t, ok)
	assert.Equal(t, StatusConfirmed, latest.Status)
	assert.Equal(t, int64(2), latest.Rev)
	assert.Equal(t, 2, j.Count("app"))

	_, ok = j.Latest("missing")
	assert.False(t, ok)
	assert.Equal(t, 0, j.Count("missing"))
}

func TestLatestByPrefix(t *testing.T) {
	j, _ := openTestJournal(t)

	for _, key := range []string{"db", "app/web", "app", "app/api", "billing"} {
		_, err := j.Record(Entry{Op: "create", Key: key, Status: StatusConfirmed})
		require.NoError(t, err)
	}

	got := j.LatestByPrefix("app")
	keys := make([]string, 0, len(got))
	for _, e := range got {
		keys = append(keys, e.Key)
	}
	assert.Equal(t, []string{"app", "app/api", "app/web"}, keys)

	assert.Len(t, j.LatestByPrefix(""), 5)
}

func TestHistory_NewestFirst(t *testing.T) {
	j, _ := openTestJournal(t)

	for _, key := range []string{"a", "b", "c"} {
		_, err := j.Record(Entry{Op: "delete_group", Key: key, Status: StatusConfirmed})
		require.NoError(t, err)
	}

	all, err := j.History(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].Key)
	assert.Equal(t, "a", all[2].Key)

	two, err := j.History(2)
	require.NoError(t, err)
	require.Len(t, two, 2)
	assert.Equal(t, "b", two[1].Key)
}

func TestReopen_RebuildsIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(path)
	require.NoError(t, err)
	_, err = j.Record(Entry{Op: "create_group", Key: "app", Status: StatusUnconfirmed})
	require.NoError(t, err)
	_, err = j.Record(Entry{Op: "create_group", Key: "app", Status: StatusConfirmed})
	require.NoError(t, err)
	require.NoError(t, j.Close())

	j, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = j.Close() }()

	assert.Equal(t, int64(2), j.CurrentRevision())
	latest, ok := j.Latest("app")
	require.True(t, ok)
	assert.Equal(t, StatusConfirmed, latest.Status)

	e, err := j.Record(Entry{Op: "delete_group", Key: "app", Status: StatusConfirmed})
	require.NoError(t, err)
	assert.Equal(t, int64(3), e.Rev)
}

func TestCompact(t *testing.T) {
	j, _ := openTestJournal(t)

	for i := 0; i < 5; i++ {
		_, err := j.Record(Entry{Op: "create_group", Key: "app", Status: StatusConfirmed})
		require.NoError(t, err)
	}

	removed, err := j.Compact(2)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	history, err := j.History(0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, int64(5), history[0].Rev)
	assert.Equal(t, int64(4), history[1].Rev)

	removed, err = j.Compact(10)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestClosed(t *testing.T) {
	j, _ := openTestJournal(t)
	require.NoError(t, j.Close())
	require.NoError(t, j.Close())

	_, err := j.Record(Entry{Key: "app"})
	assert.ErrorIs(t, err, ErrClosed)

	_, err = j.History(1)
	assert.ErrorIs(t, err, ErrClosed)
}
