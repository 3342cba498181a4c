package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mschirtzinger/pushy/internal/events"
	"github.com/Mschirtzinger/pushy/internal/push"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func outcome(path string, action events.Action, result push.Result, at time.Time) push.Outcome {
	return push.Outcome{
		Time:    at,
		Event:   events.Event{Path: path, Kind: events.File, Action: action},
		Backend: "local",
		Result:  result,
	}
}

func TestOpen_CreatesDirectoryAndSchema(t *testing.T) {
	s := openStore(t)
	assert.FileExists(t, s.Path())
	require.NoError(t, s.InitSchema(context.Background()), "schema creation is idempotent")
}

func TestRecordAndRecent(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, outcome("/w/a", events.Added, push.Pushed, baseTime)))
	require.NoError(t, s.Record(ctx, outcome("/w/b", events.Updated, push.Skipped, baseTime.Add(time.Minute))))
	require.NoError(t, s.Record(ctx, outcome("/w/c", events.Deleted, push.Failed, baseTime.Add(2*time.Minute))))

	entries, err := s.Recent(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "/w/c", entries[0].Path, "newest first")
	assert.Equal(t, "deleted", entries[0].Action)
	assert.Equal(t, push.Failed, entries[0].Result)
	assert.True(t, entries[2].Time.Equal(baseTime))
	assert.NotEmpty(t, entries[2].ID)

	entries, err = s.Recent(ctx, Query{Limit: 1})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "/w/c", entries[0].Path)

	entries, err = s.Recent(ctx, Query{Since: baseTime.Add(30 * time.Second)})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	skipped := push.Skipped
	entries, err = s.Recent(ctx, Query{Result: &skipped})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "/w/b", entries[0].Path)
}

func TestGet(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	id, err := s.Insert(ctx, Entry{Action: "added", Kind: "dir", Path: "/w/d", Backend: "remote", Result: push.Pushed, Detail: "ok"})
	require.NoError(t, err)

	e, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "/w/d", e.Path)
	assert.Equal(t, events.Event{Path: "/w/d", Kind: events.Dir, Action: events.Added}, e.Event())
	assert.False(t, e.Time.IsZero())

	_, err = s.Get(ctx, "missing")
	assert.ErrorContains(t, err, "not found")
}

func TestPrune(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, outcome("/w/old", events.Updated, push.Pushed, baseTime)))
	require.NoError(t, s.Record(ctx, outcome("/w/new", events.Updated, push.Pushed, baseTime.Add(time.Hour))))

	n, err := s.Prune(ctx, baseTime.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	entries, err := s.Recent(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "/w/new", entries[0].Path)
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Record(ctx, outcome("/w/a", events.Added, push.Pushed, baseTime)))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "double close is harmless")

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	entries, err := s.Recent(ctx, Query{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStoreIsRecorder(t *testing.T) {
	var _ push.Recorder = (*Store)(nil)
}
