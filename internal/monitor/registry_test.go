package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mschirtzinger/pushy/internal/events"
)

func TestRegistry_FileAndDirAreExclusive(t *testing.T) {
	r := NewRegistry()
	r.SetFile("/w/x", baseTime)
	r.SetDir("/w/x", baseTime)

	_, ok := r.File("/w/x")
	assert.False(t, ok)
	_, ok = r.Dir("/w/x")
	assert.True(t, ok)

	r.SetFile("/w/x/", baseTime)
	_, ok = r.Dir("/w/x")
	assert.False(t, ok, "paths are cleaned before insertion")
	dirs, files := r.Len()
	assert.Equal(t, 0, dirs)
	assert.Equal(t, 1, files)
}

func TestRegistry_Remove(t *testing.T) {
	r := NewRegistry()
	r.SetFile("/w/a", baseTime)
	r.SetDir("/w/d", baseTime)

	assert.True(t, r.RemoveFile("/w/a"))
	assert.False(t, r.RemoveFile("/w/a"))
	assert.True(t, r.RemoveDir("/w/d"))
	assert.False(t, r.RemoveDir("/w/d"))
}

func TestRegistry_SnapshotsAreSorted(t *testing.T) {
	r := NewRegistry()
	r.SetFile("/w/c", baseTime)
	r.SetFile("/w/a", baseTime)
	r.SetFile("/w/b", baseTime)
	r.SetDir("/w/z", baseTime)
	r.SetDir("/w", baseTime)

	files := r.Files()
	require.Len(t, files, 3)
	assert.Equal(t, []string{"/w/a", "/w/b", "/w/c"}, []string{files[0].Path, files[1].Path, files[2].Path})
	assert.Equal(t, events.File, files[0].Kind)

	dirs := r.Dirs()
	require.Len(t, dirs, 2)
	assert.Equal(t, "/w", dirs[0].Path)
	assert.Equal(t, events.Dir, dirs[0].Kind)
}

func TestRegistry_OldestFile(t *testing.T) {
	r := NewRegistry()
	_, ok := r.OldestFile()
	assert.False(t, ok)

	r.SetFile("/w/new", baseTime.Add(time.Hour))
	r.SetFile("/w/b", baseTime)
	r.SetFile("/w/a", baseTime)

	oldest, ok := r.OldestFile()
	require.True(t, ok)
	assert.Equal(t, "/w/a", oldest.Path, "ties resolve to the smallest path")
}

func TestHotSet(t *testing.T) {
	h := NewHotSet()
	_, ok := h.Oldest()
	assert.False(t, ok)

	h.Put("/w/a", baseTime.Add(2*time.Minute))
	h.Put("/w/b", baseTime.Add(1*time.Minute))
	h.Put("/w/c", baseTime.Add(3*time.Minute))
	h.Put("/w/a", baseTime.Add(4*time.Minute))

	assert.Equal(t, 3, h.Len())
	entries := h.Entries()
	assert.Equal(t, "/w/a", entries[0].Path, "refresh keeps position")
	assert.True(t, entries[0].LastModified.Equal(baseTime.Add(4*time.Minute)))

	oldest, ok := h.Oldest()
	require.True(t, ok)
	assert.Equal(t, "/w/b", oldest)

	assert.True(t, h.Remove("/w/b"))
	assert.False(t, h.Remove("/w/b"))
	assert.False(t, h.Contains("/w/b"))
	assert.Equal(t, 2, h.Len())
}
