package monitor

import (
	"path/filepath"
	"sort"
	"time"

	"github.com/Mschirtzinger/pushy/internal/events"
)

// TrackedPath is a registry entry: a path, its kind and the modification
// time recorded when it was last observed.
type TrackedPath struct {
	Path         string
	Kind         events.Kind
	LastModified time.Time
}

// Registry is the snapshot of every tracked directory and file.
//
// Keys are absolute, cleaned paths and a path lives in at most one of the two
// maps. The registry is not safe for concurrent use; it is owned by the
// polling goroutine.
type Registry struct {
	dirs  map[string]time.Time
	files map[string]time.Time
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		dirs:  make(map[string]time.Time),
		files: make(map[string]time.Time),
	}
}

// SetDir records path as a directory modified at mtime.
func (r *Registry) SetDir(path string, mtime time.Time) {
	path = filepath.Clean(path)
	delete(r.files, path)
	r.dirs[path] = mtime
}

// SetFile records path as a file modified at mtime.
func (r *Registry) SetFile(path string, mtime time.Time) {
	path = filepath.Clean(path)
	delete(r.dirs, path)
	r.files[path] = mtime
}

// Dir returns the recorded mtime of a tracked directory.
func (r *Registry) Dir(path string) (time.Time, bool) {
	mtime, ok := r.dirs[filepath.Clean(path)]
	return mtime, ok
}

// File returns the recorded mtime of a tracked file.
func (r *Registry) File(path string) (time.Time, bool) {
	mtime, ok := r.files[filepath.Clean(path)]
	return mtime, ok
}

// RemoveDir drops a directory entry. It reports whether the entry existed.
func (r *Registry) RemoveDir(path string) bool {
	path = filepath.Clean(path)
	_, ok := r.dirs[path]
	delete(r.dirs, path)
	return ok
}

// RemoveFile drops a file entry. It reports whether the entry existed.
func (r *Registry) RemoveFile(path string) bool {
	path = filepath.Clean(path)
	_, ok := r.files[path]
	delete(r.files, path)
	return ok
}

// Len returns the number of tracked directories and files.
func (r *Registry) Len() (dirs, files int) {
	return len(r.dirs), len(r.files)
}

// Dirs returns a path-sorted copy of the directory entries.
func (r *Registry) Dirs() []TrackedPath {
	return snapshot(r.dirs, events.Dir)
}

// Files returns a path-sorted copy of the file entries.
func (r *Registry) Files() []TrackedPath {
	return snapshot(r.files, events.File)
}

// OldestFile returns the tracked file with the smallest recorded mtime.
// Ties resolve to the lexically smallest path.
func (r *Registry) OldestFile() (TrackedPath, bool) {
	var oldest TrackedPath
	found := false
	for path, mtime := range r.files {
		if !found || mtime.Before(oldest.LastModified) ||
			(mtime.Equal(oldest.LastModified) && path < oldest.Path) {
			oldest = TrackedPath{Path: path, Kind: events.File, LastModified: mtime}
			found = true
		}
	}
	return oldest, found
}

func snapshot(m map[string]time.Time, kind events.Kind) []TrackedPath {
	out := make([]TrackedPath, 0, len(m))
	for path, mtime := range m {
		out = append(out, TrackedPath{Path: path, Kind: kind, LastModified: mtime})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
