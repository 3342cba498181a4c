package monitor

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/Mschirtzinger/pushy/internal/events"
)

// checkFile compares one file against its recorded mtime.
func (m *Monitor) checkFile(ctx context.Context, path string, lastModified time.Time) {
	info, err := os.Stat(path)
	switch {
	case vanished(err) || (err == nil && info.IsDir()):
		m.registry.RemoveFile(path)
		m.fire(ctx, events.Event{Path: path, Kind: events.File, Action: events.Deleted})
		return
	case err != nil:
		// Transient stat failures leave the entry alone until a later cycle.
		m.logger.Warn().Err(err).Str("path", path).Msg("failed to stat file")
		return
	}

	if modified := info.ModTime(); !modified.Equal(lastModified) {
		m.registry.SetFile(path, modified)
		m.fire(ctx, events.Event{Path: path, Kind: events.File, Action: events.Updated})
	}
}

// checkDir detects a vanished directory, or lists its immediate children and
// starts tracking any that are new. Grandchildren of a new subdirectory are
// picked up on the next cycle that lists it.
func (m *Monitor) checkDir(ctx context.Context, path string) {
	info, err := os.Stat(path)
	switch {
	case vanished(err) || (err == nil && !info.IsDir()):
		m.forgetDir(ctx, path)
		return
	case err != nil:
		m.logger.Warn().Err(err).Str("path", path).Msg("failed to stat directory")
		return
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		m.logger.Warn().Err(err).Str("path", path).Msg("failed to list directory")
		return
	}

	for _, entry := range entries {
		child := filepath.Join(path, entry.Name())
		if entry.IsDir() {
			if _, ok := m.registry.Dir(child); ok {
				continue
			}
			// A file replaced by a directory of the same name.
			if _, ok := m.registry.File(child); ok {
				m.registry.RemoveFile(child)
				m.fire(ctx, events.Event{Path: child, Kind: events.File, Action: events.Deleted})
			}
			m.AddDir(ctx, child, true)
			continue
		}
		if _, ok := m.registry.File(child); ok {
			continue
		}
		if _, ok := m.registry.Dir(child); ok {
			m.forgetDir(ctx, child)
		}
		m.AddFile(ctx, child, true)
	}
}

// forgetDir drops a directory and everything tracked below it, firing
// Deleted for the directory first and then for each descendant.
func (m *Monitor) forgetDir(ctx context.Context, path string) {
	m.registry.RemoveDir(path)
	m.fire(ctx, events.Event{Path: path, Kind: events.Dir, Action: events.Deleted})

	prefix := path + string(filepath.Separator)
	for _, d := range m.registry.Dirs() {
		if strings.HasPrefix(d.Path, prefix) {
			m.registry.RemoveDir(d.Path)
			m.fire(ctx, events.Event{Path: d.Path, Kind: events.Dir, Action: events.Deleted})
		}
	}
	for _, f := range m.registry.Files() {
		if strings.HasPrefix(f.Path, prefix) {
			m.registry.RemoveFile(f.Path)
			m.fire(ctx, events.Event{Path: f.Path, Kind: events.File, Action: events.Deleted})
		}
	}
}

// vanished reports a stat error meaning the path is gone. ENOTDIR shows up
// for entries below a directory that was replaced by a file.
func vanished(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}

// fullScan checks every tracked directory, then every tracked file. Both
// snapshots are taken up front, so files discovered by the directory pass are
// first checked on the next cycle. Entries dropped earlier in the same pass
// are skipped.
func (m *Monitor) fullScan(ctx context.Context) {
	dirs := m.registry.Dirs()
	files := m.registry.Files()

	for _, d := range dirs {
		if _, ok := m.registry.Dir(d.Path); !ok {
			continue
		}
		m.checkDir(ctx, d.Path)
	}
	for _, f := range files {
		if _, ok := m.registry.File(f.Path); !ok {
			continue
		}
		m.checkFile(ctx, f.Path, f.LastModified)
	}
}

// hotScan checks only the files in the hot set.
func (m *Monitor) hotScan(ctx context.Context) {
	for _, f := range m.hot.Entries() {
		m.checkFile(ctx, f.Path, f.LastModified)
	}
}
