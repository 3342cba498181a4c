package monitor

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Mschirtzinger/pushy/internal/events"
)

// Track registers root and every non-ignored entry below it without firing
// events. Ignored directories are pruned from the walk.
//
// A missing or non-directory root returns ErrRootUnavailable; the error is
// logged and nothing is tracked for that root.
func (m *Monitor) Track(ctx context.Context, root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrRootUnavailable, root, err)
	}

	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		m.logger.Error().Str("root", abs).Msg("watch root is not an existing directory")
		return fmt.Errorf("%w: %s", ErrRootUnavailable, abs)
	}

	if err := m.LoadIgnoreFile(abs); err != nil {
		m.logger.Warn().Err(err).Str("root", abs).Msg("ignore file not loaded")
	}

	if !m.AddDir(ctx, abs, false) {
		m.logger.Error().Str("root", abs).Msg("root directory is ignored")
		return fmt.Errorf("%w: %s", ErrRootIgnored, abs)
	}
	m.logger.Debug().Str("root", abs).Msg("tracking directory")

	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == abs {
				return walkErr
			}
			// Unreadable entries are skipped; the rest of the tree still counts.
			m.logger.Warn().Err(walkErr).Str("path", path).Msg("skipping unreadable path")
			return nil
		}
		if path == abs {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() {
			if !m.AddDir(ctx, path, false) {
				return fs.SkipDir
			}
			m.logger.Debug().Str("path", path).Msg("tracking directory")
			return nil
		}
		if m.AddFile(ctx, path, false) {
			m.logger.Debug().Str("path", path).Msg("tracking file")
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk %s: %w", abs, err)
	}

	m.publishStats()
	return nil
}

// AddDir records path as a tracked directory with its current mtime. When
// notify is set an Added event is fired after insertion. It reports whether
// the directory is now tracked.
func (m *Monitor) AddDir(ctx context.Context, path string, notify bool) bool {
	path, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	if m.filter.ShouldIgnore(path) {
		return false
	}

	m.registry.SetDir(path, info.ModTime())
	if notify {
		m.fire(ctx, events.Event{Path: path, Kind: events.Dir, Action: events.Added})
	}
	return true
}

// AddFile records path as a tracked file with its current mtime. When notify
// is set an Added event is fired after insertion. Paths that resolve to a
// directory (symlinked directories) are not tracked.
func (m *Monitor) AddFile(ctx context.Context, path string, notify bool) bool {
	path, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	if m.filter.ShouldIgnore(path) {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if info.IsDir() {
		m.logger.Debug().Str("path", path).Msg("skipping symlinked directory")
		return false
	}

	m.registry.SetFile(path, info.ModTime())
	if notify {
		m.fire(ctx, events.Event{Path: path, Kind: events.File, Action: events.Added})
	}
	return true
}
