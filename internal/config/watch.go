package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrNoConfigFile is returned by Watch when Load did not read a file.
var ErrNoConfigFile = errors.New("no config file to watch")

// DefaultDebounce coalesces the bursts of writes editors produce on save.
const DefaultDebounce = 200 * time.Millisecond

// Watch reloads the configuration whenever the file read by the last Load
// changes and passes the result to onChange. Invalid edits are logged and
// ignored. Watch blocks until ctx is cancelled.
//
// The parent directory is watched rather than the file so that editors that
// save by renaming a temp file over the config are still seen.
func (l *Loader) Watch(ctx context.Context, onChange func(Config)) error {
	if l.file == "" {
		return ErrNoConfigFile
	}
	file, err := filepath.Abs(l.file)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", l.file, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(file)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(file), err)
	}
	l.logger.Debug().Str("file", file).Msg("watching config file")

	debounce := time.NewTimer(DefaultDebounce)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != file {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			debounce.Reset(DefaultDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.logger.Warn().Err(err).Msg("config watcher error")

		case <-debounce.C:
			cfg, err := l.Load(file)
			if err != nil {
				l.logger.Warn().Err(err).Str("file", file).Msg("ignoring config change")
				continue
			}
			l.logger.Info().Str("file", file).Msg("config reloaded")
			onChange(cfg)
		}
	}
}
