package push

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

func init() {
	Register(KindLocal, func(opts Options) (Backend, error) {
		return NewLocal(opts)
	})
}

// Local mirrors the source tree into a directory on this machine. Copies
// keep the source's permission bits and modification time.
type Local struct {
	mapper Mapper
	logger zerolog.Logger
}

// NewLocal creates a local backend writing below opts.Mapper.Target.
func NewLocal(opts Options) (*Local, error) {
	if opts.Mapper.Source == "" || opts.Mapper.Target == "" {
		return nil, fmt.Errorf("local backend needs source and target roots")
	}
	target, err := filepath.Abs(opts.Mapper.Target)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve target %s: %w", opts.Mapper.Target, err)
	}
	mapper := opts.Mapper
	mapper.Target = target
	return &Local{mapper: mapper, logger: opts.Logger}, nil
}

// Name implements Backend.
func (l *Local) Name() string {
	return string(KindLocal)
}

// Add implements Backend.
func (l *Local) Add(_ context.Context, path string) error {
	dest, err := l.mapper.Destination(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return sourceError(path, err)
	}
	if _, err := os.Lstat(dest); err == nil {
		return fmt.Errorf("%w: %s", ErrDestinationExists, dest)
	}

	if info.IsDir() {
		if err := os.MkdirAll(dest, info.Mode().Perm()|0o700); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dest, err)
		}
		return nil
	}
	return l.copy(path, dest, info)
}

// Update implements Backend.
func (l *Local) Update(ctx context.Context, path string) error {
	dest, err := l.mapper.Destination(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return sourceError(path, err)
	}

	destInfo, err := os.Stat(dest)
	if errors.Is(err, fs.ErrNotExist) {
		return l.Add(ctx, path)
	} else if err != nil {
		return fmt.Errorf("failed to stat destination %s: %w", dest, err)
	}
	if info.IsDir() {
		return nil
	}
	if !destInfo.ModTime().Before(info.ModTime()) {
		return fmt.Errorf("%w: %s (destination %s, source %s)", ErrDestinationConflict, dest,
			destInfo.ModTime().Format(timeLayout), info.ModTime().Format(timeLayout))
	}
	return l.copy(path, dest, info)
}

// Remove implements Backend.
func (l *Local) Remove(_ context.Context, path string) error {
	dest, err := l.mapper.Destination(path)
	if err != nil {
		return err
	}
	if _, err := os.Lstat(dest); errors.Is(err, fs.ErrNotExist) {
		l.logger.Info().Str("destination", dest).Msg("nothing to remove")
		return nil
	}
	if err := os.RemoveAll(dest); err != nil {
		return fmt.Errorf("failed to remove %s: %w", dest, err)
	}
	return nil
}

// copy writes src to dest through a temporary file in the destination
// directory, then stamps the source's mode and mtime on it.
func (l *Local) copy(src, dest string, info fs.FileInfo) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	in, err := os.Open(src)
	if err != nil {
		return sourceError(src, err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(dir, ".pushy-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err := tmp.Chmod(info.Mode().Perm()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set mode on %s: %w", dest, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	if err := os.Chtimes(tmpName, info.ModTime(), info.ModTime()); err != nil {
		return fmt.Errorf("failed to set mtime on %s: %w", dest, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", dest, err)
	}

	l.logger.Debug().Str("source", src).Str("destination", dest).Msg("copied")
	return nil
}

const timeLayout = "2006-01-02T15:04:05.000"

func sourceError(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrSourceMissing, path)
	}
	return fmt.Errorf("failed to stat source %s: %w", path, err)
}
