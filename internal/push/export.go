package push

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Mschirtzinger/pushy/internal/shell"
)

func init() {
	Register(KindExport, func(opts Options) (Backend, error) {
		return NewExport(opts)
	})
}

// Fallback identity for commits when git has none configured.
const (
	exportAuthorName  = "pushy"
	exportAuthorEmail = "pushy@localhost"
)

// Export mirrors the source tree into a git work tree and records every
// change as its own commit, with message "pushy: <action> <relpath>".
//
// The target directory is initialised as a repository when it is not one
// already.
type Export struct {
	local    *Local
	repoRoot string
	runner   shell.Runner
	identity []string
	logger   zerolog.Logger
}

// NewExport creates an export backend for the work tree at opts.Mapper.Target.
func NewExport(opts Options) (*Export, error) {
	local, err := NewLocal(opts)
	if err != nil {
		return nil, err
	}

	e := &Export{
		local:    local,
		repoRoot: local.mapper.Target,
		runner:   opts.runner(),
		logger:   opts.Logger,
	}
	if err := e.init(context.Background()); err != nil {
		return nil, err
	}
	return e, nil
}

// Name implements Backend.
func (e *Export) Name() string {
	return string(KindExport)
}

// RepoRoot returns the work tree the backend commits to.
func (e *Export) RepoRoot() string {
	return e.repoRoot
}

// Add implements Backend.
func (e *Export) Add(ctx context.Context, path string) error {
	if err := e.local.Add(ctx, path); err != nil {
		return err
	}
	return e.commit(ctx, "add", path)
}

// Update implements Backend.
func (e *Export) Update(ctx context.Context, path string) error {
	if err := e.local.Update(ctx, path); err != nil {
		return err
	}
	return e.commit(ctx, "update", path)
}

// Remove implements Backend.
func (e *Export) Remove(ctx context.Context, path string) error {
	dest, err := e.local.mapper.Destination(path)
	if err != nil {
		return err
	}
	if _, err := os.Lstat(dest); errors.Is(err, fs.ErrNotExist) {
		e.logger.Info().Str("destination", dest).Msg("nothing to remove")
		return nil
	}
	if err := e.local.Remove(ctx, path); err != nil {
		return err
	}
	return e.commit(ctx, "remove", path)
}

// init makes sure the target is a git work tree and picks the commit
// identity.
func (e *Export) init(ctx context.Context) error {
	if err := os.MkdirAll(e.repoRoot, 0o755); err != nil {
		return fmt.Errorf("failed to create export directory %s: %w", e.repoRoot, err)
	}

	if _, err := os.Stat(filepath.Join(e.repoRoot, ".git")); errors.Is(err, fs.ErrNotExist) {
		if _, err := e.git(ctx, "init", "-q"); err != nil {
			return err
		}
		e.logger.Info().Str("repo", e.repoRoot).Msg("initialized export repository")
	}

	if _, err := e.git(ctx, "config", "user.email"); err != nil {
		e.identity = []string{"-c", "user.name=" + exportAuthorName, "-c", "user.email=" + exportAuthorEmail}
	}
	return nil
}

// commit stages path and commits it alone. Changes git cannot record, such
// as an empty directory, produce no commit.
func (e *Export) commit(ctx context.Context, action, path string) error {
	rel, err := e.local.mapper.Rel(path)
	if err != nil {
		return err
	}
	rel = filepath.ToSlash(rel)

	if _, err := e.git(ctx, "add", "-A", "--", rel); err != nil {
		return err
	}

	// diff --quiet exits 1 when something is staged.
	_, err = e.git(ctx, "diff", "--cached", "--quiet")
	switch shell.ExitCode(err) {
	case 0:
		e.logger.Debug().Str("path", rel).Msg("nothing to commit")
		return nil
	case 1:
	default:
		return err
	}

	args := append(append([]string{}, e.identity...), "commit", "-q", "-m", fmt.Sprintf("pushy: %s %s", action, rel))
	if _, err := e.git(ctx, args...); err != nil {
		return err
	}
	e.logger.Debug().Str("path", rel).Str("action", action).Msg("committed")
	return nil
}

func (e *Export) git(ctx context.Context, args ...string) ([]byte, error) {
	out, err := e.runner.Run(ctx, e.repoRoot, "git", args...)
	if err != nil {
		return out, fmt.Errorf("git %s failed: %w", strings.Join(args, " "), err)
	}
	return out, nil
}
