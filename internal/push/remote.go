package push

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Mschirtzinger/pushy/internal/shell"
)

func init() {
	Register(KindRemote, func(opts Options) (Backend, error) {
		return NewRemote(opts)
	})
}

// Remote mirrors the source tree to a host over ssh and scp. Remote paths
// are always forward-slash separated.
//
// ssh exits with 255 on connection failures, which keeps them apart from
// the exit status of the remote test and stat commands.
type Remote struct {
	mapper Mapper
	login  string
	runner shell.Runner
	logger zerolog.Logger
}

// NewRemote creates a remote backend for opts.User at opts.Host.
func NewRemote(opts Options) (*Remote, error) {
	if opts.Host == "" {
		return nil, fmt.Errorf("remote backend needs a host")
	}
	if opts.Mapper.Source == "" || opts.Mapper.Target == "" {
		return nil, fmt.Errorf("remote backend needs source and target roots")
	}

	name := opts.User
	if name == "" {
		u, err := user.Current()
		if err != nil {
			return nil, fmt.Errorf("failed to determine current user: %w", err)
		}
		name = u.Username
	}

	return &Remote{
		mapper: opts.Mapper,
		login:  name + "@" + opts.Host,
		runner: opts.runner(),
		logger: opts.Logger,
	}, nil
}

// Name implements Backend.
func (r *Remote) Name() string {
	return string(KindRemote)
}

// Login returns the user@host the backend connects as.
func (r *Remote) Login() string {
	return r.login
}

// Add implements Backend.
func (r *Remote) Add(ctx context.Context, p string) error {
	dest, err := r.mapper.RemoteDestination(p)
	if err != nil {
		return err
	}
	info, err := os.Stat(p)
	if err != nil {
		return sourceError(p, err)
	}

	exists, err := r.exists(ctx, dest)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s:%s", ErrDestinationExists, r.login, dest)
	}

	if info.IsDir() {
		return r.ssh(ctx, "mkdir", "-p", dest)
	}
	return r.copy(ctx, p, dest)
}

// Update implements Backend.
func (r *Remote) Update(ctx context.Context, p string) error {
	dest, err := r.mapper.RemoteDestination(p)
	if err != nil {
		return err
	}
	info, err := os.Stat(p)
	if err != nil {
		return sourceError(p, err)
	}

	remoteMtime, ok, err := r.mtime(ctx, dest)
	if err != nil {
		return err
	}
	if !ok {
		return r.Add(ctx, p)
	}
	if info.IsDir() {
		return nil
	}
	// scp -p keeps whole seconds only.
	if !remoteMtime.Before(info.ModTime().Truncate(time.Second)) {
		return fmt.Errorf("%w: %s:%s (destination %s, source %s)", ErrDestinationConflict, r.login, dest,
			remoteMtime.Format(timeLayout), info.ModTime().Format(timeLayout))
	}
	return r.copy(ctx, p, dest)
}

// Remove implements Backend.
func (r *Remote) Remove(ctx context.Context, p string) error {
	dest, err := r.mapper.RemoteDestination(p)
	if err != nil {
		return err
	}
	exists, err := r.exists(ctx, dest)
	if err != nil {
		return err
	}
	if !exists {
		r.logger.Info().Str("destination", r.login+":"+dest).Msg("nothing to remove")
		return nil
	}
	return r.ssh(ctx, "rm", "-rf", dest)
}

func (r *Remote) copy(ctx context.Context, src, dest string) error {
	if err := r.ssh(ctx, "mkdir", "-p", path.Dir(dest)); err != nil {
		return err
	}
	if _, err := r.runner.Run(ctx, "", "scp", "-p", "-q", "-o", "BatchMode=yes", src, r.login+":"+dest); err != nil {
		return fmt.Errorf("failed to copy %s to %s:%s: %w", src, r.login, dest, err)
	}
	r.logger.Debug().Str("source", src).Str("destination", r.login+":"+dest).Msg("copied")
	return nil
}

// exists reports whether dest is present on the host.
func (r *Remote) exists(ctx context.Context, dest string) (bool, error) {
	_, err := r.runner.Run(ctx, "", "ssh", r.sshArgs("test", "-e", dest)...)
	switch shell.ExitCode(err) {
	case 0:
		return true, nil
	case 1:
		return false, nil
	default:
		return false, fmt.Errorf("failed to check %s:%s: %w", r.login, dest, err)
	}
}

// mtime returns the modification time of dest, or false if it is absent.
func (r *Remote) mtime(ctx context.Context, dest string) (time.Time, bool, error) {
	out, err := r.runner.Run(ctx, "", "ssh", r.sshArgs("stat", "-c", "%Y", dest)...)
	switch code := shell.ExitCode(err); {
	case code == 1:
		return time.Time{}, false, nil
	case code != 0:
		return time.Time{}, false, fmt.Errorf("failed to stat %s:%s: %w", r.login, dest, err)
	}

	secs, err := strconv.ParseInt(strings.TrimSpace(string(out)), 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("unexpected stat output for %s:%s: %q", r.login, dest, out)
	}
	return time.Unix(secs, 0), true, nil
}

func (r *Remote) ssh(ctx context.Context, args ...string) error {
	if _, err := r.runner.Run(ctx, "", "ssh", r.sshArgs(args...)...); err != nil {
		return fmt.Errorf("remote %s failed on %s: %w", args[0], r.login, err)
	}
	return nil
}

// sshArgs builds the ssh argument list for a remote command. Every word is
// quoted because ssh hands the command line to the remote shell.
func (r *Remote) sshArgs(command ...string) []string {
	quoted := make([]string, len(command))
	for i, word := range command {
		quoted[i] = shell.Quote(word)
	}
	return []string{"-o", "BatchMode=yes", r.login, strings.Join(quoted, " ")}
}
