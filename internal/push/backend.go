// Package push copies changed paths from a watched source tree to a target.
//
// A Backend receives one call per change event. Three implementations are
// registered: local (a directory on this machine), remote (scp and ssh to a
// host) and export (a git work tree that gets one commit per change).
package push

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Mschirtzinger/pushy/internal/shell"
)

// Backend mirrors source paths onto a destination.
//
// Paths are absolute paths below the source root; the destination is the
// target root joined with the path relative to the source root. A path may
// name a file or a directory.
type Backend interface {
	// Name identifies the backend in logs and the journal.
	Name() string

	// Add pushes a newly created path.
	//
	// Returns ErrDestinationExists if the destination is already present.
	// Parent directories are created on demand.
	Add(ctx context.Context, path string) error

	// Update pushes a modified file.
	//
	// If the destination is absent this behaves as Add. Returns
	// ErrDestinationConflict, without writing, when the destination's mtime
	// is not older than the source's.
	Update(ctx context.Context, path string) error

	// Remove deletes the destination of a vanished path.
	//
	// Returns nil if the destination doesn't exist (idempotent).
	// Directories are removed recursively.
	Remove(ctx context.Context, path string) error
}

// Kind names a registered backend implementation.
type Kind string

const (
	KindLocal  Kind = "local"
	KindRemote Kind = "remote"
	KindExport Kind = "export"
)

// Options carries everything a backend constructor may need.
type Options struct {
	Mapper Mapper

	// User and Host select the remote account. User defaults to the
	// current OS user.
	User string
	Host string

	// Runner executes scp, ssh and git. Defaults to shell.Exec.
	Runner shell.Runner

	// Timeout bounds each external command.
	Timeout time.Duration

	Logger zerolog.Logger
}

// runner returns the configured runner or the os/exec one.
func (o Options) runner() shell.Runner {
	if o.Runner != nil {
		return o.Runner
	}
	return shell.Exec{Timeout: o.Timeout}
}

// Constructor creates a backend from options.
// Implementations register themselves with Register from init().
type Constructor func(opts Options) (Backend, error)

var (
	registry      = make(map[Kind]Constructor)
	registryMutex sync.RWMutex
)

// Register registers a backend constructor. It panics on a nil constructor
// or a duplicate kind.
func Register(kind Kind, constructor Constructor) {
	registryMutex.Lock()
	defer registryMutex.Unlock()

	if constructor == nil {
		panic(fmt.Sprintf("push: Register constructor is nil for kind %s", kind))
	}
	if _, exists := registry[kind]; exists {
		panic(fmt.Sprintf("push: Register called twice for kind %s", kind))
	}
	registry[kind] = constructor
}

// RegisteredKinds returns all registered kinds, sorted.
func RegisteredKinds() []Kind {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	kinds := make([]Kind, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Open constructs the backend registered under kind.
func Open(kind Kind, opts Options) (Backend, error) {
	registryMutex.RLock()
	constructor := registry[kind]
	registryMutex.RUnlock()

	if constructor == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, kind)
	}
	return constructor(opts)
}

// Select picks the backend kind for the given settings: a remote host wins,
// then export mode, then a plain local copy.
func Select(host string, export bool) Kind {
	switch {
	case host != "":
		return KindRemote
	case export:
		return KindExport
	default:
		return KindLocal
	}
}
