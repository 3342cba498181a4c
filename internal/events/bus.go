package events

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/panics"
)

// ErrNotSubscribed is returned by Unsubscribe when the subscription is not
// (or no longer) registered. It indicates a programming error in the caller.
var ErrNotSubscribed = errors.New("handler not subscribed")

// Handler reacts to a single event. Returning an error reports the failure;
// it never stops delivery to other handlers.
type Handler func(ctx context.Context, ev Event) error

// Subscription identifies a registered handler. Go funcs are not comparable,
// so callers keep the token returned by Subscribe to unsubscribe later.
type Subscription struct {
	id   uint64
	name string
}

// Name returns the label the handler was registered with.
func (s Subscription) Name() string {
	return s.name
}

type subscriber struct {
	sub     Subscription
	handler Handler
}

// Bus is a synchronous multi-subscriber dispatcher. Fire invokes every
// subscribed handler once, in the calling goroutine, before returning.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]subscriber
	logger zerolog.Logger
}

// NewBus creates an empty bus that reports handler failures to logger.
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		subs:   make(map[uint64]subscriber),
		logger: logger,
	}
}

// Subscribe registers h under name and returns its subscription token.
func (b *Bus) Subscribe(name string, h Handler) Subscription {
	if h == nil {
		panic(fmt.Sprintf("events: Subscribe handler is nil for %q", name))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := Subscription{id: b.nextID, name: name}
	b.subs[sub.id] = subscriber{sub: sub, handler: h}
	return sub
}

// Unsubscribe removes a previously registered handler.
func (b *Bus) Unsubscribe(sub Subscription) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub.id]; !ok {
		b.logger.Error().Str("handler", sub.name).Msg("unsubscribe of unknown handler")
		return fmt.Errorf("%w: %s", ErrNotSubscribed, sub.name)
	}
	delete(b.subs, sub.id)
	return nil
}

// Len returns the number of subscribed handlers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Fire delivers ev to every subscribed handler. A handler that returns an
// error or panics is logged and skipped; the remaining handlers still run.
// The returned error joins all handler failures and is informational only.
func (b *Bus) Fire(ctx context.Context, ev Event) error {
	// Snapshot under the read lock so handlers may subscribe or unsubscribe
	// without deadlocking.
	b.mu.RLock()
	targets := make([]subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		targets = append(targets, s)
	}
	b.mu.RUnlock()

	// Registration order keeps delivery stable between runs.
	sort.Slice(targets, func(i, j int) bool { return targets[i].sub.id < targets[j].sub.id })

	var errs []error
	for _, s := range targets {
		if err := b.deliver(ctx, s, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *Bus) deliver(ctx context.Context, s subscriber, ev Event) error {
	var handlerErr error
	var pc panics.Catcher
	pc.Try(func() {
		handlerErr = s.handler(ctx, ev)
	})

	if r := pc.Recovered(); r != nil {
		b.logger.Error().
			Str("handler", s.sub.name).
			Stringer("event", ev).
			Interface("panic", r.Value).
			Msg("event handler panicked")
		return fmt.Errorf("handler %s panicked: %w", s.sub.name, r.AsError())
	}

	if handlerErr != nil {
		b.logger.Error().
			Err(handlerErr).
			Str("handler", s.sub.name).
			Stringer("event", ev).
			Msg("event handler failed")
		return fmt.Errorf("handler %s: %w", s.sub.name, handlerErr)
	}
	return nil
}
