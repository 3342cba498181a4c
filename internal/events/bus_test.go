package events

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus() *Bus {
	return NewBus(zerolog.Nop())
}

func TestBus_FireDeliversToEverySubscriber(t *testing.T) {
	bus := newTestBus()
	ev := Event{Path: "/root/a.txt", Kind: File, Action: Updated}

	var got []string
	bus.Subscribe("first", func(_ context.Context, e Event) error {
		got = append(got, "first:"+e.Path)
		return nil
	})
	bus.Subscribe("second", func(_ context.Context, e Event) error {
		got = append(got, "second:"+e.Path)
		return nil
	})

	require.NoError(t, bus.Fire(context.Background(), ev))
	assert.Equal(t, []string{"first:/root/a.txt", "second:/root/a.txt"}, got)
}

func TestBus_FailingHandlerDoesNotStopDelivery(t *testing.T) {
	bus := newTestBus()
	boom := errors.New("boom")

	delivered := 0
	bus.Subscribe("failing", func(context.Context, Event) error { return boom })
	bus.Subscribe("panicking", func(context.Context, Event) error { panic("kaboom") })
	bus.Subscribe("healthy", func(context.Context, Event) error {
		delivered++
		return nil
	})

	err := bus.Fire(context.Background(), Event{Path: "/x", Kind: File, Action: Added})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "panicking")
	assert.Equal(t, 1, delivered)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := newTestBus()

	calls := 0
	sub := bus.Subscribe("counter", func(context.Context, Event) error {
		calls++
		return nil
	})
	assert.Equal(t, 1, bus.Len())
	assert.Equal(t, "counter", sub.Name())

	require.NoError(t, bus.Unsubscribe(sub))
	assert.Equal(t, 0, bus.Len())

	require.NoError(t, bus.Fire(context.Background(), Event{Path: "/x"}))
	assert.Zero(t, calls)

	err := bus.Unsubscribe(sub)
	assert.ErrorIs(t, err, ErrNotSubscribed)
}

func TestBus_HandlerMayUnsubscribeDuringFire(t *testing.T) {
	bus := newTestBus()

	var sub Subscription
	calls := 0
	sub = bus.Subscribe("once", func(context.Context, Event) error {
		calls++
		return bus.Unsubscribe(sub)
	})

	require.NoError(t, bus.Fire(context.Background(), Event{Path: "/x"}))
	require.NoError(t, bus.Fire(context.Background(), Event{Path: "/x"}))
	assert.Equal(t, 1, calls)
}

func TestEventStrings(t *testing.T) {
	tests := []struct {
		ev   Event
		want string
	}{
		{Event{Path: "/a", Kind: File, Action: Added}, "added file /a"},
		{Event{Path: "/b", Kind: Dir, Action: Deleted}, "deleted dir /b"},
		{Event{Path: "/c", Kind: Kind(9), Action: Action(9)}, "unknown unknown /c"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.ev.String())
	}
}
