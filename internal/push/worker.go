package push

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"

	"github.com/Mschirtzinger/pushy/internal/events"
)

// DefaultQueueSize bounds the number of events waiting for the worker.
const DefaultQueueSize = 256

// Worker moves pushes off the polling goroutine. A single consumer drains a
// bounded FIFO queue, so events for the same path are pushed in the order
// they were detected. A full queue blocks the producer.
type Worker struct {
	handler events.Handler
	queue   chan events.Event
	logger  zerolog.Logger
	wg      conc.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

// NewWorker creates a worker that hands each queued event to handler.
// A size below one uses DefaultQueueSize.
func NewWorker(handler events.Handler, size int, logger zerolog.Logger) *Worker {
	if size < 1 {
		size = DefaultQueueSize
	}
	return &Worker{
		handler: handler,
		queue:   make(chan events.Event, size),
		logger:  logger,
	}
}

// Start launches the consumer. Cancelling ctx does not stop it; Stop does,
// after the queue is drained.
func (w *Worker) Start(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	w.wg.Go(func() {
		for ev := range w.queue {
			if err := w.handler(ctx, ev); err != nil {
				w.logger.Error().Err(err).Stringer("event", ev).Msg("queued push failed")
			}
		}
	})
}

// Handle enqueues ev. It is an events.Handler and blocks while the queue is
// full. If ctx is cancelled first the event is dropped with a warning and
// Handle returns nil, since shutdown is not a push failure.
func (w *Worker) Handle(ctx context.Context, ev events.Event) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return ErrWorkerStopped
	}

	select {
	case w.queue <- ev:
		return nil
	case <-ctx.Done():
		w.logger.Warn().Err(ctx.Err()).Stringer("event", ev).Msg("push dropped on shutdown")
		return nil
	}
}

// Pending returns the number of queued events.
func (w *Worker) Pending() int {
	return len(w.queue)
}

// Stop refuses new events, waits for queued ones to be pushed and returns.
// It is safe to call more than once.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.stopped {
		w.stopped = true
		close(w.queue)
	}
	w.mu.Unlock()

	w.wg.Wait()
	w.logger.Debug().Msg("push worker stopped")
}
