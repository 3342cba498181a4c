// Package notify delivers short user-facing notifications.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Mschirtzinger/pushy/internal/shell"
)

// Notification is a single message for the user.
type Notification struct {
	Title    string
	Message  string
	Severity string
}

// Sink receives notifications. Send must return quickly; it is called from
// the polling goroutine through the logger.
type Sink interface {
	Send(n Notification)
}

// Nop discards every notification.
type Nop struct{}

// Send implements Sink.
func (Nop) Send(Notification) {}

// DefaultTimeout bounds one notify-send call.
const DefaultTimeout = 2 * time.Second

// Desktop shows notifications with notify-send. Send only queues; a single
// goroutine delivers them and drops whatever overflows the queue.
type Desktop struct {
	runner shell.Runner
	queue  chan Notification
	logger zerolog.Logger
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewDesktop starts a desktop sink. runner may be nil to use notify-send
// directly.
func NewDesktop(runner shell.Runner, logger zerolog.Logger) *Desktop {
	if runner == nil {
		runner = shell.Exec{Timeout: DefaultTimeout}
	}
	d := &Desktop{
		runner: runner,
		queue:  make(chan Notification, 16),
		logger: logger,
		done:   make(chan struct{}),
	}
	go d.loop()
	return d
}

// Send implements Sink.
func (d *Desktop) Send(n Notification) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	select {
	case d.queue <- n:
	default:
	}
}

// Close stops delivery after the queued notifications are shown.
func (d *Desktop) Close() error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.done
	return nil
}

func (d *Desktop) loop() {
	defer close(d.done)
	for n := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
		_, err := d.runner.Run(ctx, "", "notify-send", "--urgency", urgency(n.Severity), "--app-name", "pushy", n.Title, n.Message)
		cancel()
		if err != nil {
			// Trace stays below the notify hook threshold.
			d.logger.Trace().Err(err).Msg("notify-send failed")
		}
	}
}

func urgency(severity string) string {
	switch severity {
	case "error", "fatal", "panic":
		return "critical"
	case "warn":
		return "normal"
	default:
		return "low"
	}
}
