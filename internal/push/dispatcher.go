package push

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Mschirtzinger/pushy/internal/events"
)

// Result classifies what happened to one pushed event.
type Result int

const (
	Pushed Result = iota
	Skipped
	Failed
)

// String returns a human-readable representation of the result.
func (r Result) String() string {
	switch r {
	case Pushed:
		return "pushed"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// ParseResult is the inverse of Result.String.
func ParseResult(s string) (Result, error) {
	switch s {
	case "pushed":
		return Pushed, nil
	case "skipped":
		return Skipped, nil
	case "failed":
		return Failed, nil
	default:
		return 0, fmt.Errorf("unknown push result %q", s)
	}
}

// Outcome records a single dispatched event.
type Outcome struct {
	Time    time.Time
	Event   events.Event
	Backend string
	Result  Result
	Detail  string
}

// Recorder persists outcomes. Recording failures are logged and otherwise
// ignored.
type Recorder interface {
	Record(ctx context.Context, o Outcome) error
}

// Tee returns a Recorder that records to every non-nil recorder in turn and
// joins their errors.
func Tee(recorders ...Recorder) Recorder {
	var out tee
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

type tee []Recorder

func (t tee) Record(ctx context.Context, o Outcome) error {
	var errs []error
	for _, r := range t {
		if err := r.Record(ctx, o); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Dispatcher routes change events to a backend: Added to Add, Updated to
// Update and Deleted to Remove. Its Handle method is an events.Handler.
//
// Backend failures never propagate: conflicts are logged as warnings,
// everything else as errors, and the event is dropped.
type Dispatcher struct {
	backend  Backend
	recorder Recorder
	logger   zerolog.Logger
	now      func() time.Time
}

// NewDispatcher creates a dispatcher for backend. recorder may be nil.
func NewDispatcher(backend Backend, recorder Recorder, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		backend:  backend,
		recorder: recorder,
		logger:   logger.With().Str("backend", backend.Name()).Logger(),
		now:      time.Now,
	}
}

// Handle pushes one event.
func (d *Dispatcher) Handle(ctx context.Context, ev events.Event) error {
	var err error
	switch ev.Action {
	case events.Added:
		err = d.backend.Add(ctx, ev.Path)
	case events.Updated:
		err = d.backend.Update(ctx, ev.Path)
	case events.Deleted:
		err = d.backend.Remove(ctx, ev.Path)
	default:
		err = fmt.Errorf("unsupported action %s", ev.Action)
	}

	o := Outcome{Time: d.now(), Event: ev, Backend: d.backend.Name(), Result: Pushed}
	switch {
	case err == nil:
		d.logger.Info().Stringer("action", ev.Action).Str("path", ev.Path).Msg("pushed")
	case IsSkip(err):
		o.Result, o.Detail = Skipped, err.Error()
		if errors.Is(err, ErrDestinationConflict) {
			d.logger.Warn().Err(err).Str("path", ev.Path).Msg("skipped push, destination is newer")
		} else {
			d.logger.Info().Err(err).Str("path", ev.Path).Msg("skipped push")
		}
	default:
		o.Result, o.Detail = Failed, err.Error()
		d.logger.Error().Err(err).Stringer("action", ev.Action).Str("path", ev.Path).Msg("push failed")
	}

	if d.recorder != nil {
		if rerr := d.recorder.Record(ctx, o); rerr != nil {
			d.logger.Warn().Err(rerr).Str("path", ev.Path).Msg("failed to record push outcome")
		}
	}
	return nil
}
