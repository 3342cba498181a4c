package dashboard

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/Mschirtzinger/pushy/internal/events"
	"github.com/Mschirtzinger/pushy/internal/monitor"
	"github.com/Mschirtzinger/pushy/internal/push"
)

// ChangeData describes a detected change.
type ChangeData struct {
	Path   string `json:"path"`
	Kind   string `json:"kind"`
	Action string `json:"action"`
}

// PushData describes a push outcome.
type PushData struct {
	Path    string `json:"path"`
	Action  string `json:"action"`
	Backend string `json:"backend"`
	Result  string `json:"result"`
	Detail  string `json:"detail,omitempty"`
}

// StatsSource provides monitor statistics.
type StatsSource interface {
	Stats() monitor.Stats
}

// Handler turns bus events, push outcomes and monitor statistics into
// dashboard messages.
type Handler struct {
	server *Server
	logger zerolog.Logger
}

// NewHandler creates a handler broadcasting through server.
func NewHandler(server *Server, logger zerolog.Logger) *Handler {
	return &Handler{server: server, logger: logger}
}

// OnEvent is an events.Handler.
func (h *Handler) OnEvent(_ context.Context, ev events.Event) error {
	h.send(MessageTypeChange, ChangeData{
		Path:   ev.Path,
		Kind:   ev.Kind.String(),
		Action: ev.Action.String(),
	})
	return nil
}

// Record implements push.Recorder.
func (h *Handler) Record(_ context.Context, o push.Outcome) error {
	h.send(MessageTypePush, PushData{
		Path:    o.Event.Path,
		Action:  o.Event.Action.String(),
		Backend: o.Backend,
		Result:  o.Result.String(),
		Detail:  o.Detail,
	})
	return nil
}

// PublishStats broadcasts one statistics snapshot.
func (h *Handler) PublishStats(stats monitor.Stats) {
	h.send(MessageTypeStats, stats)
}

// WatchStats publishes source's statistics every interval until ctx is
// done.
func (h *Handler) WatchStats(ctx context.Context, source StatsSource, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.PublishStats(source.Stats())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.PublishStats(source.Stats())
		}
	}
}

func (h *Handler) send(typ MessageType, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		h.logger.Error().Err(err).Str("type", string(typ)).Msg("failed to marshal dashboard data")
		return
	}
	h.server.Broadcast(Message{Type: typ, Timestamp: time.Now(), Data: raw})
}
