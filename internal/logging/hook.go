package logging

import (
	"github.com/rs/zerolog"

	"github.com/Mschirtzinger/pushy/internal/notify"
)

// NotifyHook forwards records at Info or above to a notification sink.
type NotifyHook struct {
	Sink  notify.Sink
	Title string
}

// Run implements zerolog.Hook.
func (h NotifyHook) Run(_ *zerolog.Event, level zerolog.Level, msg string) {
	if h.Sink == nil || level < zerolog.InfoLevel || level == zerolog.NoLevel || msg == "" {
		return
	}
	title := h.Title
	if title == "" {
		title = "pushy"
	}
	h.Sink.Send(notify.Notification{Title: title, Message: msg, Severity: level.String()})
}
