package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mschirtzinger/pushy/internal/notify"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"", zerolog.InfoLevel},
		{"info", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"warn", zerolog.WarnLevel},
		{"critical", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"nonsense", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNew_FileOutputIsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "pushy.log")
	logger, closer := New(Config{Level: "info", Format: "auto", Output: path, MaxSizeMB: 1})
	logger.Info().Str("path", "/w/a").Msg("pushed")
	logger.Debug().Msg("hidden")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	require.Len(t, lines, 1)

	var record map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &record))
	assert.Equal(t, "pushed", record["message"])
	assert.Equal(t, "info", record["level"])
	assert.Equal(t, "/w/a", record["path"])
}

func TestNew_Discard(t *testing.T) {
	logger, closer := New(Config{Output: "discard"})
	logger.Error().Msg("nowhere")
	assert.NoError(t, closer.Close())
}

type captureSink struct {
	got []notify.Notification
}

func (c *captureSink) Send(n notify.Notification) {
	c.got = append(c.got, n)
}

func TestNotifyHook(t *testing.T) {
	sink := &captureSink{}
	logger := zerolog.New(&bytes.Buffer{}).Level(zerolog.TraceLevel).Hook(NotifyHook{Sink: sink})

	logger.Debug().Msg("scan finished")
	logger.Info().Msg("pushed a.txt")
	logger.Warn().Msg("skipped b.txt")
	logger.Log().Msg("no level")

	require.Len(t, sink.got, 2)
	assert.Equal(t, notify.Notification{Title: "pushy", Message: "pushed a.txt", Severity: "info"}, sink.got[0])
	assert.Equal(t, "warn", sink.got[1].Severity)
}

func TestNotifyHook_NilSink(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{}).Hook(NotifyHook{})
	logger.Info().Msg("fine")
}

func TestNewTestLogger(t *testing.T) {
	logger := NewTestLogger(t)
	logger.Info().Msg("visible in verbose test output")
}
