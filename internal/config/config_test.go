package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mschirtzinger/pushy/internal/monitor"
	"github.com/Mschirtzinger/pushy/internal/push"
)

// isolate points the default search paths and .env lookup at an empty
// directory.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Chdir(dir)
	return dir
}

// unsetenv clears key for the test and restores it afterwards.
func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func writeConfig(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := NewLoader("", zerolog.Nop()).Load("")
	require.NoError(t, err)

	want := Default()
	assert.Equal(t, want.Source, cfg.Source)
	assert.Equal(t, time.Second, cfg.Delay)
	assert.Equal(t, monitor.DefaultMaxHot, cfg.MaxHot)
	assert.Equal(t, monitor.DefaultHotness, cfg.Hotness)
	assert.Equal(t, monitor.DefaultIgnoredDirs, cfg.IgnoredDirs)
	assert.Equal(t, monitor.DefaultIgnoredFiles, cfg.IgnoredFiles)
	assert.Equal(t, push.DefaultQueueSize, cfg.QueueSize)
	assert.Empty(t, cfg.Target)
	assert.Empty(t, cfg.File)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := isolate(t)
	path := writeConfig(t, dir, "pushy.yaml", `
target: /srv/mirror
host: build01
delay: 1.5
max-hot: 5
ignored_files: '\.tmp$'
`)

	cfg, err := NewLoader("", zerolog.Nop()).Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/mirror", cfg.Target)
	assert.Equal(t, "build01", cfg.Host)
	assert.Equal(t, 1500*time.Millisecond, cfg.Delay)
	assert.Equal(t, 5, cfg.MaxHot)
	assert.Equal(t, `\.tmp$`, cfg.IgnoredFiles)
	assert.Equal(t, path, cfg.File)
}

func TestLoad_TOMLFile(t *testing.T) {
	dir := isolate(t)
	path := writeConfig(t, dir, "pushy.toml", `
target = "/srv/mirror"
delay = "250ms"
hotness = 2
export = true
`)

	cfg, err := NewLoader("", zerolog.Nop()).Load(path)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.Delay)
	assert.Equal(t, 2, cfg.Hotness)
	assert.True(t, cfg.Export)
}

func TestLoad_SearchesDefaultPaths(t *testing.T) {
	dir := isolate(t)
	writeConfig(t, dir, ".pushy.yaml", "hotness: 7\n")

	loader := NewLoader("", zerolog.Nop())
	cfg, err := loader.Load("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Hotness)
	assert.Equal(t, ".pushy.yaml", filepath.Base(loader.File()))
}

func TestLoad_Precedence(t *testing.T) {
	dir := isolate(t)
	path := writeConfig(t, dir, "pushy.yaml", "delay: 5\nhotness: 9\nmax_hot: 11\n")
	t.Setenv("PUSHY_DELAY", "3")
	t.Setenv("PUSHY_HOTNESS", "6")

	fs := pflag.NewFlagSet("pushy", pflag.ContinueOnError)
	fs.String("delay", "1", "")
	fs.Int("hotness", 4, "")
	fs.Int("max-hot", 20, "")
	require.NoError(t, fs.Parse([]string{"--delay", "2s"}))

	loader := NewLoader("", zerolog.Nop())
	loader.BindFlags(fs)
	cfg, err := loader.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.Delay, "flag beats env")
	assert.Equal(t, 6, cfg.Hotness, "env beats file")
	assert.Equal(t, 11, cfg.MaxHot, "unset flag does not mask the file")
}

func TestLoad_DotEnv(t *testing.T) {
	dir := isolate(t)
	unsetenv(t, "PUSHY_HOST")
	unsetenv(t, "PUSHY_TARGET")
	envFile := writeConfig(t, dir, "custom.env", "PUSHY_HOST=example\nPUSHY_TARGET=/srv\n")

	cfg, err := NewLoader(envFile, zerolog.Nop()).Load("")
	require.NoError(t, err)
	assert.Equal(t, "example", cfg.Host)
	assert.Equal(t, "/srv", cfg.Target)

	kind, ok := cfg.BackendKind()
	assert.True(t, ok)
	assert.Equal(t, push.KindRemote, kind)
}

func TestLoad_Errors(t *testing.T) {
	dir := isolate(t)

	tests := []struct {
		name string
		body string
	}{
		{"zero delay", "delay: 0\n"},
		{"negative hotness", "hotness: -1\n"},
		{"bad regex", "ignored_dirs: '('\n"},
		{"bad duration", "delay: soon\n"},
		{"host without target", "host: build01\n"},
		{"bad yaml", "delay: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, dir, "bad.yaml", tt.body)
			_, err := NewLoader("", zerolog.Nop()).Load(path)
			assert.Error(t, err)
		})
	}

	t.Run("explicit file missing", func(t *testing.T) {
		_, err := NewLoader("", zerolog.Nop()).Load(filepath.Join(dir, "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestDuration(t *testing.T) {
	tests := []struct {
		in      any
		want    time.Duration
		wantErr bool
	}{
		{nil, 0, false},
		{2, 2 * time.Second, false},
		{int64(3), 3 * time.Second, false},
		{0.5, 500 * time.Millisecond, false},
		{"1.25", 1250 * time.Millisecond, false},
		{"750ms", 750 * time.Millisecond, false},
		{time.Minute, time.Minute, false},
		{"soon", 0, true},
		{true, 0, true},
	}
	for _, tt := range tests {
		got, err := Duration(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "%v", tt.in)
			continue
		}
		require.NoError(t, err, "%v", tt.in)
		assert.Equal(t, tt.want, got, "%v", tt.in)
	}
}

func TestWriteFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "nested", ".pushy.yaml")

	cfg := Default()
	cfg.Target = "/srv/mirror"
	cfg.Delay = 2500 * time.Millisecond
	cfg.SyncPush = true
	require.NoError(t, WriteFile(path, cfg))

	got, err := NewLoader("", zerolog.Nop()).Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/mirror", got.Target)
	assert.Equal(t, 2500*time.Millisecond, got.Delay)
	assert.True(t, got.SyncPush)
}

func TestConfig_MonitorSettings(t *testing.T) {
	cfg := Default()
	cfg.IgnoredFiles = `\.tmp$`

	mc, err := cfg.MonitorConfig(zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, cfg.Delay, mc.Delay)
	assert.True(t, mc.Rules.Files.MatchString("X.TMP"))

	s, err := cfg.Settings()
	require.NoError(t, err)
	require.NotNil(t, s.Rules)
	assert.Equal(t, cfg.Delay, s.Delay)

	_, ok := Config{}.BackendKind()
	assert.False(t, ok)
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	dir := isolate(t)
	path := writeConfig(t, dir, "pushy.yaml", "delay: 1\n")

	loader := NewLoader("", zerolog.Nop())
	_, err := loader.Load(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan Config, 4)
	done := make(chan error, 1)
	go func() { done <- loader.Watch(ctx, func(c Config) { changes <- c }) }()

	// Give the watcher time to register before editing.
	time.Sleep(100 * time.Millisecond)
	writeConfig(t, dir, "pushy.yaml", "delay: 0\n")
	writeConfig(t, dir, "other.yaml", "delay: 9\n")
	writeConfig(t, dir, "pushy.yaml", "delay: 2\n")

	select {
	case c := <-changes:
		assert.Equal(t, 2*time.Second, c.Delay)
	case <-time.After(5 * time.Second):
		t.Fatal("config change not observed")
	}

	cancel()
	assert.NoError(t, <-done)
}

func TestWatch_NoFile(t *testing.T) {
	isolate(t)
	loader := NewLoader("", zerolog.Nop())
	_, err := loader.Load("")
	require.NoError(t, err)
	assert.ErrorIs(t, loader.Watch(context.Background(), func(Config) {}), ErrNoConfigFile)
}
