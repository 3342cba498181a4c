package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Mschirtzinger/pushy/internal/config"
	"github.com/Mschirtzinger/pushy/internal/dashboard"
	"github.com/Mschirtzinger/pushy/internal/events"
	"github.com/Mschirtzinger/pushy/internal/journal"
	"github.com/Mschirtzinger/pushy/internal/monitor"
	"github.com/Mschirtzinger/pushy/internal/push"
)

// statsInterval is how often the dashboard receives monitor statistics.
const statsInterval = 2 * time.Second

func init() {
	f := rootCmd.Flags()
	f.StringP("source", "s", ".", "Directory to watch")
	f.StringP("target", "t", "", "Destination path; without it changes are only logged")
	f.StringP("user", "u", "", "Remote user (default: current user)")
	f.StringP("host", "r", "", "Remote host; selects the ssh/scp backend")
	f.Bool("export", false, "Commit every change into a git work tree at the target")
	f.StringP("delay", "d", "1", "Pause between scan cycles, in seconds or as a duration (1.5, 500ms)")
	f.Int("max-hot", monitor.DefaultMaxHot, "Number of recently changed files checked every cycle")
	f.Int("hotness", monitor.DefaultHotness, "Hot-only cycles between full scans")
	f.String("ignored-dirs", monitor.DefaultIgnoredDirs, "Regex of directory paths to ignore (case-insensitive)")
	f.String("ignored-files", monitor.DefaultIgnoredFiles, "Regex of file names to ignore (case-insensitive)")
	f.String("ignore-file", monitor.DefaultIgnoreFile, "Gitignore-style pattern file read from the source root")
	f.Bool("sync-push", false, "Push inside the scan loop instead of on a background worker")
	f.Int("queue-size", push.DefaultQueueSize, "Events buffered for the push worker")
	f.String("push-timeout", "30s", "Timeout for each ssh, scp or git command")
	f.Int("dashboard-port", 0, "Serve a live WebSocket change feed on this port (0 disables)")
	f.Bool("notify", false, "Show desktop notifications for pushes and errors")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, loader, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, logCloser := newLogger(cfg)
	defer logCloser.Close()
	loader.SetLogger(logger.With().Str("component", "config").Logger())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := events.NewBus(logger.With().Str("component", "bus").Logger())

	mcfg, err := cfg.MonitorConfig(logger.With().Str("component", "monitor").Logger())
	if err != nil {
		return err
	}
	mon, err := monitor.New(bus, mcfg)
	if err != nil {
		return err
	}
	if err := mon.Track(ctx, cfg.Source); err != nil {
		return err
	}

	var recorders []push.Recorder

	store, err := openJournal(ctx, cfg.Journal, logger)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		recorders = append(recorders, store)
	}

	if cfg.DashboardPort > 0 {
		server := dashboard.NewServer(dashboard.Config{
			Port:   cfg.DashboardPort,
			Logger: logger.With().Str("component", "dashboard").Logger(),
		})
		if err := server.Start(); err != nil {
			return err
		}
		defer server.Stop()

		handler := dashboard.NewHandler(server, logger)
		bus.Subscribe("dashboard", handler.OnEvent)
		recorders = append(recorders, handler)
		go handler.WatchStats(ctx, mon, statsInterval)
	}

	worker, err := wirePush(ctx, cfg, bus, push.Tee(recorders...), logger)
	if err != nil {
		return err
	}
	if worker != nil {
		// Runs before the journal and dashboard close so queued outcomes are
		// still recorded.
		defer worker.Stop()
	}

	if loader.File() != "" {
		go watchConfig(ctx, loader, mon, logger)
	}

	runErr := mon.Run(ctx)

	stats := mon.Stats()
	logger.Info().
		Int("dirs", stats.Dirs).
		Int("files", stats.Files).
		Uint64("cycles", stats.Cycles).
		Uint64("events", stats.Events).
		Msg("shutting down")
	return runErr
}

// wirePush subscribes a dispatcher for the configured backend. Without a
// target nothing is pushed. The returned worker is nil for synchronous
// pushing.
func wirePush(ctx context.Context, cfg config.Config, bus *events.Bus, recorder push.Recorder, logger zerolog.Logger) (*push.Worker, error) {
	kind, ok := cfg.BackendKind()
	if !ok {
		logger.Warn().Msg("no target given, changes will not be pushed")
		return nil, nil
	}

	mapper, err := push.NewMapper(cfg.Source, cfg.Target)
	if err != nil {
		return nil, err
	}
	backend, err := push.Open(kind, push.Options{
		Mapper:  mapper,
		User:    cfg.User,
		Host:    cfg.Host,
		Timeout: cfg.PushTimeout,
		Logger:  logger.With().Str("component", "push").Logger(),
	})
	if err != nil {
		return nil, err
	}
	logger.Info().
		Str("backend", backend.Name()).
		Str("source", mapper.Source).
		Str("target", cfg.Target).
		Msg("pushing changes")

	dispatcher := push.NewDispatcher(backend, recorder, logger)
	if cfg.SyncPush {
		bus.Subscribe("push", dispatcher.Handle)
		return nil, nil
	}

	worker := push.NewWorker(dispatcher.Handle, cfg.QueueSize, logger)
	worker.Start(ctx)
	bus.Subscribe("push", worker.Handle)
	return worker, nil
}

// openJournal opens the push journal. "off" disables it and a journal that
// cannot be opened is logged and skipped.
func openJournal(ctx context.Context, path string, logger zerolog.Logger) (*journal.Store, error) {
	switch strings.ToLower(path) {
	case "off", "none", "false":
		return nil, nil
	case "":
		p, err := journal.DefaultPath()
		if err != nil {
			logger.Warn().Err(err).Msg("push journal disabled")
			return nil, nil
		}
		path = p
	}

	store, err := journal.Open(ctx, path)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		logger.Warn().Err(err).Str("path", path).Msg("push journal disabled")
		return nil, nil
	}
	logger.Debug().Str("path", store.Path()).Msg("push journal opened")
	return store, nil
}

// watchConfig applies edits to the config file to the running monitor.
func watchConfig(ctx context.Context, loader *config.Loader, mon *monitor.Monitor, logger zerolog.Logger) {
	err := loader.Watch(ctx, func(cfg config.Config) {
		settings, err := cfg.Settings()
		if err != nil {
			logger.Warn().Err(err).Msg("ignoring config change")
			return
		}
		mon.Reload(settings)
	})
	if err != nil {
		logger.Warn().Err(err).Msg("config file is not watched")
	}
}
