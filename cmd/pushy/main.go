package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Mschirtzinger/pushy/internal/config"
	"github.com/Mschirtzinger/pushy/internal/journal"
	"github.com/Mschirtzinger/pushy/internal/logging"
	"github.com/Mschirtzinger/pushy/internal/notify"
)

var rootCmd = &cobra.Command{
	Use:   "pushy",
	Short: "Mirror file changes to a local, remote or git target as they happen",
	Long: `pushy polls a directory tree for changes and pushes every added, updated
or deleted entry to a target.

The target is a local directory, a directory on a remote host reached over
ssh/scp (--host), or a git work tree that commits each change (--export).
Recently changed files are checked every cycle; the whole tree is rescanned
every few cycles.

Example usage:
  pushy -t /srv/mirror                  # Copy changes below . to /srv/mirror
  pushy -s src -t /srv/src -r build01   # Push src to build01:/srv/src
  pushy -t ~/exports/site --export      # Commit each change into a git repo
  pushy history --since "2 hours ago"   # Show what was pushed recently

Settings may also come from PUSHY_* environment variables, a .env file or a
config file (.pushy.yaml or .pushy.toml, see "pushy init").`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	RunE:          runWatch,
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "main", Title: "Commands:"},
		&cobra.Group{ID: "setup", Title: "Setup:"},
	)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Config file (default .pushy.yaml, then ~/.pushy.yaml)")
	pf.StringP("log-level", "l", "info", "Log level: trace, debug, info, warning, error, critical")
	pf.String("log-format", "auto", "Log format: auto, console or json")
	pf.String("log-output", "stderr", "Log destination: stderr, stdout, discard or a file path")
	pf.String("journal", "", "Push journal database (default ~/"+journal.DefaultFile+", \"off\" disables)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves settings with cmd's flags taking precedence.
func loadConfig(cmd *cobra.Command) (config.Config, *config.Loader, error) {
	path, _ := cmd.Flags().GetString("config")

	loader := config.NewLoader("", zerolog.Nop())
	loader.BindFlags(cmd.Flags())
	cfg, err := loader.Load(path)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, loader, nil
}

// newLogger builds the process logger. The returned closer flushes the log
// file and the notification queue.
func newLogger(cfg config.Config) (zerolog.Logger, io.Closer) {
	lc := logging.DefaultConfig()
	lc.Level = cfg.LogLevel
	lc.Format = cfg.LogFormat
	lc.Output = cfg.LogOutput
	logger, logCloser := logging.New(lc)
	if !cfg.Notify {
		return logger, logCloser
	}

	desktop := notify.NewDesktop(nil, logger)
	logger = logger.Hook(logging.NotifyHook{Sink: desktop})
	return logger, closers{desktop, logCloser}
}

type closers []io.Closer

func (c closers) Close() error {
	var first error
	for _, cl := range c {
		if err := cl.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
