package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/Mschirtzinger/pushy/internal/journal"
	"github.com/Mschirtzinger/pushy/internal/push"
	"github.com/Mschirtzinger/pushy/internal/ui"
)

var historyCmd = &cobra.Command{
	Use:     "history",
	GroupID: "main",
	Short:   "Show recent push outcomes from the journal",
	Long: `Show what pushy pushed, skipped or failed to push, newest first.

--since accepts a duration ("90m"), a timestamp ("2026-03-04 10:00") or
plain English ("2 hours ago", "yesterday").

Example usage:
  pushy history                          # Last 20 pushes
  pushy history --result failed          # Only failures
  pushy history --since "yesterday" -n 100`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		limit, _ := cmd.Flags().GetInt("limit")
		sinceArg, _ := cmd.Flags().GetString("since")
		resultArg, _ := cmd.Flags().GetString("result")

		q := journal.Query{Limit: limit}
		if sinceArg != "" {
			since, err := parseSince(sinceArg, time.Now())
			if err != nil {
				return err
			}
			q.Since = since
		}
		if resultArg != "" {
			r, err := push.ParseResult(strings.ToLower(resultArg))
			if err != nil {
				return err
			}
			q.Result = &r
		}

		path := cfg.Journal
		if path == "" {
			if path, err = journal.DefaultPath(); err != nil {
				return err
			}
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("no push journal at %s", path)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		store, err := journal.Open(ctx, path)
		if err != nil {
			return err
		}
		defer store.Close()

		entries, err := store.Recent(ctx, q)
		if err != nil {
			return err
		}

		base, _ := filepath.Abs(cfg.Source)
		fmt.Fprintln(cmd.OutOrStdout(), ui.NewStyles(cmd.OutOrStdout()).HistoryTable(entries, base))
		return nil
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of entries")
	historyCmd.Flags().String("since", "", "Only entries after this time")
	historyCmd.Flags().String("result", "", "Only entries with this result: pushed, skipped or failed")

	rootCmd.AddCommand(historyCmd)
}

var sinceParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// parseSince reads a lower time bound relative to now.
func parseSince(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(-d), nil
	}
	for _, layout := range []string{time.RFC3339, time.DateTime, "2006-01-02 15:04", time.DateOnly} {
		if t, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
			return t, nil
		}
	}

	r, err := sinceParser.Parse(s, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse --since %q: %w", s, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("cannot understand --since %q", s)
	}
	return r.Time, nil
}
