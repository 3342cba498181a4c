package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/Mschirtzinger/pushy/internal/config"
	"github.com/Mschirtzinger/pushy/internal/ui"
)

var initCmd = &cobra.Command{
	Use:     "init",
	GroupID: "setup",
	Short:   "Write a config file interactively",
	Long: `Ask for the source, target and push mode and write them to a config
file that later runs of pushy pick up.

Example usage:
  pushy init                       # Write ./.pushy.yaml
  pushy init -o ~/.pushy.yaml      # Write a per-user default
  pushy init --accessible          # Plain prompts for screen readers`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out, _ := cmd.Flags().GetString("output")
		force, _ := cmd.Flags().GetBool("force")
		accessible, _ := cmd.Flags().GetBool("accessible")

		if _, err := os.Stat(out); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", out)
		}

		a := defaultAnswers()
		if err := initForm(&a).WithAccessible(accessible).Run(); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return nil
			}
			return err
		}

		cfg, err := a.toConfig()
		if err != nil {
			return err
		}
		if err := config.WriteFile(out, cfg); err != nil {
			return err
		}

		styles := ui.NewStyles(cmd.OutOrStdout())
		abs, _ := filepath.Abs(out)
		fmt.Fprintf(cmd.OutOrStdout(), "%s wrote %s\n", styles.Pass.Render("✓"), abs)
		return nil
	},
}

func init() {
	initCmd.Flags().StringP("output", "o", ".pushy.yaml", "Config file to write")
	initCmd.Flags().Bool("force", false, "Overwrite an existing file")
	initCmd.Flags().Bool("accessible", false, "Use plain prompts")

	rootCmd.AddCommand(initCmd)
}

// answers holds the form fields as entered.
type answers struct {
	Source string
	Target string
	Mode   string
	Host   string
	User   string
	Delay  string
	Notify bool
}

const (
	modeLocal  = "local"
	modeRemote = "remote"
	modeExport = "export"
)

func defaultAnswers() answers {
	return answers{
		Source: ".",
		Mode:   modeLocal,
		Delay:  "1",
	}
}

func initForm(a *answers) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Directory to watch").
				Value(&a.Source).
				Validate(validateDir),
			huh.NewInput().
				Title("Target path").
				Description("Where changes are pushed to.").
				Value(&a.Target).
				Validate(required("target")),
			huh.NewSelect[string]().
				Title("Push mode").
				Options(
					huh.NewOption("Local copy", modeLocal),
					huh.NewOption("Remote host over ssh/scp", modeRemote),
					huh.NewOption("Git export (commit every change)", modeExport),
				).
				Value(&a.Mode),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Remote host").
				Value(&a.Host).
				Validate(required("host")),
			huh.NewInput().
				Title("Remote user").
				Description("Leave empty for the current user.").
				Value(&a.User),
		).WithHideFunc(func() bool { return a.Mode != modeRemote }),
		huh.NewGroup(
			huh.NewInput().
				Title("Delay between scans").
				Description("Seconds (1.5) or a duration (500ms).").
				Value(&a.Delay).
				Validate(validateDelay),
			huh.NewConfirm().
				Title("Desktop notifications?").
				Value(&a.Notify),
		),
	)
}

// toConfig converts the answers, keeping defaults for anything not asked.
func (a answers) toConfig() (config.Config, error) {
	delay, err := config.Duration(a.Delay)
	if err != nil {
		return config.Config{}, err
	}

	cfg := config.Config{
		Source: a.Source,
		Target: a.Target,
		Delay:  delay,
		Notify: a.Notify,
	}
	switch a.Mode {
	case modeRemote:
		cfg.Host = a.Host
		cfg.User = a.User
	case modeExport:
		cfg.Export = true
	}
	return cfg, nil
}

func validateDir(s string) error {
	info, err := os.Stat(s)
	if err != nil {
		return fmt.Errorf("cannot access %s", s)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s)
	}
	return nil
}

func validateDelay(s string) error {
	d, err := config.Duration(s)
	if err != nil {
		return err
	}
	if d <= 0 {
		return errors.New("delay must be positive")
	}
	return nil
}

func required(name string) func(string) error {
	return func(s string) error {
		if s == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}
