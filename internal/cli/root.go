// Package cli implements the upahead command tree.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/hiroki-koketsu/upahead/internal/app"
	"github.com/hiroki-koketsu/upahead/internal/config"
	"github.com/hiroki-koketsu/upahead/internal/telemetry"
	"github.com/spf13/cobra"
)

// Builder wires an App from configuration.
type Builder func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app.App, error)

type runner struct {
	loadConfig func() (*config.Config, error)
	build      Builder

	verbose bool
	app     *app.App
}

func defaultBuild(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app.App, error) {
	return app.New(ctx, cfg, logger, app.Hooks{})
}

// NewRootCommand returns the upahead command with every subcommand attached.
// The caller closes the wired App with the returned release function after
// the command has run.
func NewRootCommand() (root *cobra.Command, release func() error) {
	return newRootCommand(config.Load, defaultBuild)
}

func newRootCommand(loadConfig func() (*config.Config, error), build Builder) (*cobra.Command, func() error) {
	r := &runner{loadConfig: loadConfig, build: build}

	root := &cobra.Command{
		Use:   "upahead",
		Short: "upahead - tasks, AI planning and bulk import from the terminal",
		Long: `upahead manages your task list against the configured store.

Without DATABASE_URL it runs in demo mode: a local demo account and tasks
kept in the local state database.`,
		PersistentPreRunE: r.setup,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	root.PersistentFlags().BoolVarP(&r.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(r.loginCmd())
	root.AddCommand(r.logoutCmd())
	root.AddCommand(r.whoamiCmd())
	root.AddCommand(r.tasksCmd())
	root.AddCommand(r.aiCmd())
	root.AddCommand(r.importCmd())
	root.AddCommand(r.healthCmd())
	root.AddCommand(r.assignmentsCmd())
	return root, r.release
}

// Execute runs the root command.
func Execute(version string) error {
	root, release := NewRootCommand()
	root.Version = version
	err := root.Execute()
	if cerr := release(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func (r *runner) setup(cmd *cobra.Command, args []string) error {
	cfg, err := r.loadConfig()
	if err != nil {
		return err
	}

	level := cfg.LogLevel
	if r.verbose {
		level = "debug"
	} else if level == "info" {
		level = "warn"
	}
	logger := telemetry.NewLogger(cmd.ErrOrStderr(), level, cfg.LogFormat)

	a, err := r.build(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	r.app = a
	return nil
}

func (r *runner) release() error {
	if r.app == nil {
		return nil
	}
	err := r.app.Close()
	r.app = nil
	return err
}
