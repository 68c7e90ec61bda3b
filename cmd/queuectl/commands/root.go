// Package commands wires the queuectl CLI: one Cobra command per queue
// operation, sharing configuration and store access through the command
// context.
package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/queuectl/queuectl/pkg/appctx"
	"github.com/queuectl/queuectl/pkg/config"
	"github.com/queuectl/queuectl/pkg/logging"
)

const cliExecutable = "queuectl"

// ErrInterrupted marks a run that was stopped by SIGINT/SIGTERM. main maps
// it to exit code 130.
var ErrInterrupted = errors.New("interrupted")

// NewCommand constructs the top-level queuectl CLI command, wiring global
// flags, configuration loading, and logging setup.
func NewCommand() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   cliExecutable,
		Short: "queuectl is a background job queue for a single host",
		Long: `queuectl runs shell commands as persistent background jobs.

Jobs live in a SQLite database shared by every queuectl process on the
host. Enqueue from any shell, run one or more worker pools, and inspect
the queue with list/status/logs or the read-only dashboard.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfgMgr := config.NewManager()
			if err := cfgMgr.Load(cmd.Flags(), configFile); err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}

			cfg := cfgMgr.Get()
			if err := logging.ConfigureGlobalLogging(cfg.Log.Level, cfg.Log.Format); err != nil {
				return fmt.Errorf("configure logging: %w", err)
			}

			ctx := appctx.WithConfig(cmd.Context(), cfgMgr)
			cmd.SetContext(ctx)
			if root := cmd.Root(); root != nil && root != cmd {
				root.SetContext(ctx)
			}
			return nil
		},
	}

	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path")
	cmd.PersistentFlags().Bool("json", false, "Output machine-readable JSON")
	cmd.PersistentFlags().Bool("quiet", false, "Suppress summary messages")

	config.BindFlags(cmd.PersistentFlags())

	cmd.AddGroup(&cobra.Group{ID: "jobs", Title: "Job Commands"})
	cmd.AddGroup(&cobra.Group{ID: "ops", Title: "Operations Commands"})

	cmd.AddCommand(NewInitCommand())
	cmd.AddCommand(NewEnqueueCommand())
	cmd.AddCommand(NewListCommand())
	cmd.AddCommand(NewStatusCommand())
	cmd.AddCommand(NewLogsCommand())
	cmd.AddCommand(NewMetricsCommand())
	cmd.AddCommand(NewWorkerCommand())
	cmd.AddCommand(NewDLQCommand())
	cmd.AddCommand(NewConfigCommand())
	cmd.AddCommand(NewDashboardCommand())
	cmd.AddCommand(NewVersionCommand())

	return cmd
}
