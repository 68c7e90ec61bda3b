package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/queuectl/queuectl/cmd/queuectl/internal/format"
	"github.com/queuectl/queuectl/pkg/manager"
)

// NewInitCommand creates the 'queuectl init' command. Opening the store
// creates the database and runs migrations, so init is just an explicit
// first open plus the log directory.
func NewInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "init",
		Short:   "Create the data directory and initialize the database",
		GroupID: "ops",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := format.FromCommand(cmd)

			st, cfg, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			if _, err := manager.NewLogWriter(cfg.LogsDir()); err != nil {
				return err
			}

			if formatter.Mode() == format.ModeJSON {
				return formatter.PrintJSON(map[string]string{
					"database": cfg.DBPath(),
					"logs":     cfg.LogsDir(),
				})
			}
			return formatter.PrintSummary(fmt.Sprintf("Initialized queue at %s", cfg.DBPath()))
		},
	}

	return cmd
}
