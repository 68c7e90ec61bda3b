package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/queuectl/queuectl/cmd/queuectl/internal/format"
	"github.com/queuectl/queuectl/pkg/job"
)

// NewStatusCommand creates the 'queuectl status' command.
func NewStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "status",
		Short:   "Show queue state counts",
		GroupID: "jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := format.FromCommand(cmd)

			mgr, st, err := openManager(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			status, err := mgr.Status(cmd.Context())
			if err != nil {
				return err
			}

			if formatter.Mode() == format.ModeJSON {
				return formatter.PrintJSON(status)
			}

			fmt.Fprintln(cmd.OutOrStdout(), format.Header("Queue status", formatter.Color()))
			rows := make([][]string, 0, len(job.States)+1)
			for _, s := range job.States {
				rows = append(rows, []string{
					format.State(s, formatter.Color()),
					strconv.Itoa(status.Counts[s]),
				})
			}
			rows = append(rows, []string{"workers", strconv.Itoa(status.ActiveWorkers)})
			return formatter.PrintTable([]string{"state", "count"}, rows)
		},
	}

	return cmd
}
