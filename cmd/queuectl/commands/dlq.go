package commands

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/queuectl/queuectl/cmd/queuectl/internal/format"
)

// NewDLQCommand creates the 'queuectl dlq' command group.
func NewDLQCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "dlq",
		Short:   "Inspect and retry dead jobs",
		GroupID: "jobs",
	}

	cmd.AddCommand(newDLQListCommand())
	cmd.AddCommand(newDLQRetryCommand())

	return cmd
}

func newDLQListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs in the dead letter queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := format.FromCommand(cmd)

			mgr, st, err := openManager(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			jobs, err := mgr.DLQList(cmd.Context())
			if err != nil {
				return err
			}

			if formatter.Mode() == format.ModeJSON {
				return formatter.PrintJSON(jobs)
			}

			headers := []string{"id", "attempts", "died", "error", "command"}
			rows := make([][]string, 0, len(jobs))
			for _, j := range jobs {
				died := ""
				if j.FinishedAt != nil {
					died = humanize.Time(*j.FinishedAt)
				}
				rows = append(rows, []string{
					j.ID,
					strconv.Itoa(j.Attempts),
					died,
					truncate(j.Error, 40),
					truncate(j.Command, 40),
				})
			}
			return formatter.PrintTable(headers, rows)
		},
	}

	return cmd
}

func newDLQRetryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retry <job-id>",
		Short: "Move a dead job back to pending with a fresh retry budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := format.FromCommand(cmd)

			mgr, st, err := openManager(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := mgr.DLQRetry(cmd.Context(), args[0]); err != nil {
				return err
			}

			if formatter.Mode() == format.ModeJSON {
				return formatter.PrintJSON(map[string]any{"id": args[0], "state": "pending"})
			}
			return formatter.PrintSummary(fmt.Sprintf("Job %s re-queued", args[0]))
		},
	}

	return cmd
}
