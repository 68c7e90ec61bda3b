package commands

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/queuectl/queuectl/cmd/queuectl/internal/format"
	"github.com/queuectl/queuectl/pkg/job"
	"github.com/queuectl/queuectl/pkg/store"
)

// NewListCommand creates the 'queuectl list' command.
func NewListCommand() *cobra.Command {
	var (
		state string
		limit int
	)

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List jobs, newest first",
		GroupID: "jobs",
		Example: `  queuectl list
  queuectl list --state failed
  queuectl list --state dead --limit 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := format.FromCommand(cmd)

			var filter job.State
			if state != "" {
				filter = job.State(state)
				if !filter.Valid() {
					return store.NewInvalidInputError("state", fmt.Sprintf("unknown state %q", state))
				}
			}

			mgr, st, err := openManager(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			jobs, err := mgr.List(cmd.Context(), filter, limit)
			if err != nil {
				return err
			}

			if formatter.Mode() == format.ModeJSON {
				return formatter.PrintJSON(jobs)
			}

			headers := []string{"id", "state", "priority", "attempts", "created", "command"}
			rows := make([][]string, 0, len(jobs))
			for _, j := range jobs {
				rows = append(rows, []string{
					j.ID,
					format.State(j.State, formatter.Color()),
					strconv.Itoa(j.Priority),
					fmt.Sprintf("%d/%d", j.Attempts, j.MaxRetries+1),
					humanize.Time(j.CreatedAt),
					truncate(j.Command, 60),
				})
			}
			return formatter.PrintTable(headers, rows)
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "Filter by state (pending, processing, completed, failed, dead)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of jobs to show")

	return cmd
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
