package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/queuectl/queuectl/cmd/queuectl/internal/format"
	"github.com/queuectl/queuectl/pkg/job"
)

// NewMetricsCommand creates the 'queuectl metrics' command.
func NewMetricsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "metrics",
		Short:   "Show queue rollups: totals per state and average runtime",
		GroupID: "ops",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := format.FromCommand(cmd)

			mgr, st, err := openManager(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			metrics, err := mgr.Metrics(cmd.Context())
			if err != nil {
				return err
			}

			if formatter.Mode() == format.ModeJSON {
				return formatter.PrintJSON(metrics)
			}

			fmt.Fprintln(cmd.OutOrStdout(), format.Header("Queue metrics", formatter.Color()))
			rows := [][]string{
				{"total jobs", strconv.Itoa(metrics.TotalJobs)},
			}
			for _, s := range job.States {
				rows = append(rows, []string{string(s), strconv.Itoa(metrics.Counts[s])})
			}
			rows = append(rows,
				[]string{"avg runtime", fmt.Sprintf("%.2fs", metrics.AvgRuntimeSeconds)},
				[]string{"workers", strconv.Itoa(metrics.ActiveWorkers)},
			)
			return formatter.PrintTable([]string{"metric", "value"}, rows)
		},
	}

	return cmd
}
