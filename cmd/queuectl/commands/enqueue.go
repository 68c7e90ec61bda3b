package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/queuectl/queuectl/cmd/queuectl/internal/format"
	"github.com/queuectl/queuectl/pkg/job"
)

// NewEnqueueCommand creates the 'queuectl enqueue' command. The job can be
// given either as one JSON payload argument or through flags.
func NewEnqueueCommand() *cobra.Command {
	var (
		id         string
		command    string
		priority   int
		timeout    int
		maxRetries int
		runAt      string
	)

	cmd := &cobra.Command{
		Use:     "enqueue [json]",
		Short:   "Add a job to the queue",
		GroupID: "jobs",
		Args:    cobra.MaximumNArgs(1),
		Long: `Add a job to the queue.

The job is persisted immediately and picked up by the next free worker.
Priority, timeout, and max-retries default to the persisted queue
configuration when not given. run_at delays the first attempt; it accepts
RFC 3339 or "2006-01-02 15:04:05" (treated as UTC).

The payload may be one JSON argument with fields id, command, priority,
timeout, max_retries, run_at (unknown keys are rejected), or the
equivalent flags.`,
		Example: `  queuectl enqueue '{"id":"backup-db","command":"pg_dump mydb > /backups/mydb.sql"}'
  queuectl enqueue --id backup-db --command "pg_dump mydb > /backups/mydb.sql"
  queuectl enqueue --id nightly --command "make report" --priority 5 --run-at "2026-01-10T03:00:00Z"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := format.FromCommand(cmd)

			var spec job.Spec
			if len(args) == 1 {
				var err error
				spec, err = job.ParseSpec([]byte(args[0]))
				if err != nil {
					return err
				}
			} else {
				spec = job.Spec{ID: id, Command: command, RunAt: runAt}
				if cmd.Flags().Changed("priority") {
					spec.Priority = &priority
				}
				if cmd.Flags().Changed("timeout") {
					spec.Timeout = &timeout
				}
				if cmd.Flags().Changed("max-retries") {
					spec.MaxRetries = &maxRetries
				}
				if err := spec.Validate(); err != nil {
					return err
				}
			}

			mgr, st, err := openManager(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			j, err := mgr.Enqueue(cmd.Context(), spec)
			if err != nil {
				return err
			}

			if formatter.Mode() == format.ModeJSON {
				return formatter.PrintJSON(j)
			}
			return formatter.PrintSummary(fmt.Sprintf("Enqueued job %s (priority %d)", j.ID, j.Priority))
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Unique job id")
	cmd.Flags().StringVar(&command, "command", "", "Shell command to run")
	cmd.Flags().IntVar(&priority, "priority", 0, "Scheduling priority, higher runs first")
	cmd.Flags().IntVar(&timeout, "timeout", 0, "Per-attempt timeout in seconds")
	cmd.Flags().IntVar(&maxRetries, "max-retries", 0, "Retry budget before the job is moved to the DLQ")
	cmd.Flags().StringVar(&runAt, "run-at", "", "Earliest start time (RFC 3339, default now)")

	return cmd
}
