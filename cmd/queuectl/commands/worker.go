package commands

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/queuectl/queuectl/cmd/queuectl/internal/format"
	"github.com/queuectl/queuectl/pkg/executor"
	"github.com/queuectl/queuectl/pkg/manager"
	"github.com/queuectl/queuectl/pkg/worker"
)

// NewWorkerCommand creates the 'queuectl worker' command group.
func NewWorkerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "worker",
		Short:   "Run and maintain workers",
		GroupID: "ops",
	}

	cmd.AddCommand(newWorkerStartCommand())
	cmd.AddCommand(newWorkerReapCommand())

	return cmd
}

// newWorkerStartCommand creates 'queuectl worker start'.
//
// The pool runs until interrupted (SIGINT/SIGTERM). Workers finish the job
// they are executing, finalize it, and exit; nothing is left in processing
// on a clean shutdown.
func newWorkerStartCommand() *cobra.Command {
	var (
		count        int
		pollInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a worker pool",
		Example: `  queuectl worker start
  queuectl worker start --count 4
  queuectl worker start --count 1 --poll-interval 1s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := currentConfig(cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("count") {
				count = cfg.Worker.Count
			}
			if !cmd.Flags().Changed("poll-interval") {
				pollInterval = cfg.Worker.PollInterval
			}

			st, _, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			lw, err := manager.NewLogWriter(cfg.LogsDir())
			if err != nil {
				return err
			}

			pool := worker.NewPool(st, executor.New(), count,
				worker.WithPoolPollInterval(pollInterval),
				worker.WithPoolLogWriter(lw),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := pool.Run(ctx); err != nil {
				return err
			}
			if ctx.Err() != nil {
				return ErrInterrupted
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&count, "count", 0, "Number of concurrent workers (default from config)")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", 0, "Sleep between empty claim attempts (default from config)")

	return cmd
}

// newWorkerReapCommand creates 'queuectl worker reap': a manual sweep that
// fails processing rows whose worker died without finalizing them. The same
// sweep also runs automatically whenever the store is opened.
func newWorkerReapCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reap",
		Short: "Fail orphaned processing jobs left by crashed workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := format.FromCommand(cmd)

			st, _, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			n, err := st.ReapOrphans(cmd.Context(), time.Now().UTC())
			if err != nil {
				return err
			}

			if formatter.Mode() == format.ModeJSON {
				return formatter.PrintJSON(map[string]int{"reaped": n})
			}
			return formatter.PrintSummary(fmt.Sprintf("Reaped %d orphaned job(s)", n))
		},
	}

	return cmd
}
