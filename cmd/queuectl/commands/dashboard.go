package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/queuectl/queuectl/pkg/dashboard"
)

// NewDashboardCommand creates the 'queuectl dashboard' command group.
func NewDashboardCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "dashboard",
		Short:   "Serve the read-only web dashboard",
		GroupID: "ops",
	}

	cmd.AddCommand(newDashboardStartCommand())

	return cmd
}

// newDashboardStartCommand creates 'queuectl dashboard start'. The server
// is read-only: it renders the queue and exposes the JSON API, but every
// mutation still goes through the CLI.
func newDashboardStartCommand() *cobra.Command {
	var (
		addr string
		port int
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the dashboard HTTP server",
		Example: `  queuectl dashboard start
  queuectl dashboard start --port 9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := currentConfig(cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("addr") {
				addr = cfg.Dashboard.Addr
			}
			if !cmd.Flags().Changed("port") {
				port = cfg.Dashboard.Port
			}

			mgr, st, err := openManager(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := dashboard.New(mgr, addr, port)
			if err := srv.Run(ctx); err != nil {
				return err
			}
			if ctx.Err() != nil {
				return ErrInterrupted
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	cmd.Flags().IntVar(&port, "port", 0, "Listen port (default from config)")

	return cmd
}
