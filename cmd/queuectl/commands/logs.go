package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/queuectl/queuectl/cmd/queuectl/internal/format"
)

// NewLogsCommand creates the 'queuectl logs' command.
func NewLogsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "logs <job-id>",
		Short:   "Show the captured output of a job's last attempt",
		GroupID: "jobs",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := format.FromCommand(cmd)

			mgr, st, err := openManager(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			rec, err := mgr.Logs(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if formatter.Mode() == format.ModeJSON {
				return formatter.PrintJSON(rec)
			}

			// The row is authoritative, but if no attempt has been
			// finalized on it yet the on-disk log may still have output
			// from a crashed worker.
			if rec.ExitCode == nil && rec.Stdout == "" && rec.Stderr == "" {
				if content, err := mgr.LogFile(args[0]); err == nil {
					_, err := fmt.Fprint(cmd.OutOrStdout(), content)
					return err
				}
			}

			code := "none"
			if rec.ExitCode != nil {
				code = fmt.Sprintf("%d", *rec.ExitCode)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "=== EXIT CODE ===\n%s\n\n", code)
			fmt.Fprintf(out, "=== STDOUT ===\n%s\n\n", rec.Stdout)
			fmt.Fprintf(out, "=== STDERR ===\n%s\n", rec.Stderr)
			return nil
		},
	}

	return cmd
}
