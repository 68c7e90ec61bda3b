package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/queuectl/queuectl/cmd/queuectl/internal/format"
	"github.com/queuectl/queuectl/pkg/store"
)

// NewConfigCommand creates the 'queuectl config' command group. These
// settings live in the database, so every process on the host sees the same
// values; process-level settings (data dir, logging) come from flags or the
// config file instead.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		Short:   "Show and change the persisted queue configuration",
		GroupID: "ops",
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigSetCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the persisted queue configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := format.FromCommand(cmd)

			mgr, st, err := openManager(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			values, err := mgr.ConfigShow(cmd.Context())
			if err != nil {
				return err
			}

			if formatter.Mode() == format.ModeJSON {
				return formatter.PrintJSON(values)
			}

			rows := make([][]string, 0, len(values))
			for _, k := range store.ConfigKeys(values) {
				rows = append(rows, []string{k, values[k]})
			}
			return formatter.PrintTable([]string{"key", "value"}, rows)
		},
	}

	return cmd
}

func newConfigSetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set one queue configuration option",
		Long: `Set one queue configuration option.

Keys: backoff_base, default_priority, default_timeout, max_retries.
Changes apply to jobs enqueued afterwards and to retry delays computed
afterwards; already-scheduled retry times are not recomputed.`,
		Example: `  queuectl config set max_retries 5
  queuectl config set backoff_base 3`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := format.FromCommand(cmd)

			mgr, st, err := openManager(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := mgr.ConfigSet(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}

			if formatter.Mode() == format.ModeJSON {
				return formatter.PrintJSON(map[string]string{args[0]: args[1]})
			}
			return formatter.PrintSummary(fmt.Sprintf("Set %s = %s", args[0], args[1]))
		},
	}

	return cmd
}
