package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/queuectl/queuectl/pkg/appctx"
	"github.com/queuectl/queuectl/pkg/config"
	"github.com/queuectl/queuectl/pkg/manager"
	"github.com/queuectl/queuectl/pkg/store"
)

// currentConfig returns the configuration loaded by the root command.
func currentConfig(cmd *cobra.Command) (config.Config, error) {
	mgr, ok := appctx.Config(cmd.Context())
	if !ok {
		return config.Config{}, fmt.Errorf("configuration not initialized")
	}
	return mgr.Get(), nil
}

// openStore opens the job store under the configured data directory. The
// caller owns the returned store and must Close it.
func openStore(cmd *cobra.Command) (*store.Store, config.Config, error) {
	cfg, err := currentConfig(cmd)
	if err != nil {
		return nil, config.Config{}, err
	}

	st, err := store.Open(cmd.Context(), cfg.DBPath(), time.Now().UTC())
	if err != nil {
		return nil, config.Config{}, err
	}
	return st, cfg, nil
}

// openManager opens the store and wraps it in a Manager with the per-job
// log file writer attached.
func openManager(cmd *cobra.Command) (*manager.Manager, *store.Store, error) {
	st, cfg, err := openStore(cmd)
	if err != nil {
		return nil, nil, err
	}

	lw, err := manager.NewLogWriter(cfg.LogsDir())
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	return manager.New(st, manager.WithLogWriter(lw)), st, nil
}
