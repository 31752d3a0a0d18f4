package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/conductor-core/conductor-core/internal/config"
	"github.com/conductor-core/conductor-core/internal/storelock"
	"github.com/conductor-core/conductor-core/internal/watchdogstore"
)

// watchdogHistoryFile is the SQLite database the watchdog's supplementary
// history store lives in, rooted at the configured Durable Store directory.
const watchdogHistoryFile = "watchdog_history.db"

// loadConfig resolves conductor-core's config the way the teacher's
// runCommand does: explicit --config path if given, otherwise defaults
// merged with environment overrides (spec §6: LOCK_TIMEOUT_MS,
// ACTIVITY_MAX_BYTES, STALE_TASK_SECONDS). It also sweeps any `.tmp-*`
// files a previously killed process left behind in the state directory
// (spec §5), the way the teacher's startup path cleans up before
// touching any state file.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if dir, _ := cmd.Flags().GetString("state-dir"); dir != "" {
		cfg.StateDir = dir
	}
	if err := storelock.SweepOrphanedTemps(cfg.StateDir); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openWatchdogHistory opens the watchdog history database rooted at
// store's directory, creating it if it doesn't exist yet.
func openWatchdogHistory(store *storelock.Store) (*watchdogstore.Store, error) {
	return watchdogstore.NewStore(filepath.Join(store.Dir, watchdogHistoryFile))
}
