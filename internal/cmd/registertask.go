package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conductor-core/conductor-core/internal/models"
	"github.com/conductor-core/conductor-core/internal/storelock"
	"github.com/conductor-core/conductor-core/internal/watchdog"
)

// NewRegisterTaskCommand implements spec §6's
// `register_task(task_id, command, rules)`: a standalone entry point a
// worker (or an operator, for manual recovery) uses to register itself
// with the Task Watchdog without going through the Wave Executor's own
// spawn step.
func NewRegisterTaskCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register-task <task-id> <command>",
		Short: "Register a running task with the watchdog",
		Args:  cobra.ExactArgs(2),
		RunE:  runRegisterTask,
	}
	cmd.Flags().String("rules", "", "comma-separated constitution rule tags")
	cmd.Flags().String("mode", string(models.ModeSubprocess), "watchdog mode: native or subprocess")
	cmd.Flags().String("phase", "", "phase id to attribute this registration to in watchdog history")
	return cmd
}

func runRegisterTask(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store := storelock.New(cfg.StateDir, cfg.LockTimeout)

	history, err := openWatchdogHistory(store)
	if err != nil {
		return err
	}
	defer history.Close()

	phaseID, _ := cmd.Flags().GetString("phase")
	wd := watchdog.New(store, history, phaseID)

	rulesFlag, _ := cmd.Flags().GetString("rules")
	var rules []string
	if rulesFlag != "" {
		for _, r := range strings.Split(rulesFlag, ",") {
			if trimmed := strings.TrimSpace(r); trimmed != "" {
				rules = append(rules, trimmed)
			}
		}
	}

	mode, _ := cmd.Flags().GetString("mode")
	if err := wd.Register(cmd.Context(), args[0], args[1], models.WatchdogMode(mode), rules); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "registered %s\n", args[0])
	return nil
}
