package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/conductor-core/conductor-core/internal/checkpoint"
	"github.com/conductor-core/conductor-core/internal/logger"
	"github.com/conductor-core/conductor-core/internal/models"
	"github.com/conductor-core/conductor-core/internal/storelock"
	"github.com/conductor-core/conductor-core/internal/watchdog"
	"github.com/conductor-core/conductor-core/internal/waveexec"
)

const executionPlanFile = "execution_plan.json"

// NewExecuteWaveCommand implements spec §6's
// `execute_wave(wave_id)` — drive a single wave of the most recently
// written execution_plan.json to completion. `--resume` allows
// re-entering a wave that wave_executor_state.json already marks
// complete (the normal crash-recovery path); without it, re-running an
// already-completed wave is refused so a stale command doesn't silently
// re-checkpoint nothing.
//
// On startup it acquires the watchdog's single-instance lock (spec
// §4.6: "on startup it acquires the lock or exits with a clear error if
// another instance holds it") and reclaims any task_timers.json entry
// left "running" by a crashed prior invocation before spawning anything
// new.
func NewExecuteWaveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "execute-wave <wave-id>",
		Short: "Drive one wave of execution_plan.json to completion",
		Args:  cobra.ExactArgs(1),
		RunE:  runExecuteWave,
	}
	cmd.Flags().Bool("resume", false, "allow re-entering an already-completed wave")
	return cmd
}

func runExecuteWave(cmd *cobra.Command, args []string) error {
	var waveID int
	if _, err := fmt.Sscanf(args[0], "%d", &waveID); err != nil {
		return fmt.Errorf("invalid wave id %q: %w", args[0], err)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store := storelock.New(cfg.StateDir, cfg.LockTimeout)

	singleton, err := watchdog.AcquireSingleton(store.Dir)
	if err != nil {
		return err
	}
	defer singleton.Release()

	plan := &models.ExecutionPlan{}
	if err := store.ReadJSON(executionPlanFile, plan); err != nil {
		return err
	}
	wave, ok := plan.Wave(waveID)
	if !ok {
		return fmt.Errorf("wave %d not found in %s", waveID, executionPlanFile)
	}

	resume, _ := cmd.Flags().GetBool("resume")
	if !resume {
		state := &models.ExecutorState{CurrentWave: 1, PhaseID: plan.PhaseID}
		if err := store.ReadJSON("wave_executor_state.json", state); err == nil && state.HasCompletedWave(waveID) {
			return fmt.Errorf("wave %d already completed; pass --resume to re-enter it", waveID)
		}
	}

	history, err := openWatchdogHistory(store)
	if err != nil {
		return err
	}
	defer history.Close()

	wd := watchdog.New(store, history, plan.PhaseID)
	if _, err := wd.ReclaimStale(cmd.Context(), cfg.StaleTaskThreshold); err != nil {
		return err
	}

	activity := waveexec.NewActivityLog(store, cfg.ActivityMaxBytes)
	coord := checkpoint.New(store.Dir, checkpoint.NewGitVCS(store.Dir), activity)
	worker := &waveexec.SubprocessWorker{WorkDir: store.Dir}
	consoleLog := logger.NewConsoleLogger(os.Stdout, cfg.LogLevel)

	ex := waveexec.New(waveexec.Deps{
		Store:        store,
		Watchdog:     wd,
		Checkpointer: coord,
		Worker:       worker,
		Logger:       consoleLog,
		Clock:        time.Now,
		LockTimeout:  cfg.LockTimeout,
	})

	subplan := &models.ExecutionPlan{PhaseID: plan.PhaseID, CreatedAt: plan.CreatedAt, Waves: []models.Wave{*wave}}
	return ex.Run(cmd.Context(), subplan)
}
