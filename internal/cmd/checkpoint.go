package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conductor-core/conductor-core/internal/checkpoint"
	"github.com/conductor-core/conductor-core/internal/storelock"
	"github.com/conductor-core/conductor-core/internal/waveexec"
)

// newCoordinator wires a checkpoint.Coordinator the way NewExecuteWaveCommand
// does: git VCS collaborator, activity log recorder, rooted at the
// configured state directory.
func newCoordinator(store *storelock.Store, maxActivityBytes int64) *checkpoint.Coordinator {
	vcs := checkpoint.NewGitVCS(store.Dir)
	activity := waveexec.NewActivityLog(store, maxActivityBytes)
	return checkpoint.New(store.Dir, vcs, activity)
}

// NewCheckpointCommand implements spec §6's `checkpoint(message)`: a
// wave-boundary checkpoint taken outside of wave execution (e.g. after
// manual remediation), blocking for the exclusive coordinator lock.
func NewCheckpointCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint <message>",
		Short: "Commit a wave-boundary checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE:  runCheckpoint,
	}
	cmd.Flags().StringSlice("path", nil, "paths to stage (default: everything)")
	return cmd
}

func runCheckpoint(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store := storelock.New(cfg.StateDir, cfg.LockTimeout)
	coord := newCoordinator(store, cfg.ActivityMaxBytes)

	paths, _ := cmd.Flags().GetStringSlice("path")
	commitID, err := coord.WaveCheckpoint(cmd.Context(), cfg.CheckpointBusyTimeout, checkpoint.Request{
		Paths:   paths,
		Message: checkpoint.NewCommitMessage("wave", args[0]),
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), commitID)
	return nil
}

// NewMicroCheckpointCommand implements spec §6's `micro_checkpoint(message)`:
// an opportunistic mid-wave checkpoint that backs off with CheckpointBusy
// rather than blocking behind an in-progress wave checkpoint.
func NewMicroCheckpointCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "micro-checkpoint <message>",
		Short: "Commit an opportunistic mid-wave checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE:  runMicroCheckpoint,
	}
	cmd.Flags().StringSlice("path", nil, "paths to stage (default: everything)")
	return cmd
}

func runMicroCheckpoint(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store := storelock.New(cfg.StateDir, cfg.LockTimeout)
	coord := newCoordinator(store, cfg.ActivityMaxBytes).WithMicroCheckpointWait(cfg.CheckpointBusyTimeout)

	paths, _ := cmd.Flags().GetStringSlice("path")
	commitID, err := coord.MicroCheckpoint(cmd.Context(), checkpoint.Request{
		Paths:   paths,
		Message: checkpoint.NewCommitMessage("micro", args[0]),
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), commitID)
	return nil
}
