package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/conductor-core/conductor-core/internal/depgraph"
	"github.com/conductor-core/conductor-core/internal/execerrors"
	"github.com/conductor-core/conductor-core/internal/storelock"
	"github.com/conductor-core/conductor-core/internal/taskparser"
	"github.com/conductor-core/conductor-core/internal/waveplanner"
)

// NewOrchestrateCommand implements spec §6's `orchestrate(phase_id)`:
// parse tasks.md, build the dependency graph, partition it into waves,
// and write execution_plan.json.
func NewOrchestrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orchestrate <phase-id>",
		Short: "Parse tasks.md and write execution_plan.json",
		Args:  cobra.ExactArgs(1),
		RunE:  runOrchestrate,
	}
	return cmd
}

func runOrchestrate(cmd *cobra.Command, args []string) error {
	phaseID := args[0]

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store := storelock.New(cfg.StateDir, cfg.LockTimeout)

	src, err := os.ReadFile(filepath.Join(store.Dir, "tasks.md"))
	if err != nil {
		return execerrors.IOError("tasks.md", "failed to read task list", err)
	}

	tasks, err := taskparser.Parse(src)
	if err != nil {
		return err
	}

	graph, err := depgraph.Build(tasks)
	if err != nil {
		return err
	}
	if ok, cycle := graph.HasCycle(); ok {
		return fmt.Errorf("circular dependency detected: %v", cycle)
	}
	if err := graph.Validate(); err != nil {
		return err
	}

	plan, err := waveplanner.Plan(phaseID, time.Now, graph)
	if err != nil {
		return err
	}

	if err := store.WithLock(cmd.Context(), "execution_plan.json", func() error {
		return store.WriteJSON("execution_plan.json", plan)
	}); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "phase %s: %d wave(s) across %d task(s)\n", phaseID, len(plan.Waves), len(tasks))
	return nil
}
