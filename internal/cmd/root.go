// Package cmd provides the cobra command tree for conductor-core's thin
// CLI front-end (spec §6 "command surface (contract shape, not a CLI
// spec)"). Grounded on the teacher's internal/cmd/root.go: a bare
// *cobra.Command carrying Use/Short/Long/Version plus a flat
// AddCommand list; its only global flags are the persistent --state-dir
// and --config.
package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags.
var Version = "dev"

// NewRootCommand creates the root cobra command for conductor-core.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conductor-core",
		Short: "Task orchestration and wave execution core",
		Long: `conductor-core drives a tasks.md task list through dependency-ordered,
checkpointed waves of execution.

It parses tasks.md, builds the dependency graph, partitions it into an
execution plan, and executes each wave to completion: spawning tasks
through the watchdog, waiting for terminal status, verifying tasks.md
reflects completion, and checkpointing the result.`,
		Version:      Version,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("state-dir", "", "Durable Store root directory (default: config state_dir)")
	cmd.PersistentFlags().String("config", "", "Path to config.yaml (default: none; built-in defaults plus env overrides)")

	cmd.AddCommand(NewOrchestrateCommand())
	cmd.AddCommand(NewExecuteWaveCommand())
	cmd.AddCommand(NewCheckpointCommand())
	cmd.AddCommand(NewMicroCheckpointCommand())
	cmd.AddCommand(NewRegisterTaskCommand())

	return cmd
}
