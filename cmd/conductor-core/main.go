// Package main is the CLI entry point for conductor-core: a thin cobra
// front-end (spec §6) over the Orchestrator, Wave Executor, and
// Checkpoint Coordinator. Grounded on the teacher's cmd/conductor/main.go
// shape — build rootCmd, Execute, print and exit 1 on error — generalized
// to the error taxonomy's process exit codes (spec §6: 0 success, 1
// user/state error, 2 transient I/O, 3 fatal corruption).
package main

import (
	"fmt"
	"os"

	"github.com/conductor-core/conductor-core/internal/cmd"
	"github.com/conductor-core/conductor-core/internal/execerrors"
)

// Version is injected at build time via -ldflags.
var Version = "dev"

func main() {
	cmd.Version = Version
	rootCmd := cmd.NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(execerrors.ExitCodeFor(err))
	}
}
