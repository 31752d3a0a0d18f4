package waveexec

import (
	"context"
	"os/exec"

	"github.com/conductor-core/conductor-core/internal/models"
)

// Worker hands a task's instruction off to the worker layer, which is
// explicitly out of scope (spec §4.5 step 3: "hand off to the worker
// layer (out-of-scope process invocation)"). Spawn returns once the task
// is launched, not once it finishes; completion is observed through the
// Task Watchdog's registry. The CLI exposes register-task but no
// heartbeat or complete subcommand, so a worker process reaches
// Heartbeat/Complete only through the watchdog package API.
type Worker interface {
	Spawn(ctx context.Context, task models.TaskRef) error
}

// SubprocessWorker is a Worker that launches each task's instruction
// through the system shell as a child process bound to ctx (cancelling
// ctx kills it), grounded on the
// teacher's ShellCommandRunner (internal/executor/preflight.go) —
// exec.CommandContext with a configurable working directory — adapted
// from "run and capture output" to "launch and return", since this
// Worker's job ends at spawn; completion is observed via the watchdog.
type SubprocessWorker struct {
	WorkDir string
}

// Spawn starts task.Instruction via `sh -c` and returns once the process
// has started (not once it exits).
func (w *SubprocessWorker) Spawn(ctx context.Context, task models.TaskRef) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", task.Instruction)
	if w.WorkDir != "" {
		cmd.Dir = w.WorkDir
	}
	return cmd.Start()
}

var _ Worker = (*SubprocessWorker)(nil)
