// Package models defines the core entities shared by the parser, dependency
// analyzer, wave planner, wave executor, watchdog, and checkpoint
// coordinator: Task, Wave, ExecutionPlan, WatchdogEntry, ActivityEvent, and
// SessionSnapshot.
package models

import (
	"fmt"
)

// Status is a tagged sum type over a task's lifecycle states. It replaces
// the tasks.md bracket-marker characters (` `, `~`, `x`) with an explicit
// enum; invalid transitions are rejected at runtime by CanTransitionTo
// rather than by re-deriving meaning from a character.
type Status int

const (
	// StatusPending marks a task not yet claimed for execution.
	StatusPending Status = iota
	// StatusConsumed marks a task claimed for execution but not yet verified complete.
	StatusConsumed
	// StatusComplete marks a task whose completion handshake has been observed.
	StatusComplete
)

// String renders the status the way it is reported in logs and errors.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusConsumed:
		return "CONSUMED"
	case StatusComplete:
		return "COMPLETE"
	default:
		return "UNKNOWN"
	}
}

// Marker returns the tasks.md bracket character for this status.
func (s Status) Marker() byte {
	switch s {
	case StatusPending:
		return ' '
	case StatusConsumed:
		return '~'
	case StatusComplete:
		return 'x'
	default:
		return '?'
	}
}

// ParseStatus maps a tasks.md bracket character to a Status.
func ParseStatus(marker byte) (Status, error) {
	switch marker {
	case ' ':
		return StatusPending, nil
	case '~':
		return StatusConsumed, nil
	case 'x', 'X':
		return StatusComplete, nil
	default:
		return StatusPending, fmt.Errorf("unrecognized status marker %q", marker)
	}
}

// CanTransitionTo reports whether moving from s to next is a legal atomic
// state transition under the protocol in spec §4.5: PENDING -> CONSUMED ->
// COMPLETE, strictly forward, one step at a time. Re-affirming the current
// status (a no-op write) is also legal, so resume logic can re-persist
// without special-casing idempotent writes.
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return true
	}
	switch s {
	case StatusPending:
		return next == StatusConsumed
	case StatusConsumed:
		return next == StatusComplete
	default:
		return false
	}
}

// Task is a single unit of work extracted from the human-edited task list.
type Task struct {
	ID                  string   `json:"id"`
	Description         string   `json:"description"`
	Status              Status   `json:"status"`
	FileLocks           []string `json:"file_locks"`
	Dependencies        []string `json:"dependencies"`
	ConstitutionRules   []string `json:"constitution_rules"`
	AgentRole           string   `json:"agent_role,omitempty"`
	CompletionHandshake string   `json:"completion_handshake,omitempty"`

	// SourceLine is the 1-based line number in tasks.md this task was parsed
	// from. It is not part of the wire schema in execution_plan.json; it
	// exists purely to let the parser and the bit-exact rewriter locate the
	// line whose bracket character must flip without reflowing the file.
	SourceLine int `json:"-"`
}

// Validate checks that the task carries the fields required to be usable by
// the dependency analyzer and wave planner.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("task has empty id")
	}
	if t.Description == "" {
		return fmt.Errorf("task %s: description is required", t.ID)
	}
	return nil
}

// HasFileLock reports whether the task declares the given normalized file
// path among its file locks.
func (t *Task) HasFileLock(path string) bool {
	for _, f := range t.FileLocks {
		if f == path {
			return true
		}
	}
	return false
}

// SharesFileLockWith reports whether t and other declare at least one file
// lock in common.
func (t *Task) SharesFileLockWith(other *Task) bool {
	for _, f := range t.FileLocks {
		if other.HasFileLock(f) {
			return true
		}
	}
	return false
}

// DependsOnTask reports whether id appears in the task's dependency list.
func (t *Task) DependsOnTask(id string) bool {
	for _, d := range t.Dependencies {
		if d == id {
			return true
		}
	}
	return false
}
