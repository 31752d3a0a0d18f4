// Package execerrors defines the error taxonomy shared by the Durable
// Store, Task Parser, Dependency Analyzer, Wave Planner, Wave Executor,
// Watchdog, and Checkpoint Coordinator, grounded on the teacher's
// internal/executor/errors.go pattern of small typed errors with
// Error()/Unwrap() plus errors.Is/As-friendly sentinel checks.
package execerrors

import (
	"errors"
	"fmt"
)

// Kind is the taxonomy bucket from spec §7: UserInput, StateConflict,
// Transient, Corruption, External.
type Kind int

const (
	KindUserInput Kind = iota
	KindStateConflict
	KindTransient
	KindCorruption
	KindExternal
)

func (k Kind) String() string {
	switch k {
	case KindUserInput:
		return "user_input"
	case KindStateConflict:
		return "state_conflict"
	case KindTransient:
		return "transient"
	case KindCorruption:
		return "corruption"
	case KindExternal:
		return "external"
	default:
		return "unknown"
	}
}

// ExitCode maps a Kind to the process exit code contract in spec §6:
// 0 success, 1 user/state error, 2 transient I/O, 3 fatal corruption.
func (k Kind) ExitCode() int {
	switch k {
	case KindUserInput, KindStateConflict:
		return 1
	case KindTransient, KindExternal:
		return 2
	case KindCorruption:
		return 3
	default:
		return 1
	}
}

// CoreError is the common shape for every error this module returns across
// package boundaries: a taxonomy Kind, the resource involved, what
// happened, and — per spec §7's user-visible message requirement — the
// next command an operator should run to recover.
type CoreError struct {
	Kind       Kind
	Resource   string // file or resource path involved
	Message    string // what happened
	Remedy     string // next command to run to recover
	Err        error  // wrapped cause, if any
}

func (e *CoreError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Resource, e.Message)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Remedy != "" {
		msg = fmt.Sprintf("%s (next: %s)", msg, e.Remedy)
	}
	return msg
}

func (e *CoreError) Unwrap() error { return e.Err }

// New constructs a CoreError.
func New(kind Kind, resource, message, remedy string, cause error) *CoreError {
	return &CoreError{Kind: kind, Resource: resource, Message: message, Remedy: remedy, Err: cause}
}

// Sentinel errors for errors.Is matching at call sites that don't need the
// full CoreError context (e.g. deciding retry-vs-surface policy).
var (
	ErrNotFound            = errors.New("not found")
	ErrLockBusy            = errors.New("lock busy")
	ErrLockTimeout         = errors.New("lock timeout")
	ErrCorruptedState      = errors.New("corrupted state")
	ErrSchemaInvalid       = errors.New("schema invalid")
	ErrIOError             = errors.New("io error")
	ErrUnknownDependency   = errors.New("unknown dependency")
	ErrDependencyCycle     = errors.New("dependency cycle")
	ErrUnmetDependency     = errors.New("unmet dependency")
	ErrVerificationFailed  = errors.New("verification failed")
	ErrCheckpointBusy      = errors.New("checkpoint busy")
	ErrDuplicateTaskID     = errors.New("duplicate task id")
)

// NotFound builds a CoreError wrapping ErrNotFound.
func NotFound(resource string) *CoreError {
	return New(KindUserInput, resource, "not found", fmt.Sprintf("verify %s exists", resource), ErrNotFound)
}

// LockBusy builds a CoreError wrapping ErrLockBusy.
func LockBusy(resource string) *CoreError {
	return New(KindStateConflict, resource, "lock held by another process", "retry shortly or check for a stuck process holding the lock", ErrLockBusy)
}

// LockTimeout builds a CoreError wrapping ErrLockTimeout.
func LockTimeout(resource string, timeoutMs int) *CoreError {
	return New(KindStateConflict, resource, fmt.Sprintf("failed to acquire lock within %dms", timeoutMs), "retry, or increase LOCK_TIMEOUT_MS", ErrLockTimeout)
}

// CorruptedState builds a CoreError wrapping ErrCorruptedState.
func CorruptedState(resource, remedy string) *CoreError {
	return New(KindCorruption, resource, "file is corrupted and no backup could recover it", remedy, ErrCorruptedState)
}

// SchemaInvalid builds a CoreError wrapping ErrSchemaInvalid.
func SchemaInvalid(resource string, cause error) *CoreError {
	err := error(ErrSchemaInvalid)
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrSchemaInvalid, cause)
	}
	return New(KindCorruption, resource, "content failed schema validation", "inspect the file and restore from a known-good backup", err)
}

// IOError builds a CoreError wrapping ErrIOError.
func IOError(resource, message string, cause error) *CoreError {
	err := error(ErrIOError)
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrIOError, cause)
	}
	return New(KindTransient, resource, message, "retry the operation", err)
}

// UnknownDependency builds a CoreError for a task referencing a nonexistent task ID.
func UnknownDependency(taskID, depID string) *CoreError {
	return New(KindUserInput, "tasks.md", fmt.Sprintf("task %s depends on unknown task %s", taskID, depID), fmt.Sprintf("add task %s or remove the dependency reference", depID), ErrUnknownDependency)
}

// DependencyCycle builds a CoreError listing every participant in a cycle.
func DependencyCycle(participants []string) *CoreError {
	return New(KindUserInput, "tasks.md", fmt.Sprintf("circular dependency among tasks: %v", participants), "break the cycle by removing one of the listed dependencies", ErrDependencyCycle)
}

// UnmetDependency builds a CoreError for a wave pre-flight failure.
func UnmetDependency(taskID, depID string) *CoreError {
	return New(KindStateConflict, "execution_plan.json", fmt.Sprintf("task %s depends on %s which is not COMPLETE", taskID, depID), "complete the dependency's wave before retrying", ErrUnmetDependency)
}

// VerificationFailed builds a CoreError for a post-wave verification mismatch.
func VerificationFailed(taskID string) *CoreError {
	return New(KindStateConflict, "tasks.md", fmt.Sprintf("task %s did not reach COMPLETE after worker exit", taskID), "inspect the worker's output, then re-run execute-wave --resume", ErrVerificationFailed)
}

// CheckpointBusy builds a CoreError for a non-fatal micro-checkpoint timeout.
func CheckpointBusy() *CoreError {
	return New(KindTransient, "checkpoint.lock", "micro-checkpoint timed out waiting for the wave checkpoint to finish", "retry the micro-checkpoint after the current wave checkpoint completes", ErrCheckpointBusy)
}

// DuplicateTaskID builds a CoreError for a duplicate task ID found while parsing.
func DuplicateTaskID(taskID string) *CoreError {
	return New(KindUserInput, "tasks.md", fmt.Sprintf("duplicate task id %s", taskID), "rename one of the duplicate tasks to a unique ID", ErrDuplicateTaskID)
}

// Is reports whether err is a CoreError of the given Kind, supporting
// call-site policy decisions (retry vs. surface, per spec §7).
func Is(err error, kind Kind) bool {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}

// ExitCodeFor maps err to the process exit code contract in spec §6
// for cmd/conductor-core's main: a CoreError exits by its Kind, any
// other non-nil error (e.g. cobra usage errors) exits 1.
func ExitCodeFor(err error) int {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Kind.ExitCode()
	}
	return 1
}
