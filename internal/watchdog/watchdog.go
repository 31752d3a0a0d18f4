// Package watchdog implements the Task Watchdog (spec §4.6): the
// registry of worker processes the Wave Executor has spawned. It owns
// task_timers.json, the canonical on-disk record of every task's
// running/completed/failed lifecycle, persisted through
// internal/storelock the same way the rest of the Durable Store is —
// exclusive lock, atomic write, corruption recovery.
//
// Grounded on the teacher's internal/budget.StateManager
// (internal/budget/state.go): a directory-scoped JSON state file, a
// pure (now, recorded timestamp, threshold) -> status function, applied
// by ReclaimStale at startup reconciliation (not when entries are read).
package watchdog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/conductor-core/conductor-core/internal/execerrors"
	"github.com/conductor-core/conductor-core/internal/models"
	"github.com/conductor-core/conductor-core/internal/storelock"
)

const taskTimersFile = "task_timers.json"

// History is the subset of watchdogstore.Store the Watchdog depends on,
// kept as an interface so tests can substitute a no-op recorder.
type History interface {
	RecordEntry(ctx context.Context, phaseID, taskID string, entry models.WatchdogEntry) error
}

// Watchdog supervises worker processes registered against a single
// phase's task_timers.json.
type Watchdog struct {
	store   *storelock.Store
	history History
	phaseID string
	clock   func() time.Time
}

// New returns a Watchdog rooted at the same directory as the rest of
// the phase's Durable Store state.
func New(store *storelock.Store, history History, phaseID string) *Watchdog {
	return &Watchdog{store: store, history: history, phaseID: phaseID, clock: time.Now}
}

func (w *Watchdog) now() time.Time {
	if w.clock != nil {
		return w.clock()
	}
	return time.Now()
}

// Register records a new running entry for taskID under the given
// command and mode. Re-registering a taskID that is already running
// overwrites its entry (the Wave Executor only calls Register once per
// spawn attempt; a second call means a retry, which is expected to
// replace the stale attempt).
func (w *Watchdog) Register(ctx context.Context, taskID, command string, mode models.WatchdogMode, constitutionRules []string) error {
	return w.mutate(ctx, func(timers *models.TaskTimers) error {
		entry := models.WatchdogEntry{
			TaskID:            taskID,
			Mode:              mode,
			Command:           command,
			Status:            models.WatchdogRunning,
			StartedAt:         w.now(),
			LastHeartbeat:     w.now(),
			ConstitutionRules: constitutionRules,
		}
		timers.Tasks[taskID] = entry
		return w.record(ctx, entry)
	})
}

// Heartbeat refreshes taskID's last-seen timestamp so it is not reclaimed
// as stale.
func (w *Watchdog) Heartbeat(ctx context.Context, taskID string) error {
	return w.mutate(ctx, func(timers *models.TaskTimers) error {
		entry, ok := timers.Tasks[taskID]
		if !ok {
			return execerrors.NotFound(fmt.Sprintf("task_timers entry %s", taskID))
		}
		if entry.Status != models.WatchdogRunning {
			return nil
		}
		entry.LastHeartbeat = w.now()
		timers.Tasks[taskID] = entry
		return nil
	})
}

// Complete marks taskID finished with the given exit status. A non-zero
// exitStatus without an explicit failureReason is recorded with a
// generic "nonzero exit" reason.
func (w *Watchdog) Complete(ctx context.Context, taskID string, exitStatus int, failureReason string) error {
	return w.mutate(ctx, func(timers *models.TaskTimers) error {
		entry, ok := timers.Tasks[taskID]
		if !ok {
			return execerrors.NotFound(fmt.Sprintf("task_timers entry %s", taskID))
		}
		completed := w.now()
		entry.CompletedAt = &completed
		entry.LastHeartbeat = completed
		status := exitStatus
		entry.ExitStatus = &status
		if exitStatus == 0 {
			entry.Status = models.WatchdogCompleted
		} else {
			entry.Status = models.WatchdogFailed
			if failureReason == "" {
				failureReason = fmt.Sprintf("worker exited with status %d", exitStatus)
			}
		}
		entry.FailureReason = failureReason
		timers.Tasks[taskID] = entry
		return w.record(ctx, entry)
	})
}

// ListRunning returns every entry still in the running state.
func (w *Watchdog) ListRunning(ctx context.Context) ([]models.WatchdogEntry, error) {
	timers, err := w.load()
	if err != nil {
		return nil, err
	}
	var running []models.WatchdogEntry
	for _, id := range timers.RunningTasks() {
		running = append(running, timers.Tasks[id])
	}
	return running, nil
}

// Snapshot returns the full current registry.
func (w *Watchdog) Snapshot(ctx context.Context) (*models.TaskTimers, error) {
	return w.load()
}

// ReclaimStale implements spec §4.6's startup reconciliation: any entry
// still "running" whose last heartbeat is older than threshold is
// transitioned to failed with reason "stale_on_recovery". Returns the
// IDs reclaimed.
func (w *Watchdog) ReclaimStale(ctx context.Context, threshold time.Duration) ([]string, error) {
	var reclaimed []string
	err := w.mutate(ctx, func(timers *models.TaskTimers) error {
		now := w.now()
		for id, entry := range timers.Tasks {
			if !entry.IsStale(now, threshold) {
				continue
			}
			entry.Status = models.WatchdogFailed
			entry.FailureReason = "stale_on_recovery"
			entry.LastHeartbeat = now
			timers.Tasks[id] = entry
			reclaimed = append(reclaimed, id)
			if err := w.record(ctx, entry); err != nil {
				return err
			}
		}
		return nil
	})
	return reclaimed, err
}

func (w *Watchdog) record(ctx context.Context, entry models.WatchdogEntry) error {
	if w.history == nil {
		return nil
	}
	return w.history.RecordEntry(ctx, w.phaseID, entry.TaskID, entry)
}

func (w *Watchdog) load() (*models.TaskTimers, error) {
	timers := &models.TaskTimers{Tasks: map[string]models.WatchdogEntry{}}
	if err := w.store.ReadJSON(taskTimersFile, timers); err != nil {
		if execerrors.Is(err, execerrors.KindUserInput) {
			return timers, nil
		}
		return nil, err
	}
	if timers.Tasks == nil {
		timers.Tasks = map[string]models.WatchdogEntry{}
	}
	return timers, nil
}

// mutate loads task_timers.json, runs fn against it, and writes the
// result back, all while holding the file's exclusive lock.
func (w *Watchdog) mutate(ctx context.Context, fn func(*models.TaskTimers) error) error {
	return w.store.WithLock(ctx, taskTimersFile, func() error {
		timers, err := w.loadLocked()
		if err != nil {
			return err
		}
		if err := fn(timers); err != nil {
			return err
		}
		return w.store.WriteJSON(taskTimersFile, timers)
	})
}

// loadLocked is load without re-acquiring the lock (the caller already
// holds it via WithLock).
func (w *Watchdog) loadLocked() (*models.TaskTimers, error) {
	return w.load()
}

// NewEntryID mints an identifier for callers that want to correlate a
// watchdog registration with an external event (e.g. an activity log
// entry), mirroring the teacher's use of uuid for session IDs.
func NewEntryID() string {
	return uuid.NewString()
}
