// Package waveexec implements the Wave Executor (spec §4.5): drives one
// execution plan wave at a time through pre-flight, consume, spawn,
// await, verify, and checkpoint, persisting its resume point to
// wave_executor_state.json after every successful wave.
//
// Grounded on the teacher's internal/executor/wave.go WaveExecutor
// (bounded-concurrency goroutine-per-task fan-out with a semaphore and a
// results channel) generalized from "task executor runs synchronously"
// to "spawn now, observe completion later through the watchdog", and on
// internal/executor/orchestrator.go's sequential per-wave loop.
package waveexec

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/conductor-core/conductor-core/internal/checkpoint"
	"github.com/conductor-core/conductor-core/internal/execerrors"
	"github.com/conductor-core/conductor-core/internal/models"
	"github.com/conductor-core/conductor-core/internal/storelock"
	"github.com/conductor-core/conductor-core/internal/taskparser"
)

const (
	tasksFile         = "tasks.md"
	executorStateFile = "wave_executor_state.json"
)

// Logger is the Wave Executor's logging seam, grounded on the teacher's
// Logger interface (internal/executor/orchestrator.go) narrowed to this
// domain's events plus the retry hooks SPEC_FULL.md's ambient stack
// section calls for.
type Logger interface {
	LogWaveStart(waveID int, strategy models.Strategy, taskIDs []string)
	LogWaveComplete(waveID int)
	LogWaveSummary(waveID, taskCount, completed, failed int, duration time.Duration)
	LogTaskSpawned(taskID string)
	LogTaskTerminal(taskID string, status models.WatchdogStatus)
	LogRetryAttempt(operation string, attempt int, err error)
	LogRetryGiveUp(operation string, err error)
}

// Watchdog is the subset of *watchdog.Watchdog the executor depends on,
// kept as an interface for test substitution.
type Watchdog interface {
	Register(ctx context.Context, taskID, command string, mode models.WatchdogMode, constitutionRules []string) error
	ListRunning(ctx context.Context) ([]models.WatchdogEntry, error)
	Snapshot(ctx context.Context) (*models.TaskTimers, error)
}

// Checkpointer is the subset of *checkpoint.Coordinator the executor
// depends on.
type Checkpointer interface {
	PreflightLock(ctx context.Context, timeout time.Duration) (func() error, error)
	WaveCheckpoint(ctx context.Context, timeout time.Duration, req checkpoint.Request) (string, error)
}

// Deps bundles the Wave Executor's collaborators.
type Deps struct {
	Store        *storelock.Store
	Watchdog     Watchdog
	Checkpointer Checkpointer
	Worker       Worker
	Logger       Logger
	Clock        func() time.Time

	// AwaitPollInterval is how often Await re-checks watchdog status.
	AwaitPollInterval time.Duration
	// TaskDeadline bounds how long Await waits for a wave's tasks to
	// reach a terminal watchdog status before failing the wave.
	TaskDeadline time.Duration
	// LockTimeout bounds pre-flight/consume/checkpoint lock waits.
	LockTimeout time.Duration
}

// Executor drives an ExecutionPlan wave by wave.
type Executor struct {
	deps Deps
}

// New returns an Executor. Zero-value AwaitPollInterval/TaskDeadline/
// LockTimeout fall back to sane defaults.
func New(deps Deps) *Executor {
	if deps.AwaitPollInterval == 0 {
		deps.AwaitPollInterval = 500 * time.Millisecond
	}
	if deps.TaskDeadline == 0 {
		deps.TaskDeadline = 30 * time.Minute
	}
	if deps.LockTimeout == 0 {
		deps.LockTimeout = 30 * time.Second
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Executor{deps: deps}
}

func (e *Executor) now() time.Time { return e.deps.Clock() }

// loadState reads wave_executor_state.json, returning a fresh
// {current_wave: 1} state if none exists yet (spec §4.5: "On fresh
// start, current_wave = 1, completed_waves = []").
func (e *Executor) loadState(phaseID string) (*models.ExecutorState, error) {
	state := &models.ExecutorState{CurrentWave: 1, PhaseID: phaseID}
	if err := e.deps.Store.ReadJSON(executorStateFile, state); err != nil {
		if execerrors.Is(err, execerrors.KindUserInput) {
			return &models.ExecutorState{CurrentWave: 1, PhaseID: phaseID}, nil
		}
		return nil, err
	}
	return state, nil
}

func (e *Executor) saveState(state *models.ExecutorState) error {
	state.Timestamp = e.now()
	return e.deps.Store.WriteJSON(executorStateFile, state)
}

// Run drives plan to completion (or the first fatal error), resuming
// from wave_executor_state.json if present.
func (e *Executor) Run(ctx context.Context, plan *models.ExecutionPlan) error {
	state, err := e.loadState(plan.PhaseID)
	if err != nil {
		return err
	}

	for _, wave := range plan.Waves {
		if state.HasCompletedWave(wave.WaveID) {
			continue
		}
		if wave.WaveID < state.CurrentWave {
			continue
		}
		if err := e.executeWave(ctx, wave); err != nil {
			return fmt.Errorf("wave %d: %w", wave.WaveID, err)
		}
		state.CompletedWaves = append(state.CompletedWaves, wave.WaveID)
		state.CurrentWave = wave.WaveID + 1
		if err := e.saveState(state); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) executeWave(ctx context.Context, wave models.Wave) error {
	start := e.now()
	if e.deps.Logger != nil {
		e.deps.Logger.LogWaveStart(wave.WaveID, wave.Strategy, wave.TaskIDs())
	}

	if err := e.preflight(ctx, wave); err != nil {
		return err
	}
	skip, err := e.reconcile(ctx, wave)
	if err != nil {
		return err
	}
	if err := e.consume(ctx, wave, skip); err != nil {
		return err
	}
	if err := e.spawn(ctx, wave, skip); err != nil {
		return err
	}
	if err := e.await(ctx, wave); err != nil {
		return err
	}
	if err := e.verify(ctx, wave); err != nil {
		return err
	}
	commitMsg := checkpoint.NewCommitMessage("wave", fmt.Sprintf("wave %d complete", wave.WaveID))
	if _, err := e.deps.Checkpointer.WaveCheckpoint(ctx, e.deps.LockTimeout, checkpoint.Request{
		Paths:   []string{tasksFile, "task_timers.json", executorStateFile},
		Message: commitMsg,
	}); err != nil {
		return err
	}

	if e.deps.Logger != nil {
		completed, failed, err := e.waveTaskCounts(ctx, wave)
		if err != nil {
			return err
		}
		e.deps.Logger.LogWaveSummary(wave.WaveID, len(wave.Tasks), completed, failed, e.now().Sub(start))
		e.deps.Logger.LogWaveComplete(wave.WaveID)
	}
	return nil
}

// waveTaskCounts tallies the wave's tasks by their terminal watchdog
// status, for LogWaveSummary.
func (e *Executor) waveTaskCounts(ctx context.Context, wave models.Wave) (completed, failed int, err error) {
	snapshot, err := e.deps.Watchdog.Snapshot(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, ref := range wave.Tasks {
		entry, ok := snapshot.Tasks[ref.TaskID]
		if !ok {
			continue
		}
		switch entry.Status {
		case models.WatchdogCompleted:
			completed++
		case models.WatchdogFailed:
			failed++
		}
	}
	return completed, failed, nil
}

// preflight acquires the checkpoint coordinator lock in shared mode and
// verifies every dependency of every task in the wave is COMPLETE (spec
// §4.5 step 1).
func (e *Executor) preflight(ctx context.Context, wave models.Wave) error {
	release, err := e.deps.Checkpointer.PreflightLock(ctx, e.deps.LockTimeout)
	if err != nil {
		return err
	}
	defer release()

	tasks, err := e.readTasks()
	if err != nil {
		return err
	}
	byID := make(map[string]*models.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	for _, ref := range wave.Tasks {
		for _, dep := range ref.Dependencies {
			depTask, ok := byID[dep]
			if !ok || depTask.Status != models.StatusComplete {
				return execerrors.UnmetDependency(ref.TaskID, dep)
			}
		}
	}
	return nil
}

// reconcile implements spec §4.5's cancellation/resume paragraph against
// every task in the wave that is not still PENDING when the wave starts —
// the signature of a prior run having crashed mid-wave. A task already
// COMPLETE (its worker flipped the marker before the crash) is neither
// consumed nor spawned again; await still waits for its watchdog entry to
// reach a terminal status, and verify checks its marker. A task still CONSUMED is decided against the watchdog registry:
// tracked (running or terminal) means it was already spawned, so only
// await/verify need to see it; untracked means the spawn never happened,
// so its marker is rolled back CONSUMED -> PENDING so the normal
// consume/spawn path picks it up again. Returns the set of task IDs that
// must be skipped by both consume and spawn.
func (e *Executor) reconcile(ctx context.Context, wave models.Wave) (map[string]bool, error) {
	skip := make(map[string]bool)

	tasks, err := e.readTasks()
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*models.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	snapshot, err := e.deps.Watchdog.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	var rollback []string
	for _, ref := range wave.Tasks {
		t, ok := byID[ref.TaskID]
		if !ok {
			continue
		}
		switch t.Status {
		case models.StatusComplete:
			skip[ref.TaskID] = true
		case models.StatusConsumed:
			if _, tracked := snapshot.Tasks[ref.TaskID]; tracked {
				skip[ref.TaskID] = true
				continue
			}
			rollback = append(rollback, ref.TaskID)
		}
	}

	if len(rollback) == 0 {
		return skip, nil
	}

	err = withRetry(ctx, e.deps.Logger, "reconcile-rollback", func() error {
		return e.deps.Store.WithLock(ctx, tasksFile, func() error {
			src, tasks, err := e.readTasksRaw()
			if err != nil {
				return err
			}
			byID := make(map[string]*models.Task, len(tasks))
			for _, t := range tasks {
				byID[t.ID] = t
			}
			for _, taskID := range rollback {
				t, ok := byID[taskID]
				if !ok || t.Status != models.StatusConsumed {
					continue
				}
				src, err = taskparser.SetMarker(src, t.SourceLine, models.StatusPending.Marker())
				if err != nil {
					return execerrors.IOError(tasksFile, "failed to roll back orphaned consumed marker", err)
				}
			}
			return storelock.AtomicWrite(e.path(tasksFile), src)
		})
	})
	if err != nil {
		return nil, err
	}
	return skip, nil
}

// consume flips every task in the wave from PENDING to CONSUMED under
// the tasks.md lock, in one atomic write (spec §4.5 step 2). Tasks
// reconcile already resolved (already COMPLETE, or CONSUMED-and-tracked)
// are skipped rather than re-transitioned.
func (e *Executor) consume(ctx context.Context, wave models.Wave, skip map[string]bool) error {
	return withRetry(ctx, e.deps.Logger, "consume", func() error {
		return e.deps.Store.WithLock(ctx, tasksFile, func() error {
			src, tasks, err := e.readTasksRaw()
			if err != nil {
				return err
			}
			byID := make(map[string]*models.Task, len(tasks))
			for _, t := range tasks {
				byID[t.ID] = t
			}
			for _, ref := range wave.Tasks {
				if skip[ref.TaskID] {
					continue
				}
				t, ok := byID[ref.TaskID]
				if !ok {
					return execerrors.NotFound(fmt.Sprintf("tasks.md entry %s", ref.TaskID))
				}
				if !t.Status.CanTransitionTo(models.StatusConsumed) {
					return execerrors.VerificationFailed(ref.TaskID)
				}
				src, err = taskparser.ApplyStatus(src, t.SourceLine, models.StatusConsumed)
				if err != nil {
					return execerrors.IOError(tasksFile, "failed to flip marker to consumed", err)
				}
			}
			return storelock.AtomicWrite(e.path(tasksFile), src)
		})
	})
}

// spawn registers each task with the watchdog, then hands it to the
// worker layer. PARALLEL_SWARM spawns concurrently; SEQUENTIAL_MERGE
// spawns strictly in source order (spec §4.5 step 3).
func (e *Executor) spawn(ctx context.Context, wave models.Wave, skip map[string]bool) error {
	if wave.Strategy == models.SequentialMerge {
		for _, ref := range wave.Tasks {
			if skip[ref.TaskID] {
				continue
			}
			if err := e.spawnOne(ctx, ref); err != nil {
				return err
			}
		}
		return nil
	}

	var wg sync.WaitGroup
	errs := make([]error, len(wave.Tasks))
	for i, ref := range wave.Tasks {
		if skip[ref.TaskID] {
			continue
		}
		wg.Add(1)
		go func(i int, ref models.TaskRef) {
			defer wg.Done()
			errs[i] = e.spawnOne(ctx, ref)
		}(i, ref)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) spawnOne(ctx context.Context, ref models.TaskRef) error {
	if err := e.deps.Watchdog.Register(ctx, ref.TaskID, ref.Instruction, models.ModeSubprocess, ref.ConstitutionRules); err != nil {
		return err
	}
	if err := e.deps.Worker.Spawn(ctx, ref); err != nil {
		return err
	}
	if e.deps.Logger != nil {
		e.deps.Logger.LogTaskSpawned(ref.TaskID)
	}
	return nil
}

// await blocks until every task in the wave has reached a terminal
// watchdog status (completed or failed) or TaskDeadline elapses (spec
// §4.5 step 4).
func (e *Executor) await(ctx context.Context, wave models.Wave) error {
	deadline := e.now().Add(e.deps.TaskDeadline)
	pending := make(map[string]bool, len(wave.Tasks))
	for _, ref := range wave.Tasks {
		pending[ref.TaskID] = true
	}

	for len(pending) > 0 {
		if e.now().After(deadline) {
			return execerrors.VerificationFailed(wave.TaskIDs()[0])
		}

		snapshot, err := e.deps.Watchdog.Snapshot(ctx)
		if err != nil {
			return err
		}
		for id := range pending {
			entry, ok := snapshot.Tasks[id]
			if !ok {
				continue
			}
			if entry.Status == models.WatchdogCompleted || entry.Status == models.WatchdogFailed {
				if e.deps.Logger != nil {
					e.deps.Logger.LogTaskTerminal(id, entry.Status)
				}
				delete(pending, id)
			}
		}

		if len(pending) == 0 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.deps.AwaitPollInterval):
		}
	}
	return nil
}

// verify re-reads tasks.md under lock and confirms every task in the
// wave carries the COMPLETE marker (spec §4.5 step 5).
func (e *Executor) verify(ctx context.Context, wave models.Wave) error {
	var failed string
	err := e.deps.Store.WithLock(ctx, tasksFile, func() error {
		tasks, err := e.readTasks()
		if err != nil {
			return err
		}
		byID := make(map[string]*models.Task, len(tasks))
		for _, t := range tasks {
			byID[t.ID] = t
		}
		for _, ref := range wave.Tasks {
			t, ok := byID[ref.TaskID]
			if !ok || t.Status != models.StatusComplete {
				failed = ref.TaskID
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if failed != "" {
		return execerrors.VerificationFailed(failed)
	}
	return nil
}

func (e *Executor) path(name string) string {
	return filepath.Join(e.deps.Store.Dir, name)
}

func (e *Executor) readTasksRaw() ([]byte, []*models.Task, error) {
	full := e.path(tasksFile)
	src, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, execerrors.NotFound(full)
		}
		return nil, nil, execerrors.IOError(full, "failed to read task list", err)
	}
	tasks, err := taskparser.Parse(src)
	if err != nil {
		return nil, nil, err
	}
	return src, tasks, nil
}

func (e *Executor) readTasks() ([]*models.Task, error) {
	_, tasks, err := e.readTasksRaw()
	return tasks, err
}
