package waveexec

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conductor-core/conductor-core/internal/checkpoint"
	"github.com/conductor-core/conductor-core/internal/models"
	"github.com/conductor-core/conductor-core/internal/storelock"
	"github.com/conductor-core/conductor-core/internal/taskparser"
)

type fakeWatchdog struct {
	mu      sync.Mutex
	entries map[string]models.WatchdogEntry
}

func newFakeWatchdog() *fakeWatchdog {
	return &fakeWatchdog{entries: map[string]models.WatchdogEntry{}}
}

func (f *fakeWatchdog) Register(ctx context.Context, taskID, command string, mode models.WatchdogMode, rules []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[taskID] = models.WatchdogEntry{TaskID: taskID, Command: command, Mode: mode, Status: models.WatchdogRunning}
	return nil
}

func (f *fakeWatchdog) ListRunning(ctx context.Context) ([]models.WatchdogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.WatchdogEntry
	for _, e := range f.entries {
		if e.Status == models.WatchdogRunning {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeWatchdog) Snapshot(ctx context.Context) (*models.TaskTimers, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tasks := make(map[string]models.WatchdogEntry, len(f.entries))
	for k, v := range f.entries {
		tasks[k] = v
	}
	return &models.TaskTimers{Tasks: tasks}, nil
}

func (f *fakeWatchdog) complete(taskID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.entries[taskID]
	e.Status = models.WatchdogCompleted
	f.entries[taskID] = e
}

type fakeCheckpointer struct {
	commits int
}

func (f *fakeCheckpointer) PreflightLock(ctx context.Context, timeout time.Duration) (func() error, error) {
	return func() error { return nil }, nil
}

func (f *fakeCheckpointer) WaveCheckpoint(ctx context.Context, timeout time.Duration, req checkpoint.Request) (string, error) {
	f.commits++
	return "commit-fake", nil
}

// completingWorker marks the task COMPLETE in tasks.md (simulating the
// worker's completion handshake) and the fake watchdog entry completed,
// standing in for the out-of-scope worker layer + its own watchdog
// callback.
type completingWorker struct {
	dir string
	wd  *fakeWatchdog
}

func (w *completingWorker) Spawn(ctx context.Context, ref models.TaskRef) error {
	path := filepath.Join(w.dir, "tasks.md")
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	tasks, err := taskparser.Parse(src)
	if err != nil {
		return err
	}
	for _, t := range tasks {
		if t.ID == ref.TaskID {
			out, err := taskparser.ApplyStatus(src, t.SourceLine, models.StatusComplete)
			if err != nil {
				return err
			}
			if err := storelock.AtomicWrite(path, out); err != nil {
				return err
			}
			break
		}
	}
	w.wd.complete(ref.TaskID)
	return nil
}

type fakeLogger struct {
	mu       sync.Mutex
	summary  []int
	complete []int
}

func (f *fakeLogger) LogWaveStart(waveID int, strategy models.Strategy, taskIDs []string) {}

func (f *fakeLogger) LogWaveComplete(waveID int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.complete = append(f.complete, waveID)
}

func (f *fakeLogger) LogWaveSummary(waveID, taskCount, completed, failed int, duration time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summary = []int{waveID, taskCount, completed, failed}
}

func (f *fakeLogger) LogTaskSpawned(taskID string) {}

func (f *fakeLogger) LogTaskTerminal(taskID string, status models.WatchdogStatus) {}

func (f *fakeLogger) LogRetryAttempt(operation string, attempt int, err error) {}

func (f *fakeLogger) LogRetryGiveUp(operation string, err error) {}

func writeTasksFile(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tasks.md"), []byte(content), 0644))
}

func newTestExecutor(t *testing.T, dir string) (*Executor, *fakeWatchdog, *fakeCheckpointer) {
	t.Helper()
	store := storelock.New(dir, 2*time.Second)
	wd := newFakeWatchdog()
	cp := &fakeCheckpointer{}
	worker := &completingWorker{dir: dir, wd: wd}
	ex := New(Deps{
		Store:             store,
		Watchdog:          wd,
		Checkpointer:      cp,
		Worker:            worker,
		AwaitPollInterval: 5 * time.Millisecond,
		TaskDeadline:      time.Second,
	})
	return ex, wd, cp
}

func TestRunSingleWaveParallelSwarm(t *testing.T) {
	dir := t.TempDir()
	writeTasksFile(t, dir,
		"- [ ] TASK-001: do a thing in `a.py`\n"+
			"- [ ] TASK-002: do another thing in `b.py`\n",
	)

	ex, _, cp := newTestExecutor(t, dir)
	plan := &models.ExecutionPlan{
		PhaseID: "phase-1",
		Waves: []models.Wave{
			{
				WaveID:   1,
				Strategy: models.ParallelSwarm,
				Tasks: []models.TaskRef{
					{TaskID: "TASK-001", Instruction: "echo one"},
					{TaskID: "TASK-002", Instruction: "echo two"},
				},
				CheckpointAfter: models.CheckpointAfter{Enabled: true},
			},
		},
	}

	require.NoError(t, ex.Run(context.Background(), plan))
	assert.Equal(t, 1, cp.commits)

	state, err := os.ReadFile(filepath.Join(dir, "wave_executor_state.json"))
	require.NoError(t, err)
	assert.Contains(t, string(state), "\"current_wave\"")
}

func TestRunLogsWaveSummaryAfterCheckpoint(t *testing.T) {
	dir := t.TempDir()
	writeTasksFile(t, dir,
		"- [ ] TASK-001: do a thing in `a.py`\n"+
			"- [ ] TASK-002: do another thing in `b.py`\n",
	)

	store := storelock.New(dir, 2*time.Second)
	wd := newFakeWatchdog()
	cp := &fakeCheckpointer{}
	worker := &completingWorker{dir: dir, wd: wd}
	fl := &fakeLogger{}
	ex := New(Deps{
		Store:             store,
		Watchdog:          wd,
		Checkpointer:      cp,
		Worker:            worker,
		Logger:            fl,
		AwaitPollInterval: 5 * time.Millisecond,
		TaskDeadline:      time.Second,
	})

	plan := &models.ExecutionPlan{
		PhaseID: "phase-1",
		Waves: []models.Wave{
			{
				WaveID:   1,
				Strategy: models.ParallelSwarm,
				Tasks: []models.TaskRef{
					{TaskID: "TASK-001", Instruction: "echo one"},
					{TaskID: "TASK-002", Instruction: "echo two"},
				},
				CheckpointAfter: models.CheckpointAfter{Enabled: true},
			},
		},
	}

	require.NoError(t, ex.Run(context.Background(), plan))
	assert.Equal(t, []int{1, 2, 2, 0}, fl.summary)
	assert.Equal(t, []int{1}, fl.complete)
}

func TestRunSequentialMergeWave(t *testing.T) {
	dir := t.TempDir()
	writeTasksFile(t, dir, "- [ ] TASK-003: refactor `auth.py`\n")

	ex, _, cp := newTestExecutor(t, dir)
	plan := &models.ExecutionPlan{
		PhaseID: "phase-1",
		Waves: []models.Wave{
			{
				WaveID:          1,
				Strategy:        models.SequentialMerge,
				Tasks:           []models.TaskRef{{TaskID: "TASK-003", Instruction: "echo three"}},
				CheckpointAfter: models.CheckpointAfter{Enabled: true},
			},
		},
	}

	require.NoError(t, ex.Run(context.Background(), plan))
	assert.Equal(t, 1, cp.commits)
}

func TestReconcileRollsBackOrphanedConsumedMarker(t *testing.T) {
	dir := t.TempDir()
	writeTasksFile(t, dir, "- [~] TASK-001: orphaned from a crashed run `a.py`\n")

	ex, _, cp := newTestExecutor(t, dir)
	plan := &models.ExecutionPlan{
		PhaseID: "phase-1",
		Waves: []models.Wave{
			{WaveID: 1, Strategy: models.ParallelSwarm, Tasks: []models.TaskRef{{TaskID: "TASK-001", Instruction: "echo one"}}, CheckpointAfter: models.CheckpointAfter{Enabled: true}},
		},
	}

	require.NoError(t, ex.Run(context.Background(), plan))
	assert.Equal(t, 1, cp.commits)

	content, err := os.ReadFile(filepath.Join(dir, "tasks.md"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "[x] TASK-001")
}

func TestReconcileSkipsAlreadyCompleteTaskOnResume(t *testing.T) {
	dir := t.TempDir()
	writeTasksFile(t, dir, "- [~] TASK-001: worker flipped this before the crash `a.py`\n")

	ex, wd, cp := newTestExecutor(t, dir)
	// Simulate the watchdog already tracking this task from before the crash.
	require.NoError(t, wd.Register(context.Background(), "TASK-001", "echo one", models.ModeSubprocess, nil))
	wd.complete("TASK-001")

	// Flip the marker to COMPLETE directly, as the worker would have done
	// before the crash prevented verify/checkpoint from running.
	src, err := os.ReadFile(filepath.Join(dir, "tasks.md"))
	require.NoError(t, err)
	tasks, err := taskparser.Parse(src)
	require.NoError(t, err)
	out, err := taskparser.ApplyStatus(src, tasks[0].SourceLine, models.StatusComplete)
	require.NoError(t, err)
	require.NoError(t, storelock.AtomicWrite(filepath.Join(dir, "tasks.md"), out))

	plan := &models.ExecutionPlan{
		PhaseID: "phase-1",
		Waves: []models.Wave{
			{WaveID: 1, Strategy: models.ParallelSwarm, Tasks: []models.TaskRef{{TaskID: "TASK-001", Instruction: "echo one"}}, CheckpointAfter: models.CheckpointAfter{Enabled: true}},
		},
	}

	require.NoError(t, ex.Run(context.Background(), plan))
	assert.Equal(t, 1, cp.commits)
}

func TestRunFailsPreflightOnUnmetDependency(t *testing.T) {
	dir := t.TempDir()
	writeTasksFile(t, dir, "- [ ] TASK-002: second `b.py`\n")

	ex, _, _ := newTestExecutor(t, dir)
	plan := &models.ExecutionPlan{
		PhaseID: "phase-1",
		Waves: []models.Wave{
			{
				WaveID:   1,
				Strategy: models.ParallelSwarm,
				Tasks: []models.TaskRef{
					{TaskID: "TASK-002", Instruction: "echo two", Dependencies: []string{"TASK-001"}},
				},
				CheckpointAfter: models.CheckpointAfter{Enabled: true},
			},
		},
	}

	err := ex.Run(context.Background(), plan)
	require.Error(t, err)
}

func TestRunResumesFromPersistedState(t *testing.T) {
	dir := t.TempDir()
	writeTasksFile(t, dir, "- [ ] TASK-001: only task `a.py`\n")

	store := storelock.New(dir, 2*time.Second)
	require.NoError(t, store.WriteJSON("wave_executor_state.json", &models.ExecutorState{
		CurrentWave:    2,
		CompletedWaves: []int{1},
		PhaseID:        "phase-1",
	}))

	ex, _, cp := newTestExecutor(t, dir)
	plan := &models.ExecutionPlan{
		PhaseID: "phase-1",
		Waves: []models.Wave{
			{WaveID: 1, Strategy: models.ParallelSwarm, Tasks: []models.TaskRef{{TaskID: "TASK-999"}}, CheckpointAfter: models.CheckpointAfter{Enabled: true}},
			{WaveID: 2, Strategy: models.ParallelSwarm, Tasks: []models.TaskRef{{TaskID: "TASK-001", Instruction: "echo one"}}, CheckpointAfter: models.CheckpointAfter{Enabled: true}},
		},
	}

	require.NoError(t, ex.Run(context.Background(), plan))
	assert.Equal(t, 1, cp.commits)
}
