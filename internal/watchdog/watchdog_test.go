package watchdog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conductor-core/conductor-core/internal/models"
	"github.com/conductor-core/conductor-core/internal/storelock"
)

type recordingHistory struct {
	entries []models.WatchdogEntry
}

func (r *recordingHistory) RecordEntry(ctx context.Context, phaseID, taskID string, entry models.WatchdogEntry) error {
	r.entries = append(r.entries, entry)
	return nil
}

func newTestWatchdog(t *testing.T) (*Watchdog, *recordingHistory) {
	t.Helper()
	store := storelock.New(t.TempDir(), 2*time.Second)
	history := &recordingHistory{}
	return New(store, history, "phase-1"), history
}

func TestRegisterThenHeartbeatThenComplete(t *testing.T) {
	wd, history := newTestWatchdog(t)
	ctx := context.Background()

	require.NoError(t, wd.Register(ctx, "TASK-001", "run.sh", models.ModeSubprocess, []string{"no-destructive-ops"}))

	running, err := wd.ListRunning(ctx)
	require.NoError(t, err)
	require.Len(t, running, 1)
	assert.Equal(t, "TASK-001", running[0].TaskID)

	require.NoError(t, wd.Heartbeat(ctx, "TASK-001"))

	require.NoError(t, wd.Complete(ctx, "TASK-001", 0, ""))

	snapshot, err := wd.Snapshot(ctx)
	require.NoError(t, err)
	entry := snapshot.Tasks["TASK-001"]
	assert.Equal(t, models.WatchdogCompleted, entry.Status)
	require.NotNil(t, entry.ExitStatus)
	assert.Equal(t, 0, *entry.ExitStatus)

	assert.Len(t, history.entries, 2)
}

func TestCompleteWithNonzeroExitMarksFailed(t *testing.T) {
	wd, _ := newTestWatchdog(t)
	ctx := context.Background()

	require.NoError(t, wd.Register(ctx, "TASK-002", "run.sh", models.ModeSubprocess, nil))
	require.NoError(t, wd.Complete(ctx, "TASK-002", 1, ""))

	snapshot, err := wd.Snapshot(ctx)
	require.NoError(t, err)
	entry := snapshot.Tasks["TASK-002"]
	assert.Equal(t, models.WatchdogFailed, entry.Status)
	assert.Contains(t, entry.FailureReason, "1")
}

func TestHeartbeatOnUnknownTaskIsNotFound(t *testing.T) {
	wd, _ := newTestWatchdog(t)
	err := wd.Heartbeat(context.Background(), "TASK-999")
	require.Error(t, err)
}

func TestReclaimStaleMarksOldRunningEntriesFailed(t *testing.T) {
	wd, _ := newTestWatchdog(t)
	ctx := context.Background()
	stale := time.Now().Add(-2 * time.Hour)
	wd.clock = func() time.Time { return stale }
	require.NoError(t, wd.Register(ctx, "TASK-003", "run.sh", models.ModeSubprocess, nil))

	wd.clock = time.Now
	reclaimed, err := wd.ReclaimStale(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"TASK-003"}, reclaimed)

	snapshot, err := wd.Snapshot(ctx)
	require.NoError(t, err)
	entry := snapshot.Tasks["TASK-003"]
	assert.Equal(t, models.WatchdogFailed, entry.Status)
	assert.Equal(t, "stale_on_recovery", entry.FailureReason)
}

func TestReclaimStaleLeavesFreshEntriesRunning(t *testing.T) {
	wd, _ := newTestWatchdog(t)
	ctx := context.Background()
	require.NoError(t, wd.Register(ctx, "TASK-004", "run.sh", models.ModeSubprocess, nil))

	reclaimed, err := wd.ReclaimStale(ctx, time.Hour)
	require.NoError(t, err)
	assert.Empty(t, reclaimed)
}

func TestSingletonLockRejectsSecondAcquire(t *testing.T) {
	dir := t.TempDir()
	first, err := AcquireSingleton(dir)
	require.NoError(t, err)
	defer first.Release()

	_, err = AcquireSingleton(dir)
	require.Error(t, err)
}

func TestSingletonLockReleaseAllowsReacquire(t *testing.T) {
	dir := t.TempDir()
	first, err := AcquireSingleton(dir)
	require.NoError(t, err)
	require.NoError(t, first.Release())

	second, err := AcquireSingleton(dir)
	require.NoError(t, err)
	require.NoError(t, second.Release())
}
