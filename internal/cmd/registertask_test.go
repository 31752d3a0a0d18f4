package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conductor-core/conductor-core/internal/watchdogstore"
)

func TestRegisterTaskWritesTaskTimers(t *testing.T) {
	dir := t.TempDir()

	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"register-task", "TASK-001", "echo hi", "--state-dir", dir, "--rules", "no-network, read-only"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "registered TASK-001")

	timers, err := os.ReadFile(filepath.Join(dir, "task_timers.json"))
	require.NoError(t, err)
	assert.Contains(t, string(timers), "TASK-001")
	assert.Contains(t, string(timers), "no-network")

	store, err := watchdogstore.NewStore(filepath.Join(dir, watchdogHistoryFile))
	require.NoError(t, err)
	defer store.Close()
	history, err := store.HistoryForTask(context.Background(), "TASK-001")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "echo hi", history[0].Command)
}
