package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conductor-core/conductor-core/internal/watchdog"
)

func writeExecutionPlan(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, executionPlanFile), []byte(content), 0644))
}

func TestExecuteWaveFailsOnUnknownWaveID(t *testing.T) {
	dir := t.TempDir()
	writeExecutionPlan(t, dir, `{"execution_plan":{"phase_id":"phase-1","created_at":"2026-01-01T00:00:00Z","waves":[
		{"wave_id":1,"strategy":"PARALLEL_SWARM","tasks":[{"task_id":"TASK-001","instruction":"echo hi"}],"checkpoint_after":{"enabled":true}}
	]}}`)

	root := NewRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"execute-wave", "9", "--state-dir", dir})

	assert.Error(t, root.Execute())
}

func TestExecuteWaveRefusesConcurrentInvocation(t *testing.T) {
	dir := t.TempDir()
	writeExecutionPlan(t, dir, `{"execution_plan":{"phase_id":"phase-1","created_at":"2026-01-01T00:00:00Z","waves":[
		{"wave_id":1,"strategy":"PARALLEL_SWARM","tasks":[{"task_id":"TASK-001","instruction":"echo hi"}],"checkpoint_after":{"enabled":true}}
	]}}`)

	singleton, err := watchdog.AcquireSingleton(dir)
	require.NoError(t, err)
	defer singleton.Release()

	root := NewRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"execute-wave", "1", "--state-dir", dir})

	assert.Error(t, root.Execute())
}

func TestExecuteWaveRefusesRerunWithoutResume(t *testing.T) {
	dir := t.TempDir()
	writeExecutionPlan(t, dir, `{"execution_plan":{"phase_id":"phase-1","created_at":"2026-01-01T00:00:00Z","waves":[
		{"wave_id":1,"strategy":"PARALLEL_SWARM","tasks":[{"task_id":"TASK-001","instruction":"echo hi"}],"checkpoint_after":{"enabled":true}}
	]}}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wave_executor_state.json"),
		[]byte(`{"current_wave":2,"completed_waves":[1],"phase_id":"phase-1","timestamp":"2026-01-01T00:00:00Z"}`), 0644))

	root := NewRootCommand()
	var errOut bytes.Buffer
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&errOut)
	root.SetArgs([]string{"execute-wave", "1", "--state-dir", dir})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--resume")
}
