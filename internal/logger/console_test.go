package logger

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/conductor-core/conductor-core/internal/models"
)

func TestConsoleLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	cl := NewConsoleLogger(&buf, "warn")

	cl.LogInfo("should be suppressed")
	cl.LogWarn("should appear")

	out := buf.String()
	assert.NotContains(t, out, "should be suppressed")
	assert.Contains(t, out, "should appear")
}

func TestConsoleLoggerPlainTextFormat(t *testing.T) {
	var buf bytes.Buffer
	cl := NewConsoleLogger(&buf, "info")
	cl.LogInfo("hello")

	out := buf.String()
	assert.True(t, strings.Contains(out, "[INFO]"))
	assert.True(t, strings.Contains(out, "hello"))
}

func TestConsoleLoggerNilWriterIsNoop(t *testing.T) {
	cl := NewConsoleLogger(nil, "trace")
	assert.NotPanics(t, func() {
		cl.LogError("should not panic")
	})
}

func TestConsoleLoggerWaveAndTaskEvents(t *testing.T) {
	var buf bytes.Buffer
	cl := NewConsoleLogger(&buf, "trace")

	cl.LogWaveStart(1, models.ParallelSwarm, []string{"TASK-001", "TASK-002"})
	cl.LogTaskSpawned("TASK-001")
	cl.LogTaskTerminal("TASK-001", models.WatchdogCompleted)
	cl.LogTaskTerminal("TASK-002", models.WatchdogCompleted)
	cl.LogWaveSummary(1, 2, 2, 0, 250*time.Millisecond)
	cl.LogWaveComplete(1)

	out := buf.String()
	assert.Contains(t, out, "wave 1 start (PARALLEL_SWARM)")
	assert.Contains(t, out, "TASK-001, TASK-002")
	assert.Contains(t, out, "task TASK-001 spawned")
	assert.Contains(t, out, "TASK-001 -> completed")
	assert.Contains(t, out, "wave 1 ") // progress bar prefix rendered at least once
	assert.Contains(t, out, "2/2 (100%)")
	assert.Contains(t, out, "tasks=2 completed=2 failed=0")
	assert.Contains(t, out, "wave 1 complete")
}

func TestConsoleLoggerRetryHooks(t *testing.T) {
	var buf bytes.Buffer
	cl := NewConsoleLogger(&buf, "trace")

	cl.LogRetryAttempt("consume", 2, assertErr{"lock busy"})
	cl.LogRetryGiveUp("consume", assertErr{"lock busy"})

	out := buf.String()
	assert.Contains(t, out, "retry attempt 2")
	assert.Contains(t, out, "giving up")
}

type assertErr struct{ msg string }

func (e assertErr) Error() string { return e.msg }

func TestNoOpLoggerNeverPanics(t *testing.T) {
	n := NewNoOpLogger()
	assert.NotPanics(t, func() {
		n.LogWaveStart(1, models.SequentialMerge, []string{"TASK-001"})
		n.LogTaskSpawned("TASK-001")
		n.LogTaskTerminal("TASK-001", models.WatchdogFailed)
		n.LogWaveSummary(1, 1, 0, 1, time.Second)
		n.LogWaveComplete(1)
		n.LogRetryAttempt("op", 1, assertErr{"x"})
		n.LogRetryGiveUp("op", assertErr{"x"})
	})
}
