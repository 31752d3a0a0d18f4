package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWaveTaskIDs(t *testing.T) {
	w := Wave{
		WaveID: 1,
		Tasks: []TaskRef{
			{TaskID: "TASK-001"},
			{TaskID: "TASK-002"},
		},
	}
	assert.Equal(t, []string{"TASK-001", "TASK-002"}, w.TaskIDs())
}

func TestExecutionPlanTaskWave(t *testing.T) {
	plan := ExecutionPlan{
		PhaseID:   "phase-1",
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Waves: []Wave{
			{WaveID: 1, Tasks: []TaskRef{{TaskID: "TASK-001"}, {TaskID: "TASK-002"}}},
			{WaveID: 2, Tasks: []TaskRef{{TaskID: "TASK-003"}}},
		},
	}

	assert.Equal(t, 1, plan.TaskWave("TASK-001"))
	assert.Equal(t, 2, plan.TaskWave("TASK-003"))
	assert.Equal(t, 0, plan.TaskWave("TASK-999"))

	wave, ok := plan.Wave(2)
	assert.True(t, ok)
	assert.Equal(t, "TASK-003", wave.Tasks[0].TaskID)

	_, ok = plan.Wave(99)
	assert.False(t, ok)
}
