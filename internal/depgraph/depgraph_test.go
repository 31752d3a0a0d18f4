package depgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conductor-core/conductor-core/internal/models"
)

func task(id string, files []string, deps []string) *models.Task {
	return &models.Task{ID: id, Description: id, FileLocks: files, Dependencies: deps}
}

func TestBuildExplicitEdge(t *testing.T) {
	tasks := []*models.Task{
		task("TASK-001", nil, nil),
		task("TASK-002", nil, []string{"TASK-001"}),
	}
	g, err := Build(tasks)
	require.NoError(t, err)
	assert.Equal(t, []string{"TASK-002"}, g.Edges["TASK-001"])
	assert.Equal(t, 1, g.InDegree["TASK-002"])
	assert.Equal(t, 0, g.InDegree["TASK-001"])
}

func TestBuildImplicitFileLockEdge(t *testing.T) {
	tasks := []*models.Task{
		task("TASK-001", []string{"auth.py"}, nil),
		task("TASK-002", []string{"README.md"}, nil),
		task("TASK-003", []string{"auth.py"}, nil),
	}
	g, err := Build(tasks)
	require.NoError(t, err)
	assert.Contains(t, g.Edges["TASK-001"], "TASK-003")
	assert.NotContains(t, g.Edges["TASK-002"], "TASK-003")
}

func TestBuildUnknownDependencyErrors(t *testing.T) {
	tasks := []*models.Task{
		task("TASK-001", nil, []string{"TASK-999"}),
	}
	_, err := Build(tasks)
	require.Error(t, err)
}

func TestBuildSelfDependencyDropped(t *testing.T) {
	tasks := []*models.Task{
		task("TASK-001", nil, []string{"TASK-001"}),
	}
	g, err := Build(tasks)
	require.NoError(t, err)
	assert.Equal(t, 0, g.InDegree["TASK-001"])
	assert.Empty(t, g.Edges["TASK-001"])
}

func TestHasCycleDetectsCycle(t *testing.T) {
	tasks := []*models.Task{
		task("TASK-001", nil, []string{"TASK-002"}),
		task("TASK-002", nil, []string{"TASK-001"}),
	}
	g, err := Build(tasks)
	require.NoError(t, err)
	has, participants := g.HasCycle()
	assert.True(t, has)
	assert.Contains(t, participants, "TASK-001")
	assert.Contains(t, participants, "TASK-002")
}

func TestHasCycleFalseForDAG(t *testing.T) {
	tasks := []*models.Task{
		task("TASK-001", nil, nil),
		task("TASK-002", nil, []string{"TASK-001"}),
		task("TASK-003", nil, []string{"TASK-002"}),
	}
	g, err := Build(tasks)
	require.NoError(t, err)
	has, _ := g.HasCycle()
	assert.False(t, has)
}

func TestValidateReturnsDependencyCycleError(t *testing.T) {
	tasks := []*models.Task{
		task("TASK-001", nil, []string{"TASK-002"}),
		task("TASK-002", nil, []string{"TASK-001"}),
	}
	g, err := Build(tasks)
	require.NoError(t, err)
	err = g.Validate()
	require.Error(t, err)
}

func TestScenarioADependencyGraph(t *testing.T) {
	tasks := []*models.Task{
		task("TASK-001", []string{"auth.py"}, nil),
		task("TASK-002", []string{"README.md"}, nil),
		task("TASK-003", []string{"auth.py"}, []string{"TASK-001"}),
	}
	g, err := Build(tasks)
	require.NoError(t, err)
	assert.Equal(t, 0, g.InDegree["TASK-001"])
	assert.Equal(t, 0, g.InDegree["TASK-002"])
	assert.Equal(t, 1, g.InDegree["TASK-003"])
}
