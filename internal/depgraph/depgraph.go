// Package depgraph builds the task dependency DAG (spec §4.3) by
// combining explicit "after TASK-X" / "depends on TASK-X" references
// extracted by the Task Parser with implicit file-lock-conflict edges,
// and detects cycles. Grounded on the teacher's
// internal/executor/graph.go (DependencyGraph, HasCycle's white/gray/
// black DFS, BuildDependencyGraph's edge/in-degree bookkeeping),
// generalized from the teacher's numeric task ordering to source-order
// task IDs and from teacher's explicit-only edges to explicit + implicit.
package depgraph

import (
	"github.com/conductor-core/conductor-core/internal/execerrors"
	"github.com/conductor-core/conductor-core/internal/models"
)

// Graph is the combined explicit + implicit dependency DAG.
type Graph struct {
	Tasks    []*models.Task
	ByID     map[string]*models.Task
	Edges    map[string][]string // prerequisite id -> dependent ids
	InDegree map[string]int
}

// Build constructs the dependency graph from tasks in source order.
// Returns an execerrors UnknownDependency error if a task references a
// dependency ID absent from tasks. Self-dependencies are silently
// dropped per spec §4.3.
func Build(tasks []*models.Task) (*Graph, error) {
	g := &Graph{
		Tasks:    tasks,
		ByID:     make(map[string]*models.Task, len(tasks)),
		Edges:    make(map[string][]string),
		InDegree: make(map[string]int, len(tasks)),
	}
	for _, t := range tasks {
		g.ByID[t.ID] = t
		g.InDegree[t.ID] = 0
	}

	edgeSet := make(map[string]map[string]bool)
	addEdge := func(prereq, dependent string) {
		if prereq == dependent {
			return
		}
		if edgeSet[prereq] == nil {
			edgeSet[prereq] = make(map[string]bool)
		}
		if edgeSet[prereq][dependent] {
			return
		}
		edgeSet[prereq][dependent] = true
		g.Edges[prereq] = append(g.Edges[prereq], dependent)
		g.InDegree[dependent]++
	}

	for _, t := range tasks {
		for _, dep := range t.Dependencies {
			if _, ok := g.ByID[dep]; !ok {
				return nil, execerrors.UnknownDependency(t.ID, dep)
			}
			addEdge(dep, t.ID)
		}
	}

	for i := 0; i < len(tasks); i++ {
		for j := i + 1; j < len(tasks); j++ {
			if tasks[i].SharesFileLockWith(tasks[j]) {
				addEdge(tasks[i].ID, tasks[j].ID)
			}
		}
	}

	return g, nil
}

// HasCycle runs a DFS with white/gray/black color marking, grounded on
// the teacher's DependencyGraph.HasCycle, and returns the participants of
// the first cycle found, in traversal order, when one exists.
func (g *Graph) HasCycle() (bool, []string) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	colors := make(map[string]int, len(g.Tasks))
	for _, t := range g.Tasks {
		colors[t.ID] = white
	}

	var stack []string
	var cycle []string

	var dfs func(node string) bool
	dfs = func(node string) bool {
		colors[node] = gray
		stack = append(stack, node)

		for _, next := range g.Edges[node] {
			if colors[next] == gray {
				if idx := indexOf(stack, next); idx >= 0 {
					cycle = append([]string{}, stack[idx:]...)
				}
				return true
			}
			if colors[next] == white && dfs(next) {
				return true
			}
		}

		stack = stack[:len(stack)-1]
		colors[node] = black
		return false
	}

	for _, t := range g.Tasks {
		if colors[t.ID] == white {
			if dfs(t.ID) {
				return true, cycle
			}
		}
	}
	return false, nil
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}

// Validate returns execerrors.DependencyCycle if the graph contains a
// cycle; nil otherwise.
func (g *Graph) Validate() error {
	if has, participants := g.HasCycle(); has {
		return execerrors.DependencyCycle(participants)
	}
	return nil
}

// Dependents returns the task IDs that depend (directly) on taskID.
func (g *Graph) Dependents(taskID string) []string {
	return g.Edges[taskID]
}
