// Package waveplanner partitions a dependency graph into an ordered list
// of waves (spec §4.4): stable, level-based topological sort with
// conflict-avoidance, choosing PARALLEL_SWARM vs SEQUENTIAL_MERGE per
// wave. Grounded on the teacher's internal/executor/graph.go
// CalculateWaves (Kahn's algorithm, in-degree bookkeeping, wave
// emission), generalized to spec §4.4's conflict-avoidance partitioning,
// which the teacher's simpler wave-per-level loop does not do.
package waveplanner

import (
	"sort"
	"time"

	"github.com/conductor-core/conductor-core/internal/depgraph"
	"github.com/conductor-core/conductor-core/internal/models"
)

// Clock returns the current time. Wave Planner takes it as a parameter,
// per spec §9's "canonical ISO-8601 timestamp produced by an injected
// clock" requirement, so re-running orchestrate in a test is
// deterministic and diff-stable.
type Clock func() time.Time

// Plan computes the ExecutionPlan's waves from a (cycle-free) dependency
// graph. Callers must call graph.Validate() first; Plan assumes the
// graph is acyclic.
func Plan(phaseID string, clock Clock, g *depgraph.Graph) (*models.ExecutionPlan, error) {
	inDegree := make(map[string]int, len(g.InDegree))
	for k, v := range g.InDegree {
		inDegree[k] = v
	}

	sourceIndex := make(map[string]int, len(g.Tasks))
	for i, t := range g.Tasks {
		sourceIndex[t.ID] = i
	}

	placed := make(map[string]bool, len(g.Tasks))
	var waves []models.Wave
	remaining := len(g.Tasks)

	for remaining > 0 {
		var ready []string
		for _, t := range g.Tasks {
			if placed[t.ID] {
				continue
			}
			if inDegree[t.ID] == 0 {
				ready = append(ready, t.ID)
			}
		}
		if len(ready) == 0 {
			break
		}

		sort.Slice(ready, func(i, j int) bool { return sourceIndex[ready[i]] < sourceIndex[ready[j]] })

		groups := partitionDisjoint(ready, g)
		for _, group := range groups {
			strategy := chooseStrategy(group, waves, g)
			wave := models.Wave{
				WaveID:          len(waves) + 1,
				Strategy:        strategy,
				Tasks:           taskRefs(group, g),
				CheckpointAfter: models.CheckpointAfter{Enabled: true},
			}
			waves = append(waves, wave)
			remaining -= len(group)
		}

		for _, id := range ready {
			placed[id] = true
			for _, dependent := range g.Edges[id] {
				inDegree[dependent]--
			}
			delete(inDegree, id)
		}
	}

	return &models.ExecutionPlan{
		PhaseID:   phaseID,
		CreatedAt: clock().UTC(),
		Waves:     waves,
	}, nil
}

// partitionDisjoint splits ready into file-lock-disjoint subsets by
// greedy source-order first-fit (spec §4.4 step 3); the number of subsets
// is not guaranteed to be the minimum.
func partitionDisjoint(ready []string, g *depgraph.Graph) [][]string {
	var groups [][]string
	for _, id := range ready {
		task := g.ByID[id]
		placed := false
		for gi, group := range groups {
			conflicts := false
			for _, memberID := range group {
				if task.SharesFileLockWith(g.ByID[memberID]) {
					conflicts = true
					break
				}
			}
			if !conflicts {
				groups[gi] = append(groups[gi], id)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, []string{id})
		}
	}
	return groups
}

// chooseStrategy implements spec §4.4's strategy rule. A wave of more
// than one task is always PARALLEL_SWARM (partitionDisjoint already
// guarantees its members share no file lock). A singleton wave is
// SEQUENTIAL_MERGE iff its one task shares a file lock with a task in an
// already-emitted wave — i.e. it was serialized behind a real file-lock
// conflict, per scenario A (TASK-003 depends on TASK-001 both explicitly
// and via the auth.py lock, and lands alone in wave 2 as SEQUENTIAL_MERGE).
// A singleton wave with no such conflict (merely alone because of graph
// shape) stays PARALLEL_SWARM.
func chooseStrategy(group []string, emitted []models.Wave, g *depgraph.Graph) models.Strategy {
	if len(group) != 1 {
		return models.ParallelSwarm
	}
	task := g.ByID[group[0]]
	for _, w := range emitted {
		for _, ref := range w.Tasks {
			if task.SharesFileLockWith(g.ByID[ref.TaskID]) {
				return models.SequentialMerge
			}
		}
	}
	return models.ParallelSwarm
}

func taskRefs(ids []string, g *depgraph.Graph) []models.TaskRef {
	refs := make([]models.TaskRef, 0, len(ids))
	for _, id := range ids {
		t := g.ByID[id]
		refs = append(refs, models.TaskRef{
			TaskID:              t.ID,
			AgentRole:           t.AgentRole,
			Instruction:         t.Description,
			FileLocks:           t.FileLocks,
			ConstitutionRules:   t.ConstitutionRules,
			CompletionHandshake: t.CompletionHandshake,
			Dependencies:        t.Dependencies,
		})
	}
	return refs
}
