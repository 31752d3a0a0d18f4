package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Strategy selects how a wave's tasks are spawned.
type Strategy string

const (
	// ParallelSwarm spawns every task in the wave concurrently.
	ParallelSwarm Strategy = "PARALLEL_SWARM"
	// SequentialMerge spawns the wave's tasks strictly in order.
	SequentialMerge Strategy = "SEQUENTIAL_MERGE"
)

// TaskRef is a task as it appears inside a wave of an ExecutionPlan: enough
// to drive execution and to round-trip through execution_plan.json without
// needing the full Task record (which lives in tasks.md, the source of
// truth for status).
type TaskRef struct {
	TaskID              string   `json:"task_id"`
	AgentRole           string   `json:"agent_role,omitempty"`
	Instruction         string   `json:"instruction"`
	FileLocks           []string `json:"file_locks,omitempty"`
	ConstitutionRules   []string `json:"constitution_rules,omitempty"`
	CompletionHandshake string   `json:"completion_handshake,omitempty"`
	Dependencies        []string `json:"dependencies,omitempty"`
}

// CheckpointAfter controls whether a wave commits a checkpoint on
// completion. Per spec §3 it is always enabled, but is modeled as a struct
// (rather than a bare bool) to match the execution_plan.json wire schema in
// spec §6 and to leave room for future per-wave overrides without breaking
// the schema.
type CheckpointAfter struct {
	Enabled bool `json:"enabled"`
}

// Wave is a batch of tasks that may run in parallel or strictly in sequence.
type Wave struct {
	WaveID          int             `json:"wave_id"`
	Strategy        Strategy        `json:"strategy"`
	Rationale       string          `json:"rationale,omitempty"`
	Tasks           []TaskRef       `json:"tasks"`
	CheckpointAfter CheckpointAfter `json:"checkpoint_after"`
}

// TaskIDs returns the task IDs in this wave in wave order.
func (w *Wave) TaskIDs() []string {
	ids := make([]string, len(w.Tasks))
	for i, t := range w.Tasks {
		ids[i] = t.TaskID
	}
	return ids
}

// ExecutionPlan is the canonical, derived, rebuildable execution plan
// emitted by the Wave Planner and consumed by the Wave Executor.
type ExecutionPlan struct {
	PhaseID   string    `json:"phase_id"`
	CreatedAt time.Time `json:"created_at"`
	Waves     []Wave    `json:"waves"`
}

// planAlias has ExecutionPlan's exact field layout but none of its
// methods, breaking the recursion that a custom (Un)MarshalJSON on
// ExecutionPlan itself would otherwise cause.
type planAlias struct {
	PhaseID   string    `json:"phase_id"`
	CreatedAt time.Time `json:"created_at"`
	Waves     []Wave    `json:"waves"`
}

// planDocument mirrors the top-level "execution_plan" wrapper object
// required by the execution_plan.json wire schema in spec §6.
type planDocument struct {
	ExecutionPlan planAlias `json:"execution_plan"`
}

// MarshalJSON wraps the plan in the {"execution_plan": {...}} envelope
// spec §6 requires on disk.
func (p ExecutionPlan) MarshalJSON() ([]byte, error) {
	return json.Marshal(planDocument{ExecutionPlan: planAlias(p)})
}

// UnmarshalJSON unwraps the {"execution_plan": {...}} envelope.
func (p *ExecutionPlan) UnmarshalJSON(data []byte) error {
	var doc planDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	*p = ExecutionPlan(doc.ExecutionPlan)
	return nil
}

// Validate checks the structural invariants execution_plan.json must hold
// before the Durable Store will accept a write or trust a read (spec
// §4.1/§8): a phase ID, densely-numbered 1-based waves, and every wave
// having at least one task.
func (p *ExecutionPlan) Validate() error {
	if p.PhaseID == "" {
		return fmt.Errorf("execution plan missing phase_id")
	}
	for i, w := range p.Waves {
		expected := i + 1
		if w.WaveID != expected {
			return fmt.Errorf("wave ids must be dense and 1-based: wave at index %d has id %d, want %d", i, w.WaveID, expected)
		}
		if len(w.Tasks) == 0 {
			return fmt.Errorf("wave %d has no tasks", w.WaveID)
		}
	}
	return nil
}

// TaskWave returns the 1-based wave ID containing taskID, or 0 if absent.
func (p *ExecutionPlan) TaskWave(taskID string) int {
	for _, w := range p.Waves {
		for _, t := range w.Tasks {
			if t.TaskID == taskID {
				return w.WaveID
			}
		}
	}
	return 0
}

// Wave looks up a wave by its ID.
func (p *ExecutionPlan) Wave(waveID int) (*Wave, bool) {
	for i := range p.Waves {
		if p.Waves[i].WaveID == waveID {
			return &p.Waves[i], true
		}
	}
	return nil, false
}
