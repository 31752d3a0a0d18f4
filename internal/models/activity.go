package models

import "time"

// ActivityEvent is one append-only record in activity_stream.md.
type ActivityEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	EventKind string         `json:"event_kind"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// SessionSnapshot is a point-in-time resume capture: phase, wave, completed
// tasks, and operator-facing next steps/blockers.
type SessionSnapshot struct {
	Timestamp      time.Time `json:"timestamp"`
	PhaseID        string    `json:"phase_id"`
	WaveID         int       `json:"wave_id"`
	CompletedTasks []string  `json:"completed_task_ids"`
	NextSteps      []string  `json:"next_steps,omitempty"`
	Blockers       []string  `json:"blockers,omitempty"`
}
