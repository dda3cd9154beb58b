package monitor

import "time"

// State is the loop's position in its sweep cycle.
type State string

// Loop states.
const (
	StateStarting   State = "starting"
	StateSweeping   State = "sweeping"
	StatePersisting State = "persisting"
	StateWaiting    State = "waiting"
	StateStopped    State = "stopped"
)

// SessionState tracks the browser session independently of the loop state.
type SessionState string

// Session states.
const (
	SessionAbsent  SessionState = "absent"
	SessionActive  SessionState = "active"
	SessionFaulted SessionState = "faulted"
)

// Sweep results recorded in Status and metrics.
const (
	sweepCompleted = "completed"
	sweepAborted   = "aborted"
)

// Status is a point-in-time view of the loop, safe to serialize.
type Status struct {
	State       State        `json:"state"`
	Session     SessionState `json:"session"`
	Sweeps      int          `json:"sweeps"`
	LastSweepID string       `json:"last_sweep_id,omitempty"`
	LastSweepAt time.Time    `json:"last_sweep_at,omitzero"`
	LastResult  string       `json:"last_result,omitempty"`
	LastError   string       `json:"last_error,omitempty"`
}
