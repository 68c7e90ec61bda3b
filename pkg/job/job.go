package job

import "time"

// State is the lifecycle state of a job.
type State string

const (
	// StatePending marks a job waiting for its first claim.
	StatePending State = "pending"
	// StateProcessing marks a job currently held by a worker.
	StateProcessing State = "processing"
	// StateCompleted marks a job whose last attempt exited 0.
	StateCompleted State = "completed"
	// StateFailed marks a job waiting for a retry at NextAttemptAt.
	StateFailed State = "failed"
	// StateDead marks a job that exhausted its retry budget (the DLQ).
	StateDead State = "dead"
)

// States lists all valid job states in lifecycle order.
var States = []State{StatePending, StateProcessing, StateCompleted, StateFailed, StateDead}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StatePending, StateProcessing, StateCompleted, StateFailed, StateDead:
		return true
	}
	return false
}

// Terminal reports whether s is a terminal state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateDead
}

// Job is one unit of work: a shell command with scheduling and retry policy.
//
// Timestamps are UTC. ClaimedBy is empty unless the job is processing.
// ExitCode is nil until an attempt has run to completion (a spawn failure
// leaves it nil).
type Job struct {
	ID            string     `json:"id"`
	Command       string     `json:"command"`
	Priority      int        `json:"priority"`
	TimeoutSec    int        `json:"timeout"`
	MaxRetries    int        `json:"max_retries"`
	Attempts      int        `json:"attempts"`
	State         State      `json:"state"`
	RunAt         time.Time  `json:"run_at"`
	NextAttemptAt time.Time  `json:"next_attempt_at"`
	ClaimedBy     string     `json:"claimed_by,omitempty"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	ExitCode      *int       `json:"exit_code,omitempty"`
	Stdout        string     `json:"stdout,omitempty"`
	Stderr        string     `json:"stderr,omitempty"`
	Error         string     `json:"error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Timeout returns the per-attempt wall-clock cap as a duration.
func (j *Job) Timeout() time.Duration {
	return time.Duration(j.TimeoutSec) * time.Second
}
