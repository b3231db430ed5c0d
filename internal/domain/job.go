package domain

import "time"

// State is the lifecycle state of a Job in the ledger.
type State string

// Job lifecycle states. Transitions are strictly forward:
// created → queued → processing → completed/failed.
const (
	StateCreated    State = "created"
	StateQueued     State = "queued"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Terminal reports whether s is a terminal state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// ValidTransition reports whether moving from → to is a legal edge.
func ValidTransition(from, to State) bool {
	switch from {
	case StateCreated:
		return to == StateQueued
	case StateQueued:
		return to == StateProcessing
	case StateProcessing:
		// processing→queued hands a transiently failed job back to the queue
		// for redelivery; processing→processing is the takeover edge used
		// when a redelivered message finds its previous owner dead.
		return to == StateCompleted || to == StateFailed || to == StateQueued || to == StateProcessing
	default:
		return false
	}
}

// Job represents one end-to-end conversion request tracked by the ledger.
type Job struct {
	JobID        string     `db:"job_id"`
	InputRef     string     `db:"input_ref"`
	OutputRef    string     `db:"output_ref"`
	State        State      `db:"state"`
	AttemptCount int        `db:"attempt_count"`
	ErrorKind    string     `db:"error_kind"`
	ErrorDetail  string     `db:"error_detail"`
	Requester    string     `db:"requester"`
	Notified     bool       `db:"notified"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
	CompletedAt  *time.Time `db:"completed_at"`
}
