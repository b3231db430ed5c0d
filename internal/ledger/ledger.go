package ledger

import (
	"context"

	"github.com/trungle-dev/vid2mp3/internal/domain"
)

// Fields carries the optional columns written alongside a state transition.
type Fields struct {
	// OutputRef is set on the queued→processing→completed path only.
	OutputRef string
	// ErrorKind and ErrorDetail describe the last failure.
	ErrorKind   string
	ErrorDetail string
	// IncrementAttempt bumps attempt_count; set when a worker claims the job.
	IncrementAttempt bool
}

// Ledger is the single source of truth for job state, independent of the
// broker and the object store. All writes are atomic per job.
type Ledger interface {
	// Create inserts a new job in state created. Returns
	// domain.ErrDuplicateJob if the id already exists.
	Create(ctx context.Context, jobID, inputRef, requester string) (*domain.Job, error)

	// Transition performs a conditional (compare-and-set) state change.
	// Returns domain.ErrStaleTransition if the persisted state does not
	// match expected, and domain.ErrNotFound if the job is absent.
	Transition(ctx context.Context, jobID string, expected, next domain.State, fields Fields) (*domain.Job, error)

	// Get returns the job or domain.ErrNotFound.
	Get(ctx context.Context, jobID string) (*domain.Job, error)

	// MarkNotified sets the per-job notified flag. It reports true when this
	// call set the flag and false when it was already set, so concurrent
	// dispatchers resolve to exactly one notification.
	MarkNotified(ctx context.Context, jobID string) (bool, error)
}
