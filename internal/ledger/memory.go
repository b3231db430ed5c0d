package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/trungle-dev/vid2mp3/internal/domain"
)

// MemoryLedger is an in-process Ledger with the same conditional-write
// semantics as the Postgres implementation. It backs tests and local runs
// without a database.
type MemoryLedger struct {
	mu   sync.Mutex
	jobs map[string]*domain.Job
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		jobs: make(map[string]*domain.Job),
	}
}

func (l *MemoryLedger) Create(ctx context.Context, jobID, inputRef, requester string) (*domain.Job, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.jobs[jobID]; ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateJob, jobID)
	}

	now := time.Now()
	job := &domain.Job{
		JobID:     jobID,
		InputRef:  inputRef,
		State:     domain.StateCreated,
		Requester: requester,
		CreatedAt: now,
		UpdatedAt: now,
	}
	l.jobs[jobID] = job

	copied := *job
	return &copied, nil
}

func (l *MemoryLedger) Transition(ctx context.Context, jobID string, expected, next domain.State, fields Fields) (*domain.Job, error) {
	if !domain.ValidTransition(expected, next) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrStaleTransition, expected, next)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	job, ok := l.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, jobID)
	}

	if job.State != expected {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrStaleTransition, expected, next)
	}

	job.State = next
	if fields.OutputRef != "" {
		job.OutputRef = fields.OutputRef
	}
	job.ErrorKind = fields.ErrorKind
	job.ErrorDetail = fields.ErrorDetail
	if fields.IncrementAttempt {
		job.AttemptCount++
	}
	job.UpdatedAt = time.Now()
	if next.Terminal() {
		now := job.UpdatedAt
		job.CompletedAt = &now
	}

	copied := *job
	return &copied, nil
}

func (l *MemoryLedger) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	job, ok := l.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, jobID)
	}

	copied := *job
	return &copied, nil
}

func (l *MemoryLedger) MarkNotified(ctx context.Context, jobID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	job, ok := l.jobs[jobID]
	if !ok {
		return false, nil
	}
	if job.Notified {
		return false, nil
	}

	job.Notified = true
	job.UpdatedAt = time.Now()
	return true, nil
}
