package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/trungle-dev/vid2mp3/internal/domain"
)

// uniqueViolation is the Postgres error code for duplicate primary keys.
const uniqueViolation = "23505"

// PostgresLedger persists jobs in a single jobs table. Conditional updates
// guard every transition so that two workers racing on the same job resolve
// to exactly one winner.
type PostgresLedger struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPostgresLedger creates a ledger backed by the given database.
func NewPostgresLedger(db *sqlx.DB, logger *slog.Logger) *PostgresLedger {
	return &PostgresLedger{
		db:     db,
		logger: logger,
	}
}

const jobColumns = `
	job_id, input_ref, output_ref, state, attempt_count,
	error_kind, error_detail, requester, notified,
	created_at, updated_at, completed_at
`

func (l *PostgresLedger) Create(ctx context.Context, jobID, inputRef, requester string) (*domain.Job, error) {
	query := `
		INSERT INTO jobs (job_id, input_ref, state, requester, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING ` + jobColumns

	var job domain.Job
	err := l.db.GetContext(ctx, &job, query, jobID, inputRef, domain.StateCreated, requester)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateJob, jobID)
		}
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	l.logger.Info("Job created",
		slog.String("job_id", jobID),
		slog.String("input_ref", inputRef),
	)

	return &job, nil
}

func (l *PostgresLedger) Transition(ctx context.Context, jobID string, expected, next domain.State, fields Fields) (*domain.Job, error) {
	if !domain.ValidTransition(expected, next) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrStaleTransition, expected, next)
	}

	attemptDelta := 0
	if fields.IncrementAttempt {
		attemptDelta = 1
	}

	query := `
		UPDATE jobs
		SET state = $1,
		    output_ref = CASE WHEN $2 <> '' THEN $2 ELSE output_ref END,
		    error_kind = $3,
		    error_detail = $4,
		    attempt_count = attempt_count + $5,
		    completed_at = CASE WHEN $1 IN ($6, $7) THEN NOW() ELSE completed_at END,
		    updated_at = NOW()
		WHERE job_id = $8
		  AND state = $9
		RETURNING ` + jobColumns

	var job domain.Job
	err := l.db.GetContext(ctx, &job, query,
		next,
		fields.OutputRef,
		fields.ErrorKind,
		fields.ErrorDetail,
		attemptDelta,
		domain.StateCompleted,
		domain.StateFailed,
		jobID,
		expected,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Distinguish a missing job from a lost race.
			if _, getErr := l.Get(ctx, jobID); errors.Is(getErr, domain.ErrNotFound) {
				return nil, getErr
			}
			l.logger.Warn("Transition lost conditional write",
				slog.String("job_id", jobID),
				slog.String("expected", string(expected)),
				slog.String("next", string(next)),
			)
			return nil, fmt.Errorf("%w: %s -> %s", domain.ErrStaleTransition, expected, next)
		}
		return nil, fmt.Errorf("failed to transition job: %w", err)
	}

	l.logger.Info("Job state transitioned",
		slog.String("job_id", jobID),
		slog.String("state", string(next)),
		slog.Int("attempt_count", job.AttemptCount),
	)

	return &job, nil
}

func (l *PostgresLedger) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE job_id = $1`

	var job domain.Job
	err := l.db.GetContext(ctx, &job, query, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, jobID)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

func (l *PostgresLedger) MarkNotified(ctx context.Context, jobID string) (bool, error) {
	query := `
		UPDATE jobs
		SET notified = TRUE,
		    updated_at = NOW()
		WHERE job_id = $1
		  AND notified = FALSE
	`

	result, err := l.db.ExecContext(ctx, query, jobID)
	if err != nil {
		return false, fmt.Errorf("failed to mark job notified: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		// Either already notified or absent; callers that care about
		// existence check with Get first.
		return false, nil
	}

	return true, nil
}
