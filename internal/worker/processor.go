package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/trungle-dev/vid2mp3/internal/converter"
	"github.com/trungle-dev/vid2mp3/internal/domain"
	"github.com/trungle-dev/vid2mp3/internal/ledger"
	"github.com/trungle-dev/vid2mp3/internal/objectstore"
)

// CompletionPublisher emits completion events to the completion topic.
type CompletionPublisher interface {
	PublishCompletion(ctx context.Context, ev *domain.CompletionEvent) error
}

// ProcessorConfig holds processor dependencies and tuning.
type ProcessorConfig struct {
	Logger            *slog.Logger
	Ledger            ledger.Ledger
	Store             objectstore.Store
	Converter         converter.Converter
	Publisher         CompletionPublisher
	MaxRetries        int
	ConversionTimeout time.Duration
	Quality           converter.Quality
	TempDir           string
}

// Processor turns one job message into a terminal ledger state. It owns no
// broker plumbing; the pool acks on a nil return and nacks otherwise, so
// every nil return here means the outcome is durably recorded.
type Processor struct {
	logger            *slog.Logger
	ledger            ledger.Ledger
	store             objectstore.Store
	converter         converter.Converter
	publisher         CompletionPublisher
	maxRetries        int
	conversionTimeout time.Duration
	preset            converter.Preset
	tempDir           string
}

// NewProcessor creates a processor. An unknown quality falls back to medium.
func NewProcessor(cfg *ProcessorConfig) *Processor {
	preset, err := converter.PresetFor(cfg.Quality)
	if err != nil {
		preset, _ = converter.PresetFor(converter.QualityMedium)
		cfg.Logger.Warn("Unknown quality preset, falling back to medium",
			slog.String("quality", string(cfg.Quality)),
		)
	}

	return &Processor{
		logger:            cfg.Logger,
		ledger:            cfg.Ledger,
		store:             cfg.Store,
		converter:         cfg.Converter,
		publisher:         cfg.Publisher,
		maxRetries:        cfg.MaxRetries,
		conversionTimeout: cfg.ConversionTimeout,
		preset:            preset,
		tempDir:           cfg.TempDir,
	}
}

// Process handles a single job message. Contract:
//   - returns nil when the message may be acknowledged: the job reached a
//     terminal state, was already terminal, or belongs to another worker
//   - returns a RetryableError when the message must be redelivered
//   - returns domain.ErrMalformedMessage for payloads to reject permanently
func (p *Processor) Process(ctx context.Context, msg *domain.JobMessage) error {
	start := time.Now()

	// Idempotent short-circuit: a redelivered message for a job that already
	// reached a terminal state must not produce a second side effect.
	job, err := p.ledger.Get(ctx, msg.JobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			p.logger.Warn("Job message references unknown job, discarding",
				slog.String("job_id", msg.JobID),
			)
			jobsProcessed.WithLabelValues("discarded").Inc()
			return nil
		}
		return domain.NewRetryableError(fmt.Errorf("ledger lookup failed: %w", err))
	}

	if job.State.Terminal() {
		p.logger.Info("Job already terminal, skipping",
			slog.String("job_id", job.JobID),
			slog.String("state", string(job.State)),
		)
		jobsProcessed.WithLabelValues("skipped").Inc()
		return nil
	}

	// Claim the job: conditional queued→processing write. Losing the race
	// means another worker owns it.
	job, err = p.claim(ctx, msg)
	if err != nil {
		return err
	}
	if job == nil {
		jobsProcessed.WithLabelValues("skipped").Inc()
		return nil
	}

	p.logger.Info("Job claimed",
		slog.String("job_id", job.JobID),
		slog.Int("attempt_count", job.AttemptCount),
	)

	// Once claimed, the job runs to a terminal state or its conversion
	// timeout. A shutdown cancel stops intake upstream; it must not strand
	// a claimed job in processing with its message acknowledged.
	ctx = context.WithoutCancel(ctx)

	// A payload that decoded but carries no input ref can still be recorded
	// as a failure against its ledger entry.
	if msg.InputRef == "" {
		if err := p.failJob(ctx, job.JobID, domain.StateProcessing, domain.KindMalformedMessage, "job message missing input_ref"); err != nil {
			return err
		}
		jobsProcessed.WithLabelValues("failed").Inc()
		return nil
	}

	// Redelivery storms stop here: once past the ceiling the job is forced
	// to failed and the message acknowledged.
	if job.AttemptCount > p.maxRetries {
		if err := p.failJob(ctx, job.JobID, domain.StateProcessing, domain.KindRetriesExhausted,
			fmt.Sprintf("gave up after %d attempts", job.AttemptCount)); err != nil {
			return err
		}
		jobsProcessed.WithLabelValues("failed").Inc()
		return nil
	}

	// Stage the input from the object store to local disk.
	inputPath, cleanup, err := p.stageInput(ctx, job.InputRef)
	if err != nil {
		if failErr := p.failJob(ctx, job.JobID, domain.StateProcessing, domain.KindInputUnavailable, err.Error()); failErr != nil {
			return failErr
		}
		jobsProcessed.WithLabelValues("failed").Inc()
		return nil
	}
	defer cleanup()

	// Convert under the wall-clock timeout.
	outputPath := inputPath + ".mp3"
	defer os.Remove(outputPath)

	convCtx, cancel := context.WithTimeout(ctx, p.conversionTimeout)
	err = p.converter.Convert(convCtx, inputPath, outputPath, p.preset)
	cancel()
	if err != nil {
		if failErr := p.failJob(ctx, job.JobID, domain.StateProcessing, domain.KindConversionFailed, err.Error()); failErr != nil {
			return failErr
		}
		jobsProcessed.WithLabelValues("failed").Inc()
		return nil
	}

	// Store the output under a new ref.
	outputRef, err := p.storeOutput(ctx, outputPath)
	if err != nil {
		return p.handleStoreFailure(ctx, job, err)
	}

	// Commit completed before acknowledging or publishing: a crash between
	// the commit and the ack leaves only a redelivery that short-circuits,
	// never a completed job without a durable output_ref.
	job, err = p.ledger.Transition(ctx, job.JobID, domain.StateProcessing, domain.StateCompleted, ledger.Fields{
		OutputRef: outputRef,
	})
	if err != nil {
		if errors.Is(err, domain.ErrStaleTransition) {
			p.logger.Warn("Completion commit lost the race, another worker finished first",
				slog.String("job_id", msg.JobID),
			)
			jobsProcessed.WithLabelValues("skipped").Inc()
			return nil
		}
		return domain.NewRetryableError(fmt.Errorf("failed to commit completion: %w", err))
	}

	// Publish the completion event, then ack. Publishing is best-effort: a
	// lost event costs a notification, never the conversion.
	ev := &domain.CompletionEvent{
		JobID:     job.JobID,
		OutputRef: outputRef,
		Outcome:   domain.OutcomeSuccess,
	}
	if err := p.publisher.PublishCompletion(ctx, ev); err != nil {
		p.logger.Error("Failed to publish completion event",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
	}

	jobsProcessed.WithLabelValues("success").Inc()
	jobDuration.Observe(time.Since(start).Seconds())

	p.logger.Info("Job completed",
		slog.String("job_id", job.JobID),
		slog.String("output_ref", outputRef),
		slog.Duration("duration", time.Since(start)),
	)

	return nil
}

// claim performs the conditional queued→processing transition. A nil job
// with a nil error means some other worker owns the job and the message
// should be acknowledged without side effects.
func (p *Processor) claim(ctx context.Context, msg *domain.JobMessage) (*domain.Job, error) {
	job, err := p.ledger.Transition(ctx, msg.JobID, domain.StateQueued, domain.StateProcessing, ledger.Fields{
		IncrementAttempt: true,
	})
	if err == nil {
		return job, nil
	}

	if !errors.Is(err, domain.ErrStaleTransition) {
		return nil, domain.NewRetryableError(fmt.Errorf("failed to claim job: %w", err))
	}

	current, getErr := p.ledger.Get(ctx, msg.JobID)
	if getErr != nil {
		return nil, domain.NewRetryableError(fmt.Errorf("failed to inspect contested job: %w", getErr))
	}

	// The broker redelivers only after the previous consumer's channel
	// closed, so a redelivered message finding the job stuck in processing
	// means its owner died mid-flight. Take over.
	if current.State == domain.StateProcessing && msg.Redelivered {
		job, err = p.ledger.Transition(ctx, msg.JobID, domain.StateProcessing, domain.StateProcessing, ledger.Fields{
			IncrementAttempt: true,
		})
		if err == nil {
			p.logger.Warn("Taking over job from dead worker",
				slog.String("job_id", msg.JobID),
				slog.Int("attempt_count", job.AttemptCount),
			)
			return job, nil
		}
	}

	p.logger.Info("Job already being processed, skipping",
		slog.String("job_id", msg.JobID),
		slog.String("state", string(current.State)),
	)
	return nil, nil
}

// stageInput copies the input object to a local temp file for the converter.
func (p *Processor) stageInput(ctx context.Context, inputRef string) (string, func(), error) {
	rc, err := p.store.Get(ctx, inputRef)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", domain.ErrInputUnavailable, err)
	}
	defer rc.Close()

	tf, err := os.CreateTemp(p.tempDir, "vid2mp3-input-*")
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", domain.ErrInputUnavailable, err)
	}

	if _, err := io.Copy(tf, rc); err != nil {
		tf.Close()
		os.Remove(tf.Name())
		return "", nil, fmt.Errorf("%w: %v", domain.ErrInputUnavailable, err)
	}

	if err := tf.Close(); err != nil {
		os.Remove(tf.Name())
		return "", nil, fmt.Errorf("%w: %v", domain.ErrInputUnavailable, err)
	}

	path := tf.Name()
	return path, func() { os.Remove(path) }, nil
}

// storeOutput streams the converted file into the object store.
func (p *Processor) storeOutput(ctx context.Context, outputPath string) (string, error) {
	f, err := os.Open(outputPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrStorageWriteFailed, err)
	}
	defer f.Close()

	ref, err := p.store.Put(ctx, f, "audio/mpeg")
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrStorageWriteFailed, err)
	}

	return ref, nil
}

// handleStoreFailure resolves a failed output write: below the retry ceiling
// the job goes back to queued and the message is redelivered; at the ceiling
// it is forced to failed so redelivery stops.
func (p *Processor) handleStoreFailure(ctx context.Context, job *domain.Job, storeErr error) error {
	if job.AttemptCount >= p.maxRetries {
		if err := p.failJob(ctx, job.JobID, domain.StateProcessing, domain.KindRetriesExhausted,
			fmt.Sprintf("storage write failed on final attempt %d: %v", job.AttemptCount, storeErr)); err != nil {
			return err
		}
		jobsProcessed.WithLabelValues("failed").Inc()
		return nil
	}

	// Error columns stay reserved for failed jobs; the attempt's fault goes
	// to the log and the message comes back for redelivery.
	_, err := p.ledger.Transition(ctx, job.JobID, domain.StateProcessing, domain.StateQueued, ledger.Fields{})
	if err != nil {
		p.logger.Error("Failed to hand job back to queued after store failure",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
	}

	p.logger.Warn("Storage write failed, job requeued",
		slog.String("job_id", job.JobID),
		slog.Int("attempt_count", job.AttemptCount),
		slog.String("error", storeErr.Error()),
	)

	jobsProcessed.WithLabelValues("requeued").Inc()
	return domain.NewRetryableError(storeErr)
}

// failJob records a terminal failed state. Losing the write to a concurrent
// transition is fine; any other failure must surface so the message is
// redelivered instead of acknowledged over a job stuck in processing.
func (p *Processor) failJob(ctx context.Context, jobID string, expected domain.State, kind, detail string) error {
	_, err := p.ledger.Transition(ctx, jobID, expected, domain.StateFailed, ledger.Fields{
		ErrorKind:   kind,
		ErrorDetail: detail,
	})
	if err != nil {
		if errors.Is(err, domain.ErrStaleTransition) {
			p.logger.Warn("Failure record lost to a concurrent transition",
				slog.String("job_id", jobID),
				slog.String("kind", kind),
			)
			return nil
		}
		p.logger.Error("Failed to record job failure",
			slog.String("job_id", jobID),
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		)
		return domain.NewRetryableError(fmt.Errorf("failed to record job failure: %w", err))
	}

	p.logger.Warn("Job failed",
		slog.String("job_id", jobID),
		slog.String("kind", kind),
		slog.String("detail", detail),
	)
	return nil
}

// queuePublisher publishes completion events through the shared RabbitMQ
// client.
type queuePublisher struct {
	client     completionQueueClient
	routingKey string
}

type completionQueueClient interface {
	PublishWithRetry(ctx context.Context, routingKey string, body []byte, contentType string) error
}

func newQueuePublisher(client completionQueueClient, routingKey string) *queuePublisher {
	return &queuePublisher{
		client:     client,
		routingKey: routingKey,
	}
}

func (q *queuePublisher) PublishCompletion(ctx context.Context, ev *domain.CompletionEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal completion event: %w", err)
	}
	return q.client.PublishWithRetry(ctx, q.routingKey, body, "application/json")
}
