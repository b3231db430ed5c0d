package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/trungle-dev/vid2mp3/internal/domain"
	"github.com/trungle-dev/vid2mp3/internal/ledger"
	"github.com/trungle-dev/vid2mp3/shared/rabbitmq"
)

// Config holds dispatcher configuration.
type Config struct {
	Logger           *slog.Logger
	Ledger           ledger.Ledger
	Notifier         Notifier
	RabbitClient     *rabbitmq.Client
	CompletionsQueue string
	MaxAttempts      int
}

// Dispatcher consumes completion events and performs the best-effort
// notification side effect. It is fully decoupled from conversion
// correctness: a dropped notification never touches the job's outcome.
type Dispatcher struct {
	logger       *slog.Logger
	ledger       ledger.Ledger
	notifier     Notifier
	rabbitClient *rabbitmq.Client
	queue        string
	maxAttempts  int
	consumerTag  string
}

// NewDispatcher creates a dispatcher instance.
func NewDispatcher(cfg *Config) *Dispatcher {
	return &Dispatcher{
		logger:       cfg.Logger,
		ledger:       cfg.Ledger,
		notifier:     cfg.Notifier,
		rabbitClient: cfg.RabbitClient,
		queue:        cfg.CompletionsQueue,
		maxAttempts:  cfg.MaxAttempts,
		consumerTag:  "notifier-" + uuid.New().String()[:8],
	}
}

// Start consumes completion events until ctx is canceled.
func (d *Dispatcher) Start(ctx context.Context) error {
	if err := d.rabbitClient.SetQos(1); err != nil {
		return err
	}

	deliveries, err := d.rabbitClient.Consume(d.queue, d.consumerTag)
	if err != nil {
		return err
	}

	d.logger.Info("Notification dispatcher started",
		slog.String("queue", d.queue),
		slog.String("consumer_tag", d.consumerTag),
	)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Notification dispatcher stopped - context canceled")
			return nil

		case delivery, ok := <-deliveries:
			if !ok {
				d.logger.Warn("RabbitMQ delivery channel closed")
				return nil
			}

			d.handleDelivery(ctx, delivery)
		}
	}
}

func (d *Dispatcher) handleDelivery(ctx context.Context, delivery amqp.Delivery) {
	start := time.Now()

	err := d.HandleEvent(ctx, delivery.Body)

	eventDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		if domain.IsRetryable(err) {
			eventsProcessed.WithLabelValues("error").Inc()
			if nackErr := delivery.Nack(false, true); nackErr != nil {
				d.logger.Error("Failed to NACK completion event",
					slog.String("error", nackErr.Error()),
				)
			}
			return
		}

		// Permanently rejected: malformed or undeliverable
		eventsProcessed.WithLabelValues("error").Inc()
		d.logger.Error("Dropping completion event",
			slog.String("error", err.Error()),
		)
		if nackErr := delivery.Nack(false, false); nackErr != nil {
			d.logger.Error("Failed to NACK completion event",
				slog.String("error", nackErr.Error()),
			)
		}
		return
	}

	eventsProcessed.WithLabelValues("success").Inc()
	if ackErr := delivery.Ack(false); ackErr != nil {
		d.logger.Error("Failed to ACK completion event",
			slog.String("error", ackErr.Error()),
		)
	}
}

// HandleEvent processes one completion event body. Contract mirrors the
// worker processor: nil means the event is settled and may be acknowledged,
// a RetryableError asks for broker redelivery, anything else is a permanent
// reject.
func (d *Dispatcher) HandleEvent(ctx context.Context, body []byte) error {
	ev, err := domain.ParseCompletionEvent(body)
	if err != nil {
		return err
	}

	if ev.Outcome != domain.OutcomeSuccess {
		d.logger.Info("Ignoring non-success completion event",
			slog.String("job_id", ev.JobID),
			slog.String("outcome", ev.Outcome),
		)
		return nil
	}

	job, err := d.ledger.Get(ctx, ev.JobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			d.logger.Warn("Completion event references unknown job, discarding",
				slog.String("job_id", ev.JobID),
			)
			return nil
		}
		return domain.NewRetryableError(fmt.Errorf("ledger lookup failed: %w", err))
	}

	// Claim the notification: the first dispatcher to flip the flag owns
	// the send, so brokers redelivering the same event to two instances
	// still produce exactly one notification.
	claimed, err := d.ledger.MarkNotified(ctx, ev.JobID)
	if err != nil {
		return domain.NewRetryableError(fmt.Errorf("failed to mark job notified: %w", err))
	}
	if !claimed {
		d.logger.Info("Job already notified, skipping",
			slog.String("job_id", ev.JobID),
		)
		return nil
	}

	// Bounded in-process retries; after that the notification is dropped.
	var notifyErr error
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		notifyErr = d.notifier.Notify(ctx, job)
		if notifyErr == nil {
			return nil
		}

		d.logger.Warn("Notification attempt failed",
			slog.String("job_id", ev.JobID),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", d.maxAttempts),
			slog.String("error", notifyErr.Error()),
		)

		if attempt < d.maxAttempts {
			select {
			case <-time.After(time.Duration(attempt) * time.Second):
			case <-ctx.Done():
				return fmt.Errorf("notification canceled: %w", ctx.Err())
			}
		}
	}

	return fmt.Errorf("notification dropped after %d attempts: %w", d.maxAttempts, notifyErr)
}
