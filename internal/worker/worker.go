package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trungle-dev/vid2mp3/internal/converter"
	"github.com/trungle-dev/vid2mp3/internal/domain"
	"github.com/trungle-dev/vid2mp3/internal/ledger"
	"github.com/trungle-dev/vid2mp3/internal/objectstore"
	"github.com/trungle-dev/vid2mp3/shared/rabbitmq"
)

// Config holds worker configuration
type Config struct {
	Logger            *slog.Logger
	Ledger            ledger.Ledger
	Store             objectstore.Store
	Converter         converter.Converter
	RabbitClient      *rabbitmq.Client
	JobsQueue         string
	CompletionKey     string
	Concurrency       int
	PrefetchCount     int
	MaxRetries        int
	ConversionTimeout time.Duration
	Quality           converter.Quality
	TempDir           string
}

// Worker drains the job queue and drives every job to a terminal ledger
// state with at most one durable side effect per successful job.
type Worker struct {
	logger        *slog.Logger
	rabbitClient  *rabbitmq.Client
	processor     *Processor
	workerID      string
	jobsQueue     string
	concurrency   int
	prefetchCount int
	jobsChan      chan *domain.JobMessage
	wg            sync.WaitGroup
	stopChan      chan struct{}
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	workerID := "worker-" + uuid.New().String()[:8]

	processor := NewProcessor(&ProcessorConfig{
		Logger:            cfg.Logger,
		Ledger:            cfg.Ledger,
		Store:             cfg.Store,
		Converter:         cfg.Converter,
		Publisher:         newQueuePublisher(cfg.RabbitClient, cfg.CompletionKey),
		MaxRetries:        cfg.MaxRetries,
		ConversionTimeout: cfg.ConversionTimeout,
		Quality:           cfg.Quality,
		TempDir:           cfg.TempDir,
	})

	return &Worker{
		logger:        cfg.Logger,
		rabbitClient:  cfg.RabbitClient,
		processor:     processor,
		workerID:      workerID,
		jobsQueue:     cfg.JobsQueue,
		concurrency:   cfg.Concurrency,
		prefetchCount: cfg.PrefetchCount,
		jobsChan:      make(chan *domain.JobMessage),
		stopChan:      make(chan struct{}),
	}
}

// Start begins processing jobs. It blocks until ctx is canceled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.String("queue", w.jobsQueue),
	)

	deliveries, err := w.setupConsumer(ctx)
	if err != nil {
		return err
	}

	w.spawnWorkerPool(ctx)
	w.startMessageDispatcher(ctx, deliveries)

	return nil
}

// Stop gracefully stops the worker. In-flight jobs run to a terminal state
// or their conversion timeout before the pool drains.
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
