package handler

import (
	"context"
	"log/slog"

	"github.com/trungle-dev/vid2mp3/internal/ledger"
	"github.com/trungle-dev/vid2mp3/internal/objectstore"
)

// HealthChecker reports whether a backing dependency is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// JobPublisher enqueues job messages on the broker. Satisfied by the shared
// RabbitMQ client.
type JobPublisher interface {
	PublishWithRetry(ctx context.Context, routingKey string, body []byte, contentType string) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger         *slog.Logger
	Ledger         ledger.Ledger
	Store          objectstore.Store
	RabbitClient   JobPublisher
	DBHealth       HealthChecker
	JobsRoutingKey string
	MaxUploadBytes int64
}

// JobHandler handles upload, status and download requests
type JobHandler struct {
	logger         *slog.Logger
	ledger         ledger.Ledger
	store          objectstore.Store
	rabbitClient   JobPublisher
	jobsRoutingKey string
	maxUploadBytes int64
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:         deps.Logger,
		ledger:         deps.Ledger,
		store:          deps.Store,
		rabbitClient:   deps.RabbitClient,
		jobsRoutingKey: deps.JobsRoutingKey,
		maxUploadBytes: deps.MaxUploadBytes,
	}
}
