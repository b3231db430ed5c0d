package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trungle-dev/vid2mp3/internal/config"
	"github.com/trungle-dev/vid2mp3/internal/converter"
	"github.com/trungle-dev/vid2mp3/internal/ledger"
	"github.com/trungle-dev/vid2mp3/internal/objectstore"
	"github.com/trungle-dev/vid2mp3/internal/worker"
	"github.com/trungle-dev/vid2mp3/shared/logger"
	"github.com/trungle-dev/vid2mp3/shared/mongodb"
	"github.com/trungle-dev/vid2mp3/shared/postgresql"
	"github.com/trungle-dev/vid2mp3/shared/rabbitmq"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	jobLedger := ledger.NewPostgresLedger(dbClient.GetDB(), appLogger.Logger)

	store, closeStore, err := initObjectStore(cfg, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize object store: %w", err)
	}
	defer closeStore()

	rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	defer rabbitClient.Close()

	appLogger.Info("RabbitMQ connection established")

	if cfg.Metrics.Enabled {
		startMetricsServer(cfg.Metrics.Port, appLogger.Logger)
	}

	workerInstance := worker.NewWorker(&worker.Config{
		Logger:            appLogger.Logger,
		Ledger:            jobLedger,
		Store:             store,
		Converter:         converter.NewFFmpegConverter(cfg.Worker.FFmpegBinary, appLogger.Logger),
		RabbitClient:      rabbitClient,
		JobsQueue:         cfg.RabbitMQ.Jobs.Name,
		CompletionKey:     cfg.RabbitMQ.Completions.RoutingKey,
		Concurrency:       cfg.Worker.Concurrency,
		PrefetchCount:     cfg.RabbitMQ.Consumer.PrefetchCount,
		MaxRetries:        cfg.Worker.MaxRetries,
		ConversionTimeout: cfg.Worker.ConversionTimeout,
		Quality:           converter.Quality(cfg.Worker.Quality),
		TempDir:           cfg.Worker.TempDir,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		if err := workerInstance.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	appLogger.Info("Worker service started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		appLogger.Error("Worker error",
			slog.Any("error", err),
		)
		return err
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		workerInstance.Stop()
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Worker stopped gracefully")
	case <-shutdownCtx.Done():
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	appLogger.Info("Worker service shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initObjectStore builds the configured media storage backend
func initObjectStore(cfg *config.Config, logger *slog.Logger) (objectstore.Store, func(), error) {
	switch cfg.ObjectStore.Backend {
	case "s3":
		store, err := objectstore.NewS3Store(context.Background(), &objectstore.S3Config{
			Bucket:    cfg.ObjectStore.Bucket,
			Region:    cfg.ObjectStore.S3.Region,
			Endpoint:  cfg.ObjectStore.S3.Endpoint,
			AccessKey: cfg.ObjectStore.S3.AccessKey,
			SecretKey: cfg.ObjectStore.S3.SecretKey,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil

	default: // gridfs
		mongoClient, err := mongodb.NewClient(&mongodb.Config{
			URI:            cfg.MongoDB.URI,
			Database:       cfg.MongoDB.Database,
			ConnectTimeout: cfg.MongoDB.ConnectTimeout,
		}, logger)
		if err != nil {
			return nil, nil, err
		}

		store, err := objectstore.NewGridFSStore(mongoClient.Database(), cfg.ObjectStore.Bucket, logger)
		if err != nil {
			mongoClient.Close()
			return nil, nil, err
		}
		return store, func() { mongoClient.Close() }, nil
	}
}

// initRabbitMQ initializes the RabbitMQ client with both pipeline queues
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		Queues: []rabbitmq.QueueBinding{
			{
				Name:       cfg.Jobs.Name,
				RoutingKey: cfg.Jobs.RoutingKey,
				Durable:    cfg.Jobs.Durable,
				AutoDelete: cfg.Jobs.AutoDelete,
				Exclusive:  cfg.Jobs.Exclusive,
			},
			{
				Name:       cfg.Completions.Name,
				RoutingKey: cfg.Completions.RoutingKey,
				Durable:    cfg.Completions.Durable,
				AutoDelete: cfg.Completions.AutoDelete,
				Exclusive:  cfg.Completions.Exclusive,
			},
		},
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}

// startMetricsServer exposes Prometheus metrics on its own port
func startMetricsServer(port int, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		addr := fmt.Sprintf(":%d", port)
		logger.Info("Metrics server listening", slog.String("address", addr))
		if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server error", slog.Any("error", err))
		}
	}()
}
