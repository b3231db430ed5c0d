package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)

				// Verify some key fields are populated
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, int64(524288000), cfg.Server.MaxUploadBytes)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "vid2mp3_jobs", cfg.Database.Database)
				assert.Equal(t, "gridfs", cfg.ObjectStore.Backend)
				assert.Equal(t, "conversion_exchange", cfg.RabbitMQ.Exchange.Name)
				assert.Equal(t, "conversion_jobs", cfg.RabbitMQ.Jobs.Name)
				assert.Equal(t, "jobs.convert", cfg.RabbitMQ.Jobs.RoutingKey)
				assert.Equal(t, "conversion_completions", cfg.RabbitMQ.Completions.Name)
				assert.Equal(t, 4, cfg.Worker.Concurrency)
				assert.Equal(t, 3, cfg.Worker.MaxRetries)
				assert.Equal(t, 5*time.Minute, cfg.Worker.ConversionTimeout)
				assert.Equal(t, "medium", cfg.Worker.Quality)
				assert.Equal(t, 3, cfg.Notifier.MaxAttempts)
				assert.Equal(t, "vid2mp3-api", cfg.App.Name)
			}
		})
	}
}

// baseConfig returns a configuration that passes every service validation.
func baseConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "vid2mp3_jobs",
		},
		MongoDB: MongoDBConfig{
			URI:      "mongodb://localhost:27017",
			Database: "vid2mp3_media",
		},
		ObjectStore: ObjectStoreConfig{
			Backend: "gridfs",
			Bucket:  "media",
		},
		RabbitMQ: RabbitMQConfig{
			Host: "localhost",
			Port: 5672,
			Exchange: ExchangeConfig{
				Name: "conversion_exchange",
			},
			Jobs: QueueConfig{
				Name:       "conversion_jobs",
				RoutingKey: "jobs.convert",
			},
			Completions: QueueConfig{
				Name:       "conversion_completions",
				RoutingKey: "jobs.completed",
			},
		},
		Worker: WorkerConfig{
			Concurrency:       4,
			MaxRetries:        3,
			ConversionTimeout: 5 * time.Minute,
			Quality:           "medium",
			ShutdownTimeout:   30 * time.Second,
		},
		Notifier: NotifierConfig{
			MaxAttempts: 3,
		},
	}
}

func TestConfig_ValidateAPIConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(cfg *Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config",
			mutate:  func(cfg *Config) {},
			wantErr: false,
		},
		{
			name: "invalid server port - too low",
			mutate: func(cfg *Config) {
				cfg.Server.Port = 0
			},
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name: "invalid server port - too high",
			mutate: func(cfg *Config) {
				cfg.Server.Port = 70000
			},
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name: "missing database host",
			mutate: func(cfg *Config) {
				cfg.Database.Host = ""
			},
			wantErr:   true,
			errString: "database host is required",
		},
		{
			name: "missing database name",
			mutate: func(cfg *Config) {
				cfg.Database.Database = ""
			},
			wantErr:   true,
			errString: "database name is required",
		},
		{
			name: "missing rabbitmq host",
			mutate: func(cfg *Config) {
				cfg.RabbitMQ.Host = ""
			},
			wantErr:   true,
			errString: "rabbitmq host is required",
		},
		{
			name: "invalid rabbitmq port",
			mutate: func(cfg *Config) {
				cfg.RabbitMQ.Port = -1
			},
			wantErr:   true,
			errString: "invalid rabbitmq port",
		},
		{
			name: "missing exchange name",
			mutate: func(cfg *Config) {
				cfg.RabbitMQ.Exchange.Name = ""
			},
			wantErr:   true,
			errString: "rabbitmq exchange name is required",
		},
		{
			name: "missing jobs queue name",
			mutate: func(cfg *Config) {
				cfg.RabbitMQ.Jobs.Name = ""
			},
			wantErr:   true,
			errString: "rabbitmq jobs queue name is required",
		},
		{
			name: "missing completions queue name",
			mutate: func(cfg *Config) {
				cfg.RabbitMQ.Completions.Name = ""
			},
			wantErr:   true,
			errString: "rabbitmq completions queue name is required",
		},
		{
			name: "unknown objectstore backend",
			mutate: func(cfg *Config) {
				cfg.ObjectStore.Backend = "local"
			},
			wantErr:   true,
			errString: "invalid objectstore backend",
		},
		{
			name: "gridfs backend without mongodb uri",
			mutate: func(cfg *Config) {
				cfg.MongoDB.URI = ""
			},
			wantErr:   true,
			errString: "mongodb uri is required",
		},
		{
			name: "s3 backend without region",
			mutate: func(cfg *Config) {
				cfg.ObjectStore.Backend = "s3"
				cfg.ObjectStore.S3.Region = ""
			},
			wantErr:   true,
			errString: "s3 region is required",
		},
		{
			name: "s3 backend with region",
			mutate: func(cfg *Config) {
				cfg.ObjectStore.Backend = "s3"
				cfg.ObjectStore.S3.Region = "auto"
			},
			wantErr: false,
		},
		{
			name: "missing bucket",
			mutate: func(cfg *Config) {
				cfg.ObjectStore.Bucket = ""
			},
			wantErr:   true,
			errString: "objectstore bucket is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.mutate(cfg)

			err := cfg.ValidateAPIConfig()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateWorkerConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(cfg *Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config",
			mutate:  func(cfg *Config) {},
			wantErr: false,
		},
		{
			name: "zero concurrency",
			mutate: func(cfg *Config) {
				cfg.Worker.Concurrency = 0
			},
			wantErr:   true,
			errString: "worker concurrency must be greater than 0",
		},
		{
			name: "zero max retries",
			mutate: func(cfg *Config) {
				cfg.Worker.MaxRetries = 0
			},
			wantErr:   true,
			errString: "worker max_retries must be greater than 0",
		},
		{
			name: "zero conversion timeout",
			mutate: func(cfg *Config) {
				cfg.Worker.ConversionTimeout = 0
			},
			wantErr:   true,
			errString: "worker conversion_timeout must be greater than 0",
		},
		{
			name: "unknown quality",
			mutate: func(cfg *Config) {
				cfg.Worker.Quality = "lossless"
			},
			wantErr:   true,
			errString: "invalid worker quality",
		},
		{
			name: "zero shutdown timeout",
			mutate: func(cfg *Config) {
				cfg.Worker.ShutdownTimeout = 0
			},
			wantErr:   true,
			errString: "worker shutdown_timeout must be greater than 0",
		},
		{
			name: "missing database host",
			mutate: func(cfg *Config) {
				cfg.Database.Host = ""
			},
			wantErr:   true,
			errString: "database host is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.mutate(cfg)

			err := cfg.ValidateWorkerConfig()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateNotifierConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(cfg *Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config with smtp disabled",
			mutate:  func(cfg *Config) {},
			wantErr: false,
		},
		{
			name: "zero max attempts",
			mutate: func(cfg *Config) {
				cfg.Notifier.MaxAttempts = 0
			},
			wantErr:   true,
			errString: "notifier max_attempts must be greater than 0",
		},
		{
			name: "smtp enabled without host",
			mutate: func(cfg *Config) {
				cfg.Notifier.SMTP.Enabled = true
				cfg.Notifier.SMTP.Port = 587
				cfg.Notifier.SMTP.From = "noreply@vid2mp3.dev"
			},
			wantErr:   true,
			errString: "smtp host is required",
		},
		{
			name: "smtp enabled without from address",
			mutate: func(cfg *Config) {
				cfg.Notifier.SMTP.Enabled = true
				cfg.Notifier.SMTP.Host = "smtp.mailtrap.io"
				cfg.Notifier.SMTP.Port = 587
			},
			wantErr:   true,
			errString: "smtp from address is required",
		},
		{
			name: "smtp enabled with invalid port",
			mutate: func(cfg *Config) {
				cfg.Notifier.SMTP.Enabled = true
				cfg.Notifier.SMTP.Host = "smtp.mailtrap.io"
				cfg.Notifier.SMTP.Port = 0
				cfg.Notifier.SMTP.From = "noreply@vid2mp3.dev"
			},
			wantErr:   true,
			errString: "invalid smtp port",
		},
		{
			name: "smtp fully configured",
			mutate: func(cfg *Config) {
				cfg.Notifier.SMTP.Enabled = true
				cfg.Notifier.SMTP.Host = "smtp.mailtrap.io"
				cfg.Notifier.SMTP.Port = 587
				cfg.Notifier.SMTP.From = "noreply@vid2mp3.dev"
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.mutate(cfg)

			err := cfg.ValidateNotifierConfig()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
