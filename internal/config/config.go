package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Config represents the complete application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	MongoDB     MongoDBConfig     `yaml:"mongodb"`
	ObjectStore ObjectStoreConfig `yaml:"objectstore"`
	RabbitMQ    RabbitMQConfig    `yaml:"rabbitmq"`
	Logging     LoggingConfig     `yaml:"logging"`
	App         AppConfig         `yaml:"app"`
	Worker      WorkerConfig      `yaml:"worker"`
	Notifier    NotifierConfig    `yaml:"notifier"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// MongoDBConfig holds MongoDB connection configuration for the GridFS backend
type MongoDBConfig struct {
	URI            string        `yaml:"uri"`
	Database       string        `yaml:"database"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// ObjectStoreConfig selects and configures the media storage backend
type ObjectStoreConfig struct {
	// Backend is "gridfs" or "s3"
	Backend string   `yaml:"backend"`
	Bucket  string   `yaml:"bucket"`
	S3      S3Config `yaml:"s3"`
}

// S3Config holds S3-compatible storage settings (AWS S3 or Cloudflare R2)
type S3Config struct {
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Host        string           `yaml:"host"`
	Port        int              `yaml:"port"`
	User        string           `yaml:"user"`
	Password    string           `yaml:"password"`
	VHost       string           `yaml:"vhost"`
	Exchange    ExchangeConfig   `yaml:"exchange"`
	Jobs        QueueConfig      `yaml:"jobs"`
	Completions QueueConfig      `yaml:"completions"`
	Connection  ConnectionConfig `yaml:"connection"`
	Publish     PublishConfig    `yaml:"publish"`
	Consumer    ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name       string `yaml:"name"`
	RoutingKey string `yaml:"routing_key"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
	Exclusive  bool   `yaml:"exclusive"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	PrefetchCount int `yaml:"prefetch_count"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// WorkerConfig holds conversion worker configuration
type WorkerConfig struct {
	Concurrency       int           `yaml:"concurrency"`
	MaxRetries        int           `yaml:"max_retries"`
	ConversionTimeout time.Duration `yaml:"conversion_timeout"`
	Quality           string        `yaml:"quality"`
	FFmpegBinary      string        `yaml:"ffmpeg_binary"`
	TempDir           string        `yaml:"temp_dir"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// NotifierConfig holds notification dispatcher configuration
type NotifierConfig struct {
	MaxAttempts int        `yaml:"max_attempts"`
	SMTP        SMTPConfig `yaml:"smtp"`
}

// SMTPConfig holds outbound mail settings
type SMTPConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	From     string `yaml:"from"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// MetricsConfig holds the Prometheus scrape endpoint settings
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads and parses the configuration file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// validateBroker checks the RabbitMQ section shared by every service
func (c *Config) validateBroker() error {
	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	if c.RabbitMQ.Jobs.Name == "" {
		return fmt.Errorf("rabbitmq jobs queue name is required")
	}

	if c.RabbitMQ.Completions.Name == "" {
		return fmt.Errorf("rabbitmq completions queue name is required")
	}

	return nil
}

// validateLedger checks the PostgreSQL section shared by every service
func (c *Config) validateLedger() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	return nil
}

// validateObjectStore checks the media storage section
func (c *Config) validateObjectStore() error {
	switch c.ObjectStore.Backend {
	case "gridfs":
		if c.MongoDB.URI == "" {
			return fmt.Errorf("mongodb uri is required for the gridfs backend")
		}
		if c.MongoDB.Database == "" {
			return fmt.Errorf("mongodb database is required for the gridfs backend")
		}
	case "s3":
		if c.ObjectStore.S3.Region == "" {
			return fmt.Errorf("s3 region is required for the s3 backend")
		}
	default:
		return fmt.Errorf("invalid objectstore backend: %q (must be gridfs or s3)", c.ObjectStore.Backend)
	}

	if c.ObjectStore.Bucket == "" {
		return fmt.Errorf("objectstore bucket is required")
	}

	return nil
}

// ValidateAPIConfig checks the configuration needed by the API service
func (c *Config) ValidateAPIConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if err := c.validateLedger(); err != nil {
		return err
	}

	if err := c.validateObjectStore(); err != nil {
		return err
	}

	return c.validateBroker()
}

// ValidateWorkerConfig checks the configuration needed by the worker service
func (c *Config) ValidateWorkerConfig() error {
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be greater than 0")
	}

	if c.Worker.MaxRetries <= 0 {
		return fmt.Errorf("worker max_retries must be greater than 0")
	}

	if c.Worker.ConversionTimeout <= 0 {
		return fmt.Errorf("worker conversion_timeout must be greater than 0")
	}

	if c.Worker.Quality != "low" && c.Worker.Quality != "medium" && c.Worker.Quality != "high" {
		return fmt.Errorf("invalid worker quality: %q (must be low, medium or high)", c.Worker.Quality)
	}

	if c.Worker.ShutdownTimeout <= 0 {
		return fmt.Errorf("worker shutdown_timeout must be greater than 0")
	}

	if err := c.validateLedger(); err != nil {
		return err
	}

	if err := c.validateObjectStore(); err != nil {
		return err
	}

	return c.validateBroker()
}

// ValidateNotifierConfig checks the configuration needed by the notifier service
func (c *Config) ValidateNotifierConfig() error {
	if c.Notifier.MaxAttempts <= 0 {
		return fmt.Errorf("notifier max_attempts must be greater than 0")
	}

	if c.Notifier.SMTP.Enabled {
		if c.Notifier.SMTP.Host == "" {
			return fmt.Errorf("smtp host is required when smtp is enabled")
		}
		if c.Notifier.SMTP.Port < MinPort || c.Notifier.SMTP.Port > MaxPort {
			return fmt.Errorf("invalid smtp port: %d (must be between %d and %d)", c.Notifier.SMTP.Port, MinPort, MaxPort)
		}
		if c.Notifier.SMTP.From == "" {
			return fmt.Errorf("smtp from address is required when smtp is enabled")
		}
	}

	if err := c.validateLedger(); err != nil {
		return err
	}

	return c.validateBroker()
}
