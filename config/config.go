// Package config loads lakesink settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/miladsoleymani/lakesink/broker"
	"github.com/miladsoleymani/lakesink/sink/adls"
)

// Storage backends.
const (
	BackendADLS    = "adls"
	BackendLocalFS = "localfs"
	BackendMemory  = "memory"
)

// BrokerConfig holds the broker session settings. The SOLACE_ names are
// kept for compatibility with existing deployments.
type BrokerConfig struct {
	Driver            string        `env:"LAKESINK_BROKER"           envDefault:"rabbitmq"`
	Hosts             []string      `env:"SOLACE_HOST"               envDefault:"localhost" envSeparator:","`
	VPN               string        `env:"SOLACE_VPN"                envDefault:"default"`
	Username          string        `env:"SOLACE_USERNAME"           envDefault:"default"`
	Password          string        `env:"SOLACE_PASSWORD"           envDefault:"default"`
	ReconnectRetries  int           `env:"SOLACE_RECONNECT_RETRIES"  envDefault:"20"`
	ReconnectInterval time.Duration `env:"SOLACE_RECONNECT_INTERVAL" envDefault:"3s"`

	KafkaTopics      []string `env:"KAFKA_TOPICS"       envSeparator:","`
	KafkaSASLEnabled bool     `env:"KAFKA_SASL_ENABLED" envDefault:"false"`
	NATSStream       string   `env:"NATS_STREAM"`
}

// StorageConfig selects and configures the storage backend.
type StorageConfig struct {
	Backend          string        `env:"STORAGE_BACKEND"            envDefault:"adls"`
	AccountName      string        `env:"AZURE_STORAGE_ACCOUNT_NAME"`
	AccountKey       string        `env:"AZURE_STORAGE_ACCOUNT_KEY"`
	Endpoint         string        `env:"ADLS_ENDPOINT"`
	FileSystem       string        `env:"ADLS_FILESYSTEM"            envDefault:"sample_file_system"`
	FileName         string        `env:"ADLS_FILE_NAME"             envDefault:"sample.txt"`
	OperationTimeout time.Duration `env:"ADLS_OPERATION_TIMEOUT"     envDefault:"0s"`
	LocalRoot        string        `env:"LOCALFS_ROOT"               envDefault:"./lake"`
}

// Config is the full process configuration.
type Config struct {
	Broker  BrokerConfig
	Storage StorageConfig

	Queue         string        `env:"LAKESINK_QUEUE"          envDefault:"adls"`
	TopicPattern  string        `env:"LAKESINK_TOPIC_PATTERN"  envDefault:"#"`
	ShutdownGrace time.Duration `env:"LAKESINK_SHUTDOWN_GRACE" envDefault:"5s"`
	NackDelay     time.Duration `env:"LAKESINK_NACK_DELAY"     envDefault:"1s"`
	MetricsAddr   string        `env:"METRICS_ADDR"            envDefault:":9090"`
}

// Load reads envFile into the process environment, if given, and then
// parses the environment. Variables already set take precedence over the
// file.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("load env file %q: %w", envFile, err)
		}
	}
	return Parse()
}

// Parse builds a Config from the environment and validates it.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that have no usable default.
func (c Config) Validate() error {
	if c.Queue == "" {
		return fmt.Errorf("LAKESINK_QUEUE must not be empty")
	}
	if c.Broker.ReconnectRetries < 0 {
		return fmt.Errorf("SOLACE_RECONNECT_RETRIES must not be negative, got %d", c.Broker.ReconnectRetries)
	}
	switch c.Storage.Backend {
	case BackendADLS:
		if c.Storage.AccountName == "" || c.Storage.AccountKey == "" {
			return fmt.Errorf("AZURE_STORAGE_ACCOUNT_NAME and AZURE_STORAGE_ACCOUNT_KEY are required for the %s backend", BackendADLS)
		}
	case BackendLocalFS, BackendMemory:
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend)
	}
	return nil
}

// Config maps the settings onto a broker.Config for the configured driver.
func (b BrokerConfig) Config() broker.Config {
	cfg := broker.Config{
		Brokers:  b.Hosts,
		VPN:      b.VPN,
		Username: b.Username,
		Password: b.Password,
		Topics:   b.KafkaTopics,
		Reconnect: broker.RetryPolicy{
			Attempts: b.ReconnectRetries,
			Interval: b.ReconnectInterval,
		},
		Extra: map[string]any{},
	}
	if b.KafkaSASLEnabled {
		cfg.Extra["sasl"] = true
	}
	if b.NATSStream != "" {
		cfg.Extra["stream"] = b.NATSStream
	}
	return cfg
}

// ADLS returns the Data Lake store settings.
func (s StorageConfig) ADLS() adls.Config {
	return adls.Config{
		AccountName: s.AccountName,
		AccountKey:  s.AccountKey,
		FileSystem:  s.FileSystem,
		Endpoint:    s.Endpoint,
	}
}
