// Package config provides configuration management for corpusctl using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort              = 8080
	defaultServerTimeout           = 30 * time.Second
	defaultShutdownTimeout         = 10 * time.Second
	defaultMaxOpenConns            = 25
	defaultMaxIdleConns            = 10
	defaultConnMaxIdleTime         = 30 * time.Minute
	defaultStageTimeoutSeconds     = 3600
	defaultIndexingFailureRatio    = 0.05
	defaultIngestConcurrency       = 8
	defaultIngestHTTPTimeout       = 60 * time.Second
	defaultIngestRetryAttempts     = 3
	defaultIngestRetryDelay        = 5 * time.Second
	defaultQuotaBurst              = 10
	defaultQuotaRefillPerSecond    = 1.0
	defaultVectorUpsertBatch       = 256
	defaultEmbeddingBatchSize      = 64
	defaultEmbeddingTimeout        = 60 * time.Second
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Blob      BlobConfig      `mapstructure:"blob"`
	Vector    VectorConfig    `mapstructure:"vector"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Quota     QuotaConfig     `mapstructure:"quota"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// CatalogConfig holds catalog store (C1) connection configuration.
type CatalogConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// BlobConfig holds blob store gateway (C2) configuration.
type BlobConfig struct {
	BaseDir   string `mapstructure:"base_dir"` // local sandbox root backing the bucketed namespace
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	// PresignTTL is how long presigned content URLs remain valid.
	PresignTTL time.Duration `mapstructure:"presign_ttl"`
	// PresignSecret signs presigned URL tokens (HMAC-SHA256).
	PresignSecret string `mapstructure:"presign_secret"`
}

// VectorConfig holds the vector store client configuration.
type VectorConfig struct {
	Endpoint     string `mapstructure:"endpoint"`
	APIKey       string `mapstructure:"api_key"`
	UpsertBatch  int    `mapstructure:"upsert_batch"`
	UseTLS       bool   `mapstructure:"use_tls"`
}

// EmbeddingConfig holds embedding provider configuration.
type EmbeddingConfig struct {
	Endpoint  string        `mapstructure:"endpoint"`
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model"`
	BatchSize int           `mapstructure:"batch_size"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// IngestConfig holds source ingestion configuration (C3).
type IngestConfig struct {
	ConcurrencyPerSource int           `mapstructure:"concurrency_per_source"`
	HTTPTimeout          time.Duration `mapstructure:"http_timeout"`
	RetryAttempts        int           `mapstructure:"retry_attempts"`
	RetryDelay           time.Duration `mapstructure:"retry_delay"`
}

// PipelineConfig holds pipeline orchestrator (C4) configuration.
type PipelineConfig struct {
	Workers                    int           `mapstructure:"workers"`
	StageTimeoutSeconds        int           `mapstructure:"stage_timeout_seconds"`
	EnableGCHints              bool          `mapstructure:"enable_gc_hints"`
	IndexingFailureRatioThresh float64       `mapstructure:"indexing_failure_ratio_threshold"`
	EventBusURL                string        `mapstructure:"eventbus_url"`
	PollInterval               time.Duration `mapstructure:"poll_interval"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// AuthConfig holds bearer-token verification configuration.
type AuthConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	PublicKeyPEM  string `mapstructure:"public_key_pem"`
	WorkspaceClaim string `mapstructure:"workspace_claim"`
}

// QuotaConfig holds per-workspace rate-limit configuration for ingest and
// trigger_run entry points.
type QuotaConfig struct {
	BurstSize       int     `mapstructure:"burst_size"`
	RefillPerSecond float64 `mapstructure:"refill_per_second"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with CORPUSCTL_ and use underscores for nesting.
// Example: CORPUSCTL_SERVER_PORT=8080.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/corpusctl")
		v.AddConfigPath("$HOME/.corpusctl")
	}

	v.SetEnvPrefix("CORPUSCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if err := rejectUnknownKeys(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// recognizedTopLevelKeys is the closed set of sections accepted by Load,
// per spec.md §6's "Configuration keys (recognized)" table generalized to
// the full sub-struct set. Unknown top-level sections are rejected rather
// than silently ignored.
var recognizedTopLevelKeys = map[string]bool{
	"server": true, "catalog": true, "blob": true, "vector": true,
	"embedding": true, "ingest": true, "pipeline": true, "logging": true,
	"auth": true, "quota": true,
}

func rejectUnknownKeys(v *viper.Viper) error {
	for _, key := range v.AllKeys() {
		top := strings.SplitN(key, ".", 2)[0]
		if !recognizedTopLevelKeys[top] {
			return fmt.Errorf("unrecognized configuration key: %q", key)
		}
	}
	return nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file to ensure defaults are in place.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.cors_origins", []string{"*"})

	// Catalog defaults
	v.SetDefault("catalog.driver", "sqlite")
	v.SetDefault("catalog.dsn", "corpusctl.db")
	v.SetDefault("catalog.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("catalog.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("catalog.conn_max_lifetime", time.Hour)
	v.SetDefault("catalog.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("catalog.log_level", "warn")

	// Blob defaults
	v.SetDefault("blob.base_dir", "./data/blob")
	v.SetDefault("blob.presign_ttl", 15*time.Minute)

	// Vector defaults
	v.SetDefault("vector.upsert_batch", defaultVectorUpsertBatch)
	v.SetDefault("vector.use_tls", false)

	// Embedding defaults
	v.SetDefault("embedding.batch_size", defaultEmbeddingBatchSize)
	v.SetDefault("embedding.timeout", defaultEmbeddingTimeout)

	// Ingest defaults
	v.SetDefault("ingest.concurrency_per_source", defaultIngestConcurrency)
	v.SetDefault("ingest.http_timeout", defaultIngestHTTPTimeout)
	v.SetDefault("ingest.retry_attempts", defaultIngestRetryAttempts)
	v.SetDefault("ingest.retry_delay", defaultIngestRetryDelay)

	// Pipeline defaults
	v.SetDefault("pipeline.workers", runtime.NumCPU())
	v.SetDefault("pipeline.stage_timeout_seconds", defaultStageTimeoutSeconds)
	v.SetDefault("pipeline.enable_gc_hints", true)
	v.SetDefault("pipeline.indexing_failure_ratio_threshold", defaultIndexingFailureRatio)
	v.SetDefault("pipeline.poll_interval", 15*time.Second)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Auth defaults
	v.SetDefault("auth.enabled", true)
	v.SetDefault("auth.workspace_claim", "workspace_id")

	// Quota defaults
	v.SetDefault("quota.burst_size", defaultQuotaBurst)
	v.SetDefault("quota.refill_per_second", defaultQuotaRefillPerSecond)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Catalog.Driver] {
		return fmt.Errorf("catalog.driver must be one of: sqlite, postgres, mysql")
	}
	if c.Catalog.DSN == "" {
		return fmt.Errorf("catalog.dsn is required")
	}

	if c.Blob.BaseDir == "" {
		return fmt.Errorf("blob.base_dir is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Ingest.ConcurrencyPerSource < 1 {
		return fmt.Errorf("ingest.concurrency_per_source must be at least 1")
	}
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline.workers must be at least 1")
	}
	if c.Pipeline.StageTimeoutSeconds < 1 {
		return fmt.Errorf("pipeline.stage_timeout_seconds must be at least 1")
	}
	if c.Pipeline.IndexingFailureRatioThresh < 0 || c.Pipeline.IndexingFailureRatioThresh > 1 {
		return fmt.Errorf("pipeline.indexing_failure_ratio_threshold must be between 0 and 1")
	}

	if c.Auth.Enabled && c.Auth.PublicKeyPEM == "" {
		return fmt.Errorf("auth.public_key_pem is required when auth.enabled is true")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StageTimeout returns the per-stage deadline as a time.Duration.
func (c *PipelineConfig) StageTimeout() time.Duration {
	return time.Duration(c.StageTimeoutSeconds) * time.Second
}
