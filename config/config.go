// Package config provides configuration management for Mnemo.
package config

import (
	"fmt"
	"time"
)

// Config is the global configuration for Mnemo.
type Config struct {
	// App is the application configuration.
	App AppConfig `mapstructure:"app" validate:"required"`

	// Server is the HTTP server configuration.
	Server ServerConfig `mapstructure:"server" validate:"required"`

	// Log is the logging configuration.
	Log LogConfig `mapstructure:"log" validate:"required"`

	// Redis is the cache store configuration.
	Redis RedisConfig `mapstructure:"redis"`

	// Database is the relational store configuration.
	Database DatabaseConfig `mapstructure:"database"`

	// Vector is the semantic store configuration.
	Vector VectorConfig `mapstructure:"vector"`

	// Memory is the tiered memory configuration.
	Memory MemoryConfig `mapstructure:"memory"`

	// Consolidation is the importance-memory pipeline configuration.
	Consolidation ConsolidationConfig `mapstructure:"consolidation"`

	// Metrics is the observability configuration.
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// AppConfig holds application metadata and settings.
type AppConfig struct {
	// Name is the application name.
	Name string `mapstructure:"name" validate:"required"`

	// Version is the application version.
	Version string `mapstructure:"version"`

	// Environment is the runtime environment (development, staging, production).
	Environment string `mapstructure:"environment" validate:"oneof=development staging production"`

	// Debug enables debug mode with verbose logging.
	Debug bool `mapstructure:"debug"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	// Host is the bind address.
	Host string `mapstructure:"host"`

	// Port is the HTTP API port.
	Port int `mapstructure:"port" validate:"required,min=1,max=65535"`

	// HTTP is the HTTP server configuration.
	HTTP HTTPConfig `mapstructure:"http"`

	// CORS is the CORS configuration.
	CORS CORSConfig `mapstructure:"cors"`
}

// HTTPConfig holds HTTP server timeouts.
type HTTPConfig struct {
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// IdleTimeout is the maximum time to wait for the next request.
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`

	// MaxHeaderBytes limits request header size.
	MaxHeaderBytes int `mapstructure:"max_header_bytes"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`

	// Format is the log output format (json, text).
	Format string `mapstructure:"format" validate:"oneof=json text"`

	// Output is the log destination (stdout, stderr, or a file path).
	Output string `mapstructure:"output"`
}

// RedisConfig holds cache store settings.
type RedisConfig struct {
	// Address is the Redis server address (host:port).
	Address string `mapstructure:"address" validate:"required"`

	// Password is the Redis password.
	Password string `mapstructure:"password"`

	// DB is the Redis database number.
	DB int `mapstructure:"db" validate:"min=0"`

	// PoolSize is the maximum number of socket connections.
	PoolSize int `mapstructure:"pool_size" validate:"min=1"`

	// DialTimeout bounds connection establishment.
	DialTimeout time.Duration `mapstructure:"dial_timeout"`

	// ReadTimeout bounds individual command round trips.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	// ProbeInterval is the period of the background health probe.
	ProbeInterval time.Duration `mapstructure:"probe_interval"`
}

// DatabaseConfig holds relational store settings.
type DatabaseConfig struct {
	// Enabled controls whether the relational pool is constructed at all.
	Enabled bool `mapstructure:"enabled"`

	// URL is the database connection string.
	URL string `mapstructure:"url"`

	// PoolSize is the number of connections kept open.
	PoolSize int `mapstructure:"pool_size" validate:"min=1"`

	// MaxOverflow is the number of extra connections allowed beyond PoolSize.
	MaxOverflow int `mapstructure:"max_overflow" validate:"min=0"`

	// PoolTimeout bounds waiting for a connection from the pool.
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`

	// RecycleAge is the maximum lifetime of a single connection.
	RecycleAge time.Duration `mapstructure:"recycle_age"`

	// RecycleInterval is the period of the background pool rebuild.
	RecycleInterval time.Duration `mapstructure:"recycle_interval"`

	// ProbeInterval is the period of the background health probe.
	ProbeInterval time.Duration `mapstructure:"probe_interval"`

	// PrePing validates a checked-out connection before handing it to the caller.
	PrePing bool `mapstructure:"pre_ping"`
}

// VectorConfig holds semantic store settings.
type VectorConfig struct {
	// Path is the on-disk location of the vector store. Empty keeps
	// collections purely in memory.
	Path string `mapstructure:"path"`

	// MaxWorkers bounds the worker pool that serializes blocking
	// vector-store calls off the main scheduler.
	MaxWorkers int `mapstructure:"max_workers" validate:"min=1,max=256"`

	// ChatChunkSize is the character chunk size for chat transcripts.
	ChatChunkSize int `mapstructure:"chat_chunk_size" validate:"min=1"`

	// SocialChunkSize is the character chunk size for social-fact documents.
	SocialChunkSize int `mapstructure:"social_chunk_size" validate:"min=1"`

	// Embedding configures the embedding provider.
	Embedding EmbeddingConfig `mapstructure:"embedding"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// APIKey authenticates against the embedding provider.
	APIKey string `mapstructure:"api_key"`

	// Model is the embedding model name.
	Model string `mapstructure:"model"`

	// BaseURL overrides the provider endpoint (proxies, compatible APIs).
	BaseURL string `mapstructure:"base_url"`
}

// MemoryConfig holds tiered memory settings.
type MemoryConfig struct {
	// MaxRecords caps the recent-turn window per conversation.
	MaxRecords int `mapstructure:"max_records" validate:"min=1"`

	// RecallK is the default number of long-term recall candidates.
	RecallK int `mapstructure:"recall_k" validate:"min=1"`

	// ScoreThreshold is the default similarity threshold for recall.
	ScoreThreshold float64 `mapstructure:"score_threshold" validate:"gte=0,lte=1"`
}

// ConsolidationConfig holds reasoning-model settings for the
// importance-memory pipeline.
type ConsolidationConfig struct {
	// APIKey authenticates against the reasoning model provider.
	APIKey string `mapstructure:"api_key"`

	// Model is the reasoning model name.
	Model string `mapstructure:"model"`

	// BaseURL overrides the provider endpoint.
	BaseURL string `mapstructure:"base_url"`

	// MaxAttempts bounds reasoning-model retries per run.
	MaxAttempts int `mapstructure:"max_attempts" validate:"min=1"`

	// AttemptTimeout bounds a single reasoning-model call.
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`

	// MaxTokens caps the model response size.
	MaxTokens int `mapstructure:"max_tokens" validate:"min=1"`

	// MaxEntries caps the importance-memory list length.
	MaxEntries int `mapstructure:"max_entries" validate:"min=1"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	// Enabled turns the metrics endpoint on.
	Enabled bool `mapstructure:"enabled"`

	// Port is the metrics server port.
	Port int `mapstructure:"port" validate:"min=0,max=65535"`

	// Path is the metrics endpoint path.
	Path string `mapstructure:"path"`
}

// String returns a loggable single-line summary without secrets.
func (c *Config) String() string {
	return fmt.Sprintf(
		"app=%s env=%s server=%s:%d redis=%s database_enabled=%t vector_workers=%d max_records=%d",
		c.App.Name, c.App.Environment, c.Server.Host, c.Server.Port,
		c.Redis.Address, c.Database.Enabled, c.Vector.MaxWorkers, c.Memory.MaxRecords,
	)
}
