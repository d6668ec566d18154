package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "MNEMO_"
	// Delimiter is the key delimiter for nested config.
	Delimiter = "."
)

// Loader handles configuration loading from various sources.
type Loader struct {
	k *koanf.Koanf
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		k: koanf.New(Delimiter),
	}
}

// Load loads configuration from all sources with the following priority:
// 1. Command line overrides (highest)
// 2. Environment variables
// 3. Configuration files
// 4. Defaults (lowest)
func (l *Loader) Load(configPath string, overrides map[string]interface{}) (*Config, error) {
	if err := l.loadDefaults(); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if err := l.loadFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		l.loadDefaultFiles()
	}

	if err := l.loadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if len(overrides) > 0 {
		if err := l.k.Load(confmap.Provider(overrides, Delimiter), nil); err != nil {
			return nil, fmt.Errorf("failed to apply overrides: %w", err)
		}
	}

	var cfg Config
	if err := l.k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "mapstructure",
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := ValidateWithDetails(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Load is the package-level convenience that loads configuration with a
// fresh loader.
func Load(configPath string, overrides map[string]interface{}) (*Config, error) {
	return NewLoader().Load(configPath, overrides)
}

// loadDefaults loads the default configuration as flat dotted keys so that
// partial overrides from files or env never wipe sibling defaults.
func (l *Loader) loadDefaults() error {
	d := DefaultConfig()
	return l.k.Load(confmap.Provider(map[string]interface{}{
		"app.name":        d.App.Name,
		"app.version":     d.App.Version,
		"app.environment": d.App.Environment,
		"app.debug":       d.App.Debug,

		"server.host":                  d.Server.Host,
		"server.port":                  d.Server.Port,
		"server.http.read_timeout":     d.Server.HTTP.ReadTimeout,
		"server.http.write_timeout":    d.Server.HTTP.WriteTimeout,
		"server.http.idle_timeout":     d.Server.HTTP.IdleTimeout,
		"server.http.max_header_bytes": d.Server.HTTP.MaxHeaderBytes,
		"server.cors.enabled":          d.Server.CORS.Enabled,
		"server.cors.allowed_origins":  d.Server.CORS.AllowedOrigins,
		"server.cors.allowed_methods":  d.Server.CORS.AllowedMethods,
		"server.cors.allowed_headers":  d.Server.CORS.AllowedHeaders,
		"server.cors.max_age":          d.Server.CORS.MaxAge,

		"log.level":  d.Log.Level,
		"log.format": d.Log.Format,
		"log.output": d.Log.Output,

		"redis.address":        d.Redis.Address,
		"redis.db":             d.Redis.DB,
		"redis.pool_size":      d.Redis.PoolSize,
		"redis.dial_timeout":   d.Redis.DialTimeout,
		"redis.read_timeout":   d.Redis.ReadTimeout,
		"redis.probe_interval": d.Redis.ProbeInterval,

		"database.enabled":          d.Database.Enabled,
		"database.pool_size":        d.Database.PoolSize,
		"database.max_overflow":     d.Database.MaxOverflow,
		"database.pool_timeout":     d.Database.PoolTimeout,
		"database.recycle_age":      d.Database.RecycleAge,
		"database.recycle_interval": d.Database.RecycleInterval,
		"database.probe_interval":   d.Database.ProbeInterval,
		"database.pre_ping":         d.Database.PrePing,

		"vector.path":              d.Vector.Path,
		"vector.max_workers":       d.Vector.MaxWorkers,
		"vector.chat_chunk_size":   d.Vector.ChatChunkSize,
		"vector.social_chunk_size": d.Vector.SocialChunkSize,
		"vector.embedding.model":   d.Vector.Embedding.Model,

		"memory.max_records":     d.Memory.MaxRecords,
		"memory.recall_k":        d.Memory.RecallK,
		"memory.score_threshold": d.Memory.ScoreThreshold,

		"consolidation.model":           d.Consolidation.Model,
		"consolidation.max_attempts":    d.Consolidation.MaxAttempts,
		"consolidation.attempt_timeout": d.Consolidation.AttemptTimeout,
		"consolidation.max_tokens":      d.Consolidation.MaxTokens,
		"consolidation.max_entries":     d.Consolidation.MaxEntries,

		"metrics.enabled": d.Metrics.Enabled,
		"metrics.port":    d.Metrics.Port,
		"metrics.path":    d.Metrics.Path,
	}, Delimiter), nil)
}

// loadFile loads configuration from a file.
func (l *Loader) loadFile(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser

	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", path)
	}

	return l.k.Load(file.Provider(path), parser)
}

// loadDefaultFiles tries to load config from standard locations.
func (l *Loader) loadDefaultFiles() {
	candidates := []string{
		"config.yaml",
		"config.yml",
		"config.json",
		"configs/config.yaml",
		"/etc/mnemo/config.yaml",
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			_ = l.loadFile(path) // Ignore error, try next
			return
		}
	}
}

// loadEnv loads configuration from environment variables. Nested keys use a
// double underscore: MNEMO_SERVER__PORT -> server.port, MNEMO_LOG__LEVEL -> log.level.
func (l *Loader) loadEnv() error {
	return l.k.Load(env.Provider(EnvPrefix, Delimiter, func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", Delimiter)
	}), nil)
}

// Get returns a configuration value by key.
func (l *Loader) Get(key string) interface{} {
	return l.k.Get(key)
}

// Set sets a configuration value.
func (l *Loader) Set(key string, value interface{}) error {
	return l.k.Set(key, value)
}
