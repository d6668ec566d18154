package config

import "time"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "mnemo",
			Version:     "dev",
			Environment: "development",
			Debug:       false,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 5077,
			HTTP: HTTPConfig{
				ReadTimeout:    30 * time.Second,
				WriteTimeout:   30 * time.Second,
				IdleTimeout:    120 * time.Second,
				MaxHeaderBytes: 1 << 20, // 1MB
			},
			CORS: CORSConfig{
				Enabled:        false,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
				MaxAge:         300,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Redis: RedisConfig{
			Address:       "localhost:6379",
			DB:            0,
			PoolSize:      5,
			DialTimeout:   5 * time.Second,
			ReadTimeout:   30 * time.Second,
			ProbeInterval: 300 * time.Second,
		},
		Database: DatabaseConfig{
			Enabled:         false,
			PoolSize:        5,
			MaxOverflow:     10,
			PoolTimeout:     30 * time.Second,
			RecycleAge:      1800 * time.Second,
			RecycleInterval: 3600 * time.Second,
			ProbeInterval:   300 * time.Second,
			PrePing:         true,
		},
		Vector: VectorConfig{
			Path:            "",
			MaxWorkers:      10,
			ChatChunkSize:   400,
			SocialChunkSize: 800,
			Embedding: EmbeddingConfig{
				Model: "text-embedding-3-small",
			},
		},
		Memory: MemoryConfig{
			MaxRecords:     14,
			RecallK:        3,
			ScoreThreshold: 0.6,
		},
		Consolidation: ConsolidationConfig{
			Model:          "gpt-4o-mini",
			MaxAttempts:    3,
			AttemptTimeout: 30 * time.Second,
			MaxTokens:      4000,
			MaxEntries:     15,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9091,
			Path:    "/metrics",
		},
	}
}
