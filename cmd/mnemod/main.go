package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mnemo/mnemo/config"
	"github.com/mnemo/mnemo/pkg/api"
	"github.com/mnemo/mnemo/pkg/api/handlers"
	"github.com/mnemo/mnemo/pkg/cache"
	"github.com/mnemo/mnemo/pkg/consolidate"
	"github.com/mnemo/mnemo/pkg/logger"
	"github.com/mnemo/mnemo/pkg/memstore"
	"github.com/mnemo/mnemo/pkg/metrics"
	"github.com/mnemo/mnemo/pkg/relational"
	"github.com/mnemo/mnemo/pkg/vector"
	"github.com/mnemo/mnemo/pkg/vector/chromem"
	"github.com/mnemo/mnemo/pkg/version"
)

var (
	configPath  = flag.String("config", "", "Path to configuration file")
	versionFlag = flag.Bool("version", false, "Print version information")
	helpFlag    = flag.Bool("help", false, "Print help information")

	// CLI overrides
	appName    = flag.String("app-name", "", "Override app name")
	serverPort = flag.Int("port", 0, "Override server port")
	logLevel   = flag.String("log-level", "", "Override log level")
	debugMode  = flag.Bool("debug", false, "Enable debug mode")
)

func main() {
	flag.Parse()

	if *helpFlag {
		printHelp()
		os.Exit(0)
	}
	if *versionFlag {
		printVersion()
		os.Exit(0)
	}

	overrides := buildOverrides()

	cfg, err := config.Load(*configPath, overrides)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration:\n%s\n", err)
		os.Exit(1)
	}

	logCfg := &logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}
	if cfg.App.Debug || *debugMode {
		logCfg.Level = logger.DebugLevel
	}
	log := logger.New(logCfg)
	logger.SetGlobal(log)

	log.Info("Starting mnemod",
		"version", version.Version,
		"buildTime", version.BuildTime,
		"gitCommit", version.GitCommit,
		"app", cfg.App.Name,
		"environment", cfg.App.Environment,
	)
	log.Debug("Configuration loaded", "config", cfg.String())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Hot-reload the log level when the config file changes
	if *configPath != "" {
		watcher, err := config.NewWatcher(*configPath, config.NewLoader())
		if err != nil {
			log.Warn("Config watcher unavailable", "error", err)
		} else {
			watcher.OnChange(func(next *config.Config) {
				log.SetLevel(logger.ParseLevel(next.Log.Level))
				log.Info("Log level reloaded", "level", next.Log.Level)
			})
			go func() {
				if err := watcher.Watch(ctx); err != nil && ctx.Err() == nil {
					log.Warn("Config watcher stopped", "error", err)
				}
			}()
			defer watcher.Stop()
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Metrics manager and server
	metricsCfg := metrics.DefaultConfig()
	metricsCfg.Enabled = cfg.Metrics.Enabled
	metricsCfg.Port = cfg.Metrics.Port
	metricsCfg.Path = cfg.Metrics.Path
	metricsManager := metrics.NewManager(metricsCfg)
	if metricsManager.Enabled() {
		go func() {
			log.Info("Starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
			if err := metricsManager.StartServer(ctx, cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
				log.Error("Metrics server error", "error", err)
			}
		}()
	}

	// Cache tier: recent windows, importance summaries, collection flags
	cacheManager := cache.NewManager(cfg.Redis, log, cache.WithMetrics(metricsManager))
	defer func() {
		if err := cacheManager.Close(); err != nil {
			log.Error("Error closing cache manager", "error", err)
		}
	}()
	cacheManager.StartHealthProbe(ctx)

	// Relational tier, only when configured
	var dbManager *relational.Manager
	if cfg.Database.Enabled {
		dbManager = relational.NewManager(cfg.Database, log, relational.WithMetrics(metricsManager))
		warmCtx, warmCancel := context.WithTimeout(ctx, time.Minute)
		err := dbManager.WarmUp(warmCtx)
		warmCancel()
		if err != nil {
			log.Error("Failed to warm up database pool", "error", err)
			os.Exit(1)
		}
		dbManager.StartHealthProbe(ctx)
		dbManager.StartRecycler(ctx)
		defer func() {
			if err := dbManager.Close(); err != nil {
				log.Error("Error closing database manager", "error", err)
			}
		}()
		log.Info("Database pool ready")
	} else {
		log.Info("Database is disabled, skipping relational tier")
	}

	// Semantic tier
	backend, err := chromem.NewBackend(cfg.Vector)
	if err != nil {
		log.Error("Failed to open vector store", "error", err)
		os.Exit(1)
	}
	vectorManager := vector.NewManager(cfg.Vector, backend, cacheManager, log, vector.WithMetrics(metricsManager))
	defer vectorManager.Close()
	log.Info("Vector store ready", "path", cfg.Vector.Path, "workers", cfg.Vector.MaxWorkers)

	// Tiered memory store
	store := memstore.NewRemoteStore(cacheManager, vectorManager, cfg.Memory, log)
	defer store.Close()

	// Importance-memory pipeline
	reasoner := consolidate.NewOpenAIReasoner(cfg.Consolidation)
	pipeline := consolidate.NewPipeline(store, vectorManager, reasoner, cfg.Consolidation, cfg.Memory, log)

	// HTTP API
	memoryHandler := handlers.NewMemoryHandler(store, pipeline, cfg.Memory, log)
	memoryHandler.SetMetrics(metricsManager)
	socialHandler := handlers.NewSocialHandler(vectorManager, cfg.Memory, log)
	healthHandler := handlers.NewHealthHandler(version.Version)
	healthHandler.AddCheck("redis", cacheManager.HealthCheck)
	if dbManager != nil {
		healthHandler.AddCheck("database", dbManager.HealthCheck)
	}

	apiHandlers := &api.Handlers{
		Memory:  memoryHandler,
		Social:  socialHandler,
		Health:  healthHandler,
		Metrics: metricsManager,
	}
	httpServer := api.NewHTTPServer(cfg, log, apiHandlers)

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))
		if err := httpServer.Start(); err != nil {
			serverErrChan <- err
		}
	}()

	log.Info("mnemod is running",
		"http_port", cfg.Server.Port,
		"metrics_port", cfg.Metrics.Port,
	)
	log.Info("Press Ctrl+C to stop")

	select {
	case sig := <-sigChan:
		log.Info("Received shutdown signal", "signal", sig)
	case err := <-serverErrChan:
		log.Error("HTTP server error", "error", err)
	case <-ctx.Done():
		log.Info("Context cancelled")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Info("Shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down HTTP server", "error", err)
	}

	log.Info("mnemod stopped gracefully")
}

func buildOverrides() map[string]interface{} {
	overrides := make(map[string]interface{})

	if *appName != "" {
		overrides["app.name"] = *appName
	}
	if *serverPort != 0 {
		overrides["server.port"] = *serverPort
	}
	if *logLevel != "" {
		overrides["log.level"] = *logLevel
	}
	if *debugMode {
		overrides["app.debug"] = true
	}

	return overrides
}

func printVersion() {
	fmt.Printf("mnemod - Tiered Conversational Memory Service\n")
	fmt.Printf("Version:    %s\n", version.Version)
	fmt.Printf("Build Time: %s\n", version.BuildTime)
	fmt.Printf("Git Commit: %s\n", version.GitCommit)
	fmt.Printf("Go Version: %s\n", version.GoVersion)
}

func printHelp() {
	fmt.Printf("mnemod - Tiered conversational memory service\n\n")
	fmt.Printf("Usage: mnemod [options]\n\n")
	fmt.Printf("Options:\n")
	flag.PrintDefaults()
	fmt.Printf("\nExamples:\n")
	fmt.Printf("  mnemod                                    # Run with default config\n")
	fmt.Printf("  mnemod -config config.yaml                # Use specific config file\n")
	fmt.Printf("  mnemod -port 5078 -log-level debug        # Override specific options\n")
	fmt.Printf("  mnemod -version                           # Print version info\n")
}
