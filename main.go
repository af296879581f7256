package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"sjsage522/pricemonitor/config"
	"sjsage522/pricemonitor/helpers"
	"sjsage522/pricemonitor/internal"
	"sjsage522/pricemonitor/internal/api"
	"sjsage522/pricemonitor/internal/extractor"
	"sjsage522/pricemonitor/internal/fetcher"
	"sjsage522/pricemonitor/internal/monitor"
	"sjsage522/pricemonitor/internal/monitoring"
	"sjsage522/pricemonitor/logger"
	"sjsage522/pricemonitor/services/cache"
	"sjsage522/pricemonitor/services/notifier"
	"sjsage522/pricemonitor/services/proxy"
	"sjsage522/pricemonitor/services/store"
	"sjsage522/pricemonitor/services/worker"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if err := cfg.LoadItems(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load monitored items")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Dur("check_interval", cfg.CheckInterval).
		Int("configured_items", len(cfg.Items)).
		Bool("run_once", cfg.RunOnce).
		Msg("Starting application")

	// List configured items outside production only
	if !cfg.IsProduction() {
		for _, item := range cfg.Items {
			log.Debug().
				Str("url", item.URL).
				Str("platform", item.Platform.String()).
				Float64("desired_price", item.DesiredPrice).
				Msg("Configured item")
		}
	}

	// Set up context with cancellation on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize services
	deps, err := initializeServices(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer deps.Cleanup()

	registry := extractor.DefaultRegistry()
	log.Info().Interface("platforms", registry.Platforms()).Msg("Registered extractors")

	f := fetcher.New(fetcher.Options{
		Timeout:          cfg.RequestTimeout,
		DefaultUserAgent: cfg.UserAgent,
		Cache:            deps.Cache,
		BlockTime:        cfg.RateLimitBlock,
		Proxy:            deps.Proxy,
		Metrics:          deps.Metrics,
	})
	policy := f.Policy()
	log.Info().
		Int("max_attempts", policy.Attempts(cfg.MaxRetries)).
		Dur("base_delay", policy.BaseDelay).
		Dur("jitter_min", policy.JitterMin).
		Dur("jitter_max", policy.JitterMax).
		Msg("Fetcher configured")

	m := monitor.New(monitor.Options{
		Fetcher:        f,
		Registry:       registry,
		Store:          deps.Store,
		Notifier:       deps.Notifier,
		Failures:       deps.Failures,
		Metrics:        deps.Metrics,
		MaxRetries:     cfg.MaxRetries,
		MaxConcurrency: cfg.MaxConcurrency,
	})

	w := worker.NewWorker(m, deps.Store, cfg.Items, deps.Notifier, deps.Failures, cfg.CheckInterval)

	if cfg.RunOnce {
		results := w.RunOnce(ctx)
		failed := 0
		for _, res := range results {
			if !res.OK() {
				failed++
			}
		}
		log.Info().Int("checked", len(results)).Int("failed", failed).Msg("Single pass finished")
		return
	}

	// Start the admin API
	server := api.NewServer(cfg.HTTPAddr, m, deps.Store, deps.Registry, deps.HealthChecks())
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Admin API exited with error")
		}
	}()

	// Start worker in a goroutine
	workerDone := make(chan error, 1)
	go func() {
		log.Info().Msg("Starting price monitor worker")
		workerDone <- w.Start(ctx)
	}()

	// Wait for shutdown signal or worker error
	select {
	case <-ctx.Done():
		log.Info().Msg("Received shutdown signal")
	case err := <-workerDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Worker exited with error")
		} else {
			log.Info().Msg("Worker exited normally")
		}
	}

	// Graceful shutdown
	log.Info().Msg("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Admin API shutdown failed")
	}
}

// initializeServices initializes all required services
func initializeServices(ctx context.Context, cfg *config.Config) (*internal.Dependencies, error) {
	deps := &internal.Dependencies{
		Failures: helpers.NewLogger(cfg.ErrorLogFile),
	}

	// Metrics
	deps.Registry = prometheus.NewRegistry()
	deps.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	deps.Metrics = monitoring.NewMetrics(deps.Registry)

	// Cache service for rate limit blocks
	if cfg.MemcacheAddr != "" {
		memcache := cache.NewMemcacheService(cfg.MemcacheAddr)
		if err := memcache.Ping(); err != nil {
			return nil, fmt.Errorf("failed to connect to memcache at %s: %w", cfg.MemcacheAddr, err)
		}
		deps.Cache = memcache
		logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
	} else {
		deps.Cache = cache.NewMemoryCache()
	}

	// Record store
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		deps.Store = pg
		logger.Info("Connected to Postgres")
	} else {
		sqlite, err := store.NewSQLiteStore(cfg.DatabaseFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		deps.Store = sqlite
		logger.Info("Opened SQLite store at %s", cfg.DatabaseFile)
	}

	// Alert delivery
	if cfg.RedisAddr != "" {
		redisNotifier := notifier.NewRedisNotifier(
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.RedisStream,
			cfg.RedisStreamCount,
			cfg.RedisStreamMaxLength,
		)
		if err := redisNotifier.Ping(ctx); err != nil {
			deps.Cleanup()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		deps.Notifier = redisNotifier
		logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
			cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
	} else {
		deps.Notifier = notifier.NewLogNotifier()
	}

	// Outbound proxies
	if proxies := proxy.ParseList(cfg.ProxyURLs); len(proxies) > 0 {
		pm, err := proxy.NewRoundRobinManager(proxies, 3)
		if err != nil {
			deps.Cleanup()
			return nil, fmt.Errorf("failed to configure proxies: %w", err)
		}
		deps.Proxy = pm
		logger.Info("Using %d outbound proxies", len(proxies))
	}

	return deps, nil
}
