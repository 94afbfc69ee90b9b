package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/rentora-labs/atlas/internal/analytics"
	"github.com/rentora-labs/atlas/internal/config"
	"github.com/rentora-labs/atlas/internal/marketdata"
	"github.com/rentora-labs/atlas/internal/orchestrator"
	"github.com/rentora-labs/atlas/internal/provider"
	"github.com/rentora-labs/atlas/internal/ratelimit"
	"github.com/rentora-labs/atlas/internal/server"
	"github.com/rentora-labs/atlas/internal/telemetry"
)

var version = "dev"

func main() {
	configDir := flag.String("config", "configs", "path to configuration directory")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	loader := config.NewLoader(*configDir, logger)
	if err := loader.Load(); err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	if err := loader.Watch(); err != nil {
		logger.Warn("failed to start config watcher", "error", err)
	}

	cfg := loader.Config()

	// Connect to PostgreSQL (market dataset). Optional: without it the
	// intelligence endpoints report unavailable; single-model queries
	// keep working.
	var store marketdata.Store
	if cfg.Database.Host != "" {
		dbPool, err := pgxpool.New(context.Background(), cfg.Database.DSN())
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer dbPool.Close()

		if err := dbPool.Ping(context.Background()); err != nil {
			logger.Warn("database not reachable (market data sub-analyses will fail open)", "error", err)
		} else {
			logger.Info("database connected")
		}
		store = marketdata.NewPGStore(dbPool)
	}

	// Connect to Redis (dataset read-through + daily savings counters)
	var rdb *redis.Client
	if len(cfg.Redis.Addresses) > 0 && cfg.Redis.Addresses[0] != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addresses[0],
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis not reachable (dataset cache disabled)", "error", err)
			rdb = nil
		} else {
			logger.Info("redis connected")
		}
	}

	if store != nil && rdb != nil {
		store = marketdata.NewCachedStore(store, rdb, cfg.Cache.DatasetTTLs)
	}

	// Build provider registry
	registry := provider.BuildFromConfig(loader.Providers())
	loader.OnReload(func() {
		registry.Replace(provider.BuildFromConfig(loader.Providers()))
		logger.Info("provider registry reloaded")
	})

	metrics := telemetry.NewMetrics()
	tracker := analytics.NewTracker(rdb)
	svc := orchestrator.New(loader.Config, registry, store, tracker, metrics, logger)
	handler := server.NewHandler(svc, logger)

	// Router setup
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(server.RequestID)
	r.Use(ratelimit.Middleware(ratelimit.NewLimiter(rdb), cfg.Server.RPMLimit))

	r.Get("/atlas/v1/health", server.Health(version))
	r.Post("/v1/query", handler.Query)
	r.Post("/v1/intelligence", handler.Intelligence)
	r.Post("/v1/classify", handler.Classify)
	r.Post("/v1/preload", handler.Preload)
	r.Get("/v1/analytics", handler.Analytics)

	// Metrics listener on its own port
	if cfg.Telemetry.MetricsPort > 0 {
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Telemetry.MetricsPort)
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Info("metrics listener starting", "addr", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("metrics listener failed", "error", err)
			}
		}()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("atlas starting", "addr", addr, "version", version)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	svc.FlushEmbeddings()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("atlas stopped")
}
