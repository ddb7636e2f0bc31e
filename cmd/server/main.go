/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the VIP engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load config from .env / environment (config.Load)
  2. Install the slog logger and the OpenTelemetry tracer provider
  3. Initialize SQLite store
  4. Seed the store VIP config from VIP_STORE_CONFIG_FILE, if set
  5. Create the leaderboard cache (memory or redis)
  6. Create API handler, router and (optional) refresh scheduler
  7. Start server with graceful shutdown

ENVIRONMENT:
  VIP_PORT, VIP_DB_PATH, VIP_LOG_LEVEL, VIP_LOG_FORMAT,
  VIP_STORE_CONFIG_FILE, VIP_CACHE_TYPE, VIP_REDIS_ADDR, VIP_CACHE_TTL,
  VIP_REFRESH_INTERVAL, VIP_ALLOWED_ORIGINS, VIP_TRACE_EXPORTER. See config/config.go.

  Flags override the two most common ones:
  -port    HTTP server port
  -db      SQLite database path (":memory:" for in-memory)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the refresh scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Flush pending spans, close cache and database

EXAMPLES:
  VIP_STORE_CONFIG_FILE=./vip.yaml ./server -db="./data/vip.db"
  VIP_REFRESH_INTERVAL=15m VIP_CACHE_TYPE=redis ./server

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/vip-engine/api"
	"github.com/warp/vip-engine/cache"
	"github.com/warp/vip-engine/config"
	"github.com/warp/vip-engine/factory"
	"github.com/warp/vip-engine/generic"
	"github.com/warp/vip-engine/logging"
	"github.com/warp/vip-engine/store/sqlite"
	"github.com/warp/vip-engine/telemetry"
	"github.com/warp/vip-engine/vip"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	flag.Parse()

	if err := logging.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}

	shutdownTracing, err := telemetry.Setup(cfg.TraceExporter)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			slog.Warn("failed to flush traces", "error", err)
		}
	}()

	store, err := sqlite.New(*dbPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	if err := seedStoreConfig(context.Background(), store, cfg.StoreConfigFile); err != nil {
		return err
	}

	leaderboards, err := cache.New(cache.Config{
		Type:          cfg.CacheType,
		MaxEntries:    cfg.CacheMaxEntries,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	defer leaderboards.Close()

	handler := api.NewHandler(store, leaderboards, cfg.CacheTTL)
	router := api.NewRouter(handler, api.RouterOptions{AllowedOrigins: cfg.AllowedOrigins})

	scheduler := api.NewRefreshScheduler(handler, cfg.RefreshInterval)
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", server.Addr, "db", *dbPath, "cache", cfg.CacheType)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	slog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// seedStoreConfig loads the VIP program from a file, or installs the default
// program anchored on today when the store has none yet.
func seedStoreConfig(ctx context.Context, store vip.ConfigStore, path string) error {
	if path != "" {
		storeCfg, err := factory.NewConfigFactory().ParseFile(path)
		if err != nil {
			return fmt.Errorf("failed to load store config: %w", err)
		}
		slog.Info("store config loaded", "file", path)
		return store.SaveConfig(ctx, *storeCfg)
	}

	if _, err := store.GetConfig(ctx); err == nil {
		return nil
	} else if !errors.Is(err, generic.ErrMissingConfiguration) {
		return err
	}

	slog.Info("no store config, installing default program")
	return store.SaveConfig(ctx, vip.DefaultStoreVipConfig(generic.Today()))
}
