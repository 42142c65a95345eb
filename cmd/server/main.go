package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/zonewarden/internal/catalog"
	"github.com/pscheid92/zonewarden/internal/config"
	"github.com/pscheid92/zonewarden/internal/domain"
	"github.com/pscheid92/zonewarden/internal/ledger"
	"github.com/pscheid92/zonewarden/internal/logging"
	"github.com/pscheid92/zonewarden/internal/persist"
	"github.com/pscheid92/zonewarden/internal/server"
	"github.com/pscheid92/zonewarden/internal/session"
	"github.com/pscheid92/zonewarden/internal/world"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupPersistence(cfg *config.Config) (domain.SnapshotStore, *goredis.Client) {
	if cfg.RedisURL == "" {
		slog.Info("Persisting sessions to file", "path", cfg.SessionStatePath)
		return persist.NewFileStore(cfg.SessionStatePath), nil
	}

	opts, err := goredis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("Invalid REDIS_URL", "error", err)
		os.Exit(1)
	}
	client := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	slog.Info("Persisting sessions to Redis")
	return persist.NewRedisStore(client), client
}

func runGracefulShutdown(srv *server.Server, reconciler *session.Reconciler, manager *session.Manager, bridge *world.Bridge, redisClient *goredis.Client) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		reconciler.Stop()

		// Force-save so a clean shutdown never loses the interval's changes.
		manager.Checkpoint(shutdownCtx)

		bridge.Close()
		if redisClient != nil {
			_ = redisClient.Close()
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	cat, err := catalog.Load(cfg.ZoneCatalogPath)
	if err != nil {
		slog.Error("Failed to load zone catalog", "error", err)
		os.Exit(1)
	}

	snapshots, redisClient := setupPersistence(cfg)

	ledgerClient := ledger.NewClient(cfg.LedgerURL)
	bridge := world.NewBridge(cfg.WorldURL)

	store := session.NewStore()
	manager := session.NewManager(cat, store, snapshots, ledgerClient, bridge, clock)

	startupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	purged, loadErr := manager.LoadAndReconcile(startupCtx)
	cancel()
	if loadErr != nil {
		slog.Warn("Persisted session state was partially unreadable", "error", loadErr)
	}
	if purged > 0 {
		slog.Warn("Invalid persisted sessions purged at startup", "purged", purged)
	}

	reconciler := session.NewReconciler(manager, clock, cfg.SweepInterval, cfg.SaveInterval)
	reconciler.Start(context.Background())

	checks := map[string]server.Pinger{"world": bridge}
	if rs, ok := snapshots.(*persist.RedisStore); ok {
		checks["redis"] = rs
	}

	srv := server.NewServer(cfg, manager, cat, checks)

	done := runGracefulShutdown(srv, reconciler, manager, bridge, redisClient)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
