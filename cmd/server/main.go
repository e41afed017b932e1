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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/RobinLiu69/MentionDodger/internal/broadcast"
	"github.com/RobinLiu69/MentionDodger/internal/config"
	"github.com/RobinLiu69/MentionDodger/internal/database"
	"github.com/RobinLiu69/MentionDodger/internal/dedup"
	"github.com/RobinLiu69/MentionDodger/internal/domain"
	"github.com/RobinLiu69/MentionDodger/internal/gateway"
	"github.com/RobinLiu69/MentionDodger/internal/logging"
	"github.com/RobinLiu69/MentionDodger/internal/redis"
	"github.com/RobinLiu69/MentionDodger/internal/server"
	"github.com/RobinLiu69/MentionDodger/internal/tracker"
)

const (
	settingsCacheTTL   = 10 * time.Second
	maxClientsPerGuild = 64
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.RunMigrations(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

// setupDedup prefers Redis when configured so redeliveries are caught across
// restarts; otherwise an in-memory window serves a single instance fine.
func setupDedup(cfg *config.Config, clock clockwork.Clock) (domain.Deduper, *goredis.Client) {
	window := time.Duration(cfg.DedupWindowSeconds) * time.Second

	if cfg.RedisURL == "" {
		slog.Info("No Redis configured, using in-memory dedup", "window", window)
		return dedup.NewMemory(window, clock), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	slog.Info("Using Redis-backed dedup", "window", window)
	return redis.NewDeduper(client, window), client
}

func runGracefulShutdown(srv *server.Server, scheduler *tracker.Scheduler, hub *broadcast.Hub) <-chan struct{} {
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

		// Timers are in-memory bookkeeping; open mentions survive in the
		// store and are re-armed on the next start.
		scheduler.CancelAll()
		hub.Stop()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	pool := setupDB(cfg)
	defer pool.Close()

	deduper, redisClient := setupDedup(cfg, clock)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	mentionRepo := database.NewMentionRepo(pool)
	statsRepo := database.NewStatsRepo(pool)
	rosterRepo := database.NewRosterRepo(pool)
	settingsRepo := database.NewSettingsRepo(pool)

	seedCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := settingsRepo.SeedSettings(seedCtx, cfg.ResponseTimeoutSeconds, cfg.MinResponseLength); err != nil {
		cancel()
		slog.Error("Failed to seed settings", "error", err)
		os.Exit(1)
	}
	cancel()

	settingsCache := tracker.NewSettingsCache(settingsRepo, settingsCacheTTL, clock)

	hub := broadcast.NewHub(clock, maxClientsPerGuild)

	scheduler := tracker.NewScheduler(mentionRepo, hub, clock)

	// Re-arm timers for mentions left open by the previous run before any
	// new messages come in.
	restoreCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	window := settingsCache.Current(restoreCtx).Window()
	if err := scheduler.RestoreAll(restoreCtx, window); err != nil {
		cancel()
		slog.Error("Failed to restore pending timeouts", "error", err)
		os.Exit(1)
	}
	cancel()

	trk := tracker.NewTracker(mentionRepo, rosterRepo, deduper, scheduler, settingsCache, hub, clock)
	webhook := gateway.NewWebhookHandler(cfg.WebhookSecret, trk, clock)

	deps := server.Dependencies{
		Stats:         statsRepo,
		Roster:        rosterRepo,
		SettingsRepo:  settingsRepo,
		SettingsCache: settingsCache,
		Scheduler:     scheduler,
		Hub:           hub,
		Webhook:       webhook,
		Postgres:      pool,
	}
	// Assign only when configured: a typed nil client would defeat the
	// readiness check's nil test.
	if redisClient != nil {
		deps.Redis = redisClient
	}
	srv := server.NewServer(cfg, deps)

	done := runGracefulShutdown(srv, scheduler, hub)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
	slog.Info("Shutdown complete")
}
