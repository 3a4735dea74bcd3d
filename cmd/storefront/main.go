package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/coordinator/journal"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/coordinator/journal/sqlite"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/pkg/cache"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/pkg/config"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/pkg/telemetry"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/session"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/storefront/app"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/storefront/infra/adapters/rest"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/storefront/infra/httpx"
)

const idleWorkspaceTTL = 30 * time.Minute

func main() {
	configPath := flag.String("config", "", "optional config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	service := cfg.ServiceName("storefront")
	logger := telemetry.InitLogger(telemetry.LoggerOptions{
		Service: service,
		Env:     cfg.AppEnv,
		Level:   cfg.LogLevel,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.SetupTracer(ctx, telemetry.TracerOptions{
		ServiceName: service,
		Environment: cfg.AppEnv,
		Endpoint:    cfg.OtelEndpoint,
		SampleRatio: cfg.OtelSampleRatio,
	})
	if err != nil {
		logger.Error("failed to initialise tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Error("tracer shutdown error", "error", err)
		}
	}()

	sessions := session.NewStore(newCache(ctx, logger, cfg.RedisAddr), cfg.SessionTTL)
	if cfg.SeedDemoSessions {
		logger.Warn("seeding demo sessions, do not enable outside local setups")
		seedDemoSessions(ctx, logger, sessions)
	}

	var repo journal.Repository
	if cfg.JournalPath != "" {
		db, err := sqlite.Open(cfg.JournalPath)
		if err != nil {
			logger.Error("failed to open journal", "path", cfg.JournalPath, "error", err)
			os.Exit(1)
		}
		defer db.Close()
		repo = db
	}

	clock := clockwork.NewRealClock()
	client := rest.NewClient(cfg.BackendURL, rest.WithTimeout(cfg.RequestTimeout))
	registry := app.NewRegistry(
		client,
		client,
		repo,
		clock,
		logger,
		app.Config{
			ResyncDelay:     cfg.CartResyncDelay,
			PollInterval:    cfg.CartPollInterval,
			PerProductGate:  cfg.PerProductGate,
			ConfirmationTTL: cfg.ConfirmationTTL,
		},
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpx.NewRouter(httpx.NewHandler(registry), sessions),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go registry.RunSweeper(ctx, time.Minute, idleWorkspaceTTL)

	go func() {
		logger.Info("storefront running", "addr", cfg.HTTPAddr, "backend", cfg.BackendURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
	registry.Shutdown()
}

// newCache prefers redis and falls back to process memory when no address is
// configured or redis does not answer.
func newCache(ctx context.Context, logger *slog.Logger, addr string) cache.Cache {
	if addr == "" {
		logger.Info("REDIS_ADDR not set, sessions kept in memory")
		return cache.NewMemoryCache("storefront")
	}
	c := cache.NewRedisCache(addr, "storefront")
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := cache.Ping(pingCtx, c); err != nil {
		logger.Warn("redis unreachable, sessions kept in memory", "addr", addr, "error", err)
		return cache.NewMemoryCache("storefront")
	}
	return c
}

func seedDemoSessions(ctx context.Context, logger *slog.Logger, store *session.Store) {
	demo := []session.Session{
		{UserID: "demo-user", Token: "demo-token"},
		{UserID: "demo-admin", Token: "admin-token", Admin: true},
	}
	for _, s := range demo {
		if err := store.Save(ctx, s); err != nil {
			logger.Warn("failed to seed demo session", "user_id", s.UserID, "error", err)
		}
	}
}
