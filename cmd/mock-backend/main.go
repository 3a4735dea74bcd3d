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

	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/backend-service/app"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/backend-service/httpx"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/pkg/cache"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/pkg/config"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/pkg/telemetry"
)

func main() {
	configPath := flag.String("config", "", "optional config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	service := cfg.ServiceName("mock-backend")
	logger := telemetry.InitLogger(telemetry.LoggerOptions{
		Service: service,
		Env:     cfg.AppEnv,
		Level:   cfg.LogLevel,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.SetupTracer(ctx, telemetry.TracerOptions{
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
		if err := shutdown(shutdownCtx); err != nil {
			logger.Error("tracer shutdown error", "error", err)
		}
	}()

	var idem cache.Cache
	if cfg.RedisAddr != "" {
		idem = cache.NewRedisCache(cfg.RedisAddr, "backend")
	} else {
		idem = cache.NewMemoryCache("backend")
	}

	store := app.NewStore(clockwork.NewRealClock())
	srv := &http.Server{
		Addr:              cfg.BackendAddr,
		Handler:           httpx.NewRouter(httpx.NewHandler(store), idem),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("mock backend running", "addr", cfg.BackendAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to serve", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
}
