package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/alchemist/internal/config"
	"github.com/JonMunkholm/alchemist/internal/core"
	"github.com/JonMunkholm/alchemist/internal/logging"
	"github.com/JonMunkholm/alchemist/internal/metrics"
	"github.com/JonMunkholm/alchemist/internal/web"
	"github.com/JonMunkholm/alchemist/internal/workspace"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	catalog := core.DefaultCatalog()
	slog.Info("catalog loaded", "kinds", catalog.Kinds(), "default", catalog.DefaultKind())

	engine := core.NewEngine(catalog, core.CheckOptions{
		NumericFields: cfg.Validation.NumericFields,
		DateFields:    cfg.Validation.DateFields,
		TextFields:    cfg.Validation.TextFields,
		MaxTextLength: cfg.Validation.MaxTextLength,
	})
	normalizer := core.NewNormalizer(catalog,
		core.WithMaxFileSize(cfg.Upload.MaxFileSize),
		core.WithParallelism(cfg.Upload.Parallelism),
	)
	store := workspace.NewStore(engine, cfg.Session.MaxSessions, cfg.Session.TTL)
	limiter := core.NewBatchLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime)

	m := metrics.New(cfg.Metrics.Enabled)
	m.RegisterSessionGauge(store.Len)
	m.RegisterLimiterGauge(limiter.ActiveCount)

	server := web.NewServer(cfg, web.Deps{
		Engine:     engine,
		Normalizer: normalizer,
		Store:      store,
		Limiter:    limiter,
		Metrics:    m,
	})

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		store.Purge()
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
