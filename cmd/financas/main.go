package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"financas/internal/auth"
	"financas/internal/cli"
	apphttp "financas/internal/http"
	"financas/internal/log"
)

const (
	shutdownTimeout      = 30 * time.Second
	cacheCleanupInterval = time.Minute
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentApp, os.Stdout)

	cfg, err := cli.LoadAndValidateConfig(nil)
	if err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err, log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	app, err := cli.BuildApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize application", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("Failed to release backend", log.FieldError, err)
		}
	}()
	app.Caches.StartCleanup(cacheCleanupInterval)

	authService, err := auth.NewService(app.Backend.Backend, auth.Config{
		Secret:        cfg.SessionSecret,
		SessionTTL:    cfg.SessionTTL,
		RememberMeTTL: cfg.RememberMeTTL,
	}, auth.WithLogger(logger))
	if err != nil {
		logger.Error("Failed to initialize auth service", log.FieldError, err)
		os.Exit(1)
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Dependencies{
		Transactions:       app.Transactions,
		Auth:               authService,
		Ready:              app.Backend.Backend,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})
	if err != nil {
		logger.Error("Failed to initialize HTTP server", log.FieldError, err)
		os.Exit(1)
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting financas server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"events", app.Backend.Publisher != nil,
			"timezone", cfg.Timezone)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", log.FieldError, err)
	}
	logger.Info("Server stopped gracefully")
}
