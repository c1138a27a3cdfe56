package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"expensetracker/internal/cache"
	"expensetracker/internal/cli"
	apphttp "expensetracker/internal/http"
	"expensetracker/internal/log"
	"expensetracker/internal/services"
)

func main() {
	cli.LoadEnvFile()
	boot := cli.SetupLogger(log.ComponentApp, os.Stdout)
	cfg := cli.LoadAndValidateConfig(boot)
	logger := cli.ConfigureLogger(cfg, log.ComponentApp, os.Stdout)

	ctx := context.Background()
	backend := cli.InitBackend(ctx, logger, cfg)

	opts := services.Options{
		Logger:       logger,
		CacheSize:    cfg.CacheSize,
		CacheTTL:     cfg.CacheTTL,
		CacheManager: cache.NewManager(logger.WithComponent(log.ComponentCache).Logger),
	}
	amqpClient := cli.InitAMQP(logger, cfg)
	if amqpClient != nil {
		opts.Publisher = amqpClient
	}
	opts.CacheManager.StartCleanup(time.Minute)

	svc := services.NewExpenseService(backend.Repository, opts)
	if err := svc.Load(ctx); err != nil {
		// Keep serving: /readyz and the first write retry the load.
		logger.Error("Initial load failed", log.FieldError, err.Error())
	}

	srv, err := apphttp.NewServer(apphttp.ServerConfig{
		Addr:        ":" + cfg.Port,
		Logger:      logger,
		RateLimit:   cfg.RateLimit,
		TrendMonths: cfg.TrendMonths,
		Backend:     backend,

		TrustedProxies: cfg.TrustedProxies,
	}, svc)
	if err != nil {
		logger.Error("Failed to create server", log.FieldError, err.Error())
		os.Exit(1)
	}

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err.Error())
		}
		opts.CacheManager.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err.Error())
			}
		}
		if backend.Cleanup != nil {
			if err := backend.Cleanup(); err != nil {
				logger.Warn("Backend cleanup error", log.FieldError, err.Error())
			}
		}
	})

	logger.Info("Starting expense tracker",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"expenses", svc.Count())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
