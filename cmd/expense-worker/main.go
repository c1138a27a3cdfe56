package main

import (
	"context"
	"errors"
	"os"
	"time"

	"expensetracker/internal/cli"
	"expensetracker/internal/log"
	"expensetracker/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	boot := cli.SetupLogger(log.ComponentWorker, os.Stdout)
	cfg := cli.LoadAndValidateConfig(boot)
	logger := cli.ConfigureLogger(cfg, log.ComponentWorker, os.Stdout)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the audit worker",
			log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}

	backend := cli.InitBackend(context.Background(), logger, cfg)
	if backend.Events == nil {
		logger.Error("Backend does not keep an event history, use DATA_BACKEND=sqlite",
			"backend", cfg.DataBackend,
			log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}
	defer func() {
		if backend.Cleanup != nil {
			if err := backend.Cleanup(); err != nil {
				logger.Warn("Backend cleanup error", log.FieldError, err.Error())
			}
		}
	}()

	client := cli.InitAMQP(logger, cfg)
	if client == nil {
		os.Exit(1)
	}
	defer client.Close()

	w := worker.NewAuditWorker(backend.Events)

	ctx, done := cli.GracefulShutdown(logger, 10*time.Second, nil)
	if err := w.StartupCheck(ctx); err != nil {
		logger.Error("Audit history unavailable", log.FieldError, err.Error())
		os.Exit(1)
	}

	logger.Info("Starting audit worker", "queue", cfg.AMQPQueue)
	err := client.ConsumeExpenseEvents(log.WithLogger(ctx, logger), w.HandleEvent)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Consumer stopped", log.FieldError, err.Error())
		return
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Audit worker stopped")
}
