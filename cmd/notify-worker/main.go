package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"condoledger/internal/amqp"
	"condoledger/internal/config"
	"condoledger/internal/fiscal"
	"condoledger/internal/ident"
	"condoledger/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting notify-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the notify-worker")
		os.Exit(1)
	}

	cal, err := fiscal.NewCalendar(cfg.TimeZone)
	if err != nil {
		logger.Error("Failed to initialize fiscal calendar", "error", err, "zone", cfg.TimeZone)
		os.Exit(1)
	}
	ids := ident.NewFormatter(cal)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	notifier := worker.NewNotifyWorker(cfg.NotifyWebhookURL, ids)
	if cfg.NotifyWebhookURL == "" {
		logger.Info("No webhook configured - notifications are logged only")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			err := amqpClient.ConsumeEntryRecorded(ctx, notifier.HandleEntryRecorded)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error("Message consumption failed, reconnecting", "error", err)
			if err := amqpClient.Reconnect(ctx, cfg.AMQPURL); err != nil {
				return err
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Notify-worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Notify-worker shutdown complete")
}
