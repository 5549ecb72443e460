package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"condoledger/internal/amqp"
	"condoledger/internal/config"
	"condoledger/internal/fiscal"
	"condoledger/internal/ident"
	"condoledger/internal/ledger"
	"condoledger/internal/services"
	"condoledger/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting dues-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	cal, err := fiscal.NewCalendar(cfg.TimeZone)
	if err != nil {
		logger.Error("Failed to initialize fiscal calendar", "error", err, "zone", cfg.TimeZone)
		os.Exit(1)
	}
	ids := ident.NewFormatter(cal)

	sqliteRepo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, cfg.FiscalYearStartMonth)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer sqliteRepo.Close()

	// Charges recorded here are published so the notify worker can fan them
	// out; without AMQP the worker runs in SQLite-only mode.
	var pub ledger.EventPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing in SQLite-only mode", "error", err)
		} else {
			defer amqpClient.Close()
			pub = amqpClient
		}
	}

	svc := ledger.NewService(sqliteRepo, ids, pub, nil)
	processor := services.NewDuesProcessor(sqliteRepo, svc, cal, cfg.DuesMonthlyCents)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Dues processor configured",
		"interval", cfg.DuesInterval,
		"monthly_cents", cfg.DuesMonthlyCents,
		"sqlite_db", cfg.SQLiteDBPath)

	runOnce := func(now time.Time) {
		count, err := processor.ProcessMonth(ctx, now)
		if err != nil {
			logger.Error("Dues processing failed", "error", err)
			return
		}
		logger.Info("Dues processing complete", "accounts_charged", count)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Run once on startup so a restarted worker never skips a cycle.
		runOnce(time.Now())

		ticker := time.NewTicker(cfg.DuesInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case now := <-ticker.C:
				runOnce(now)
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Dues-worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Dues-worker shutdown complete")
}
