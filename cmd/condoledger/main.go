package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"condoledger/internal/amqp"
	"condoledger/internal/config"
	"condoledger/internal/fiscal"
	apphttp "condoledger/internal/http"
	"condoledger/internal/ident"
	"condoledger/internal/ledger"
	"condoledger/internal/metrics"
	"condoledger/internal/middleware/ratelimit"
	"condoledger/internal/reporting"
	"condoledger/internal/storage"
	"condoledger/internal/storage/memory"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

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

	var repo ledger.Repository
	switch cfg.DataBackend {
	case "sqlite":
		sqliteRepo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, cfg.FiscalYearStartMonth)
		if err != nil {
			logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		defer sqliteRepo.Close()
		repo = sqliteRepo
		logger.Info("Initialized sqlite backend", "path", cfg.SQLiteDBPath)
	default:
		repo = memory.NewStore(cfg.FiscalYearStartMonth)
		logger.Info("Initialized memory backend")
	}

	// AMQP is optional: without it entries are still recorded, just not
	// published for the notify worker.
	var pub ledger.EventPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without event publishing", "error", err)
		} else {
			defer amqpClient.Close()
			pub = amqpClient
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange)
		}
	}

	collector := metrics.NewCollector()
	svc := ledger.NewService(repo, ids, pub, collector)
	reports := reporting.NewAggregator(repo, cal)

	var limiter *ratelimit.Limiter
	if cfg.RateLimitPerMinute > 0 {
		limiter = ratelimit.NewLimiter(cfg.RateLimitPerMinute)
		defer limiter.Stop()
	}

	srv := apphttp.NewServer(":"+cfg.Port, svc, reports, ids, collector, limiter)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting condoledger server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"zone", cfg.TimeZone,
		"fiscal_year_start_month", cfg.FiscalYearStartMonth)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
