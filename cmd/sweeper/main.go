package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/campustrade/market-api/internal/config"
	"github.com/campustrade/market-api/internal/messaging"
	"github.com/campustrade/market-api/internal/orders"
	"github.com/campustrade/market-api/internal/sweeper"
	"github.com/campustrade/market-api/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()

	if cfg.PostgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "market-sweeper", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metrics, err := telemetry.NewMetrics()
	if err != nil {
		logger.Error("failed to create metrics", "error", err)
		os.Exit(1)
	}

	db, err := telemetry.OpenDB("postgres", cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.PingContext(ctx); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	var producer *messaging.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer = messaging.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer func() { _ = producer.Close() }()
	} else {
		logger.Warn("KAFKA_BROKERS not set, cancellation events disabled")
	}

	repo := orders.NewOrderRepository(db)

	var s *sweeper.Sweeper
	if producer != nil {
		s = sweeper.New(repo, producer, metrics, logger, cfg.Sweeper.Interval, cfg.Sweeper.PaymentTimeout)
	} else {
		s = sweeper.New(repo, nil, metrics, logger, cfg.Sweeper.Interval, cfg.Sweeper.PaymentTimeout)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	if err := s.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("sweeper error", "error", err)
		os.Exit(1)
	}
}
