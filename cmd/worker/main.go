package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joao-fontenele/storefront-api/internal/config"
	"github.com/joao-fontenele/storefront-api/internal/messaging"
	"github.com/joao-fontenele/storefront-api/internal/notifications"
	"github.com/joao-fontenele/storefront-api/internal/telemetry"
)

const consumerGroup = "notification-worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	if len(cfg.KafkaBrokers) == 0 {
		logger.Error("KAFKA_BROKERS environment variable is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.OTelEndpoint, cfg.ServiceName+"-worker", cfg.ServiceVersion)
	if err != nil {
		logger.Error("failed to init tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	db, err := telemetry.OpenDB(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	consumer := messaging.NewConsumer(cfg.KafkaBrokers, cfg.NotificationTopic, consumerGroup)
	defer func() { _ = consumer.Close() }()

	svc := notifications.NewService(notifications.NewNotificationRepository(db), logger)
	worker := notifications.NewWorker(svc, notifications.DefaultRetryPolicy, logger)

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("starting notification worker", "brokers", cfg.KafkaBrokers, "topic", cfg.NotificationTopic)

	if err := consumer.Consume(ctx, worker.Handle); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			logger.Info("consumer stopped")
			return
		}
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
}
