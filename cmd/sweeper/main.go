package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joao-fontenele/storefront-api/internal/config"
	"github.com/joao-fontenele/storefront-api/internal/notifications"
	"github.com/joao-fontenele/storefront-api/internal/orders"
	"github.com/joao-fontenele/storefront-api/internal/products"
	"github.com/joao-fontenele/storefront-api/internal/telemetry"
)

func main() {
	once := flag.Bool("once", false, "run a single sweep and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := telemetry.OpenDB(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	queue, err := notifications.NewQueue(
		notifications.NewService(notifications.NewNotificationRepository(db), logger),
		notifications.QueueConfig{Workers: 2},
		logger,
	)
	if err != nil {
		logger.Error("failed to create notification queue", "error", err)
		os.Exit(1)
	}
	queue.Start()
	defer func() {
		drainCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		if err := queue.Close(drainCtx); err != nil {
			logger.Warn("notification queue did not drain", "error", err)
		}
	}()

	// Stock never changes here, so the product cache is left alone.
	productSvc := products.NewService(products.NewProductRepository(db), products.NopCache{}, logger)

	svc, err := orders.NewService(orders.NewOrderRepository(db), productSvc, queue, cfg.AutoCompleteAfter, logger)
	if err != nil {
		logger.Error("failed to create order service", "error", err)
		os.Exit(1)
	}

	sweep := func() {
		count, err := svc.AutoComplete(ctx, time.Now())
		if err != nil {
			logger.Error("sweep failed", "error", err, "confirmed", count)
		}
	}

	sweep()
	if *once {
		return
	}

	logger.Info("sweeper running", "interval", cfg.AutoCompleteInterval.String(), "after", cfg.AutoCompleteAfter.String())
	ticker := time.NewTicker(cfg.AutoCompleteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("sweeper stopped")
			return
		case <-ticker.C:
			sweep()
		}
	}
}
