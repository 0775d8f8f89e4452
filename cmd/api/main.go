package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joao-fontenele/storefront-api/internal/analytics"
	"github.com/joao-fontenele/storefront-api/internal/auth"
	"github.com/joao-fontenele/storefront-api/internal/comments"
	"github.com/joao-fontenele/storefront-api/internal/config"
	"github.com/joao-fontenele/storefront-api/internal/httpx"
	"github.com/joao-fontenele/storefront-api/internal/likes"
	"github.com/joao-fontenele/storefront-api/internal/messaging"
	"github.com/joao-fontenele/storefront-api/internal/notifications"
	"github.com/joao-fontenele/storefront-api/internal/orders"
	"github.com/joao-fontenele/storefront-api/internal/products"
	"github.com/joao-fontenele/storefront-api/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	if err := run(cfg, logger); err != nil {
		logger.Error("api exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	if err := cfg.RequireJWTSecret(); err != nil {
		return err
	}

	ctx := context.Background()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.OTelEndpoint, cfg.ServiceName, cfg.ServiceVersion)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(cfg.ServiceName, cfg.ServiceVersion)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownMeter(context.Background()) }()

	db, err := telemetry.OpenDB(ctx, cfg.PostgresURL)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	var cache products.Cache = products.NopCache{}
	if cfg.RedisAddr != "" {
		client, err := products.NewRedisClient(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		cache = products.NewRedisCache(client, cfg.ProductCacheTTL)
		logger.Info("product cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.ProductCacheTTL.String())
	}

	notificationSvc := notifications.NewService(notifications.NewNotificationRepository(db), logger)

	var publisher notifications.Publisher
	var queue *notifications.Queue
	if len(cfg.KafkaBrokers) > 0 {
		producer := messaging.NewProducer(cfg.KafkaBrokers, cfg.NotificationTopic, notifications.EventNotificationRequested)
		defer func() { _ = producer.Close() }()

		publisher, err = notifications.NewKafkaPublisher(producer)
		if err != nil {
			return err
		}
		logger.Info("notifications published to kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.NotificationTopic)
	} else {
		queue, err = notifications.NewQueue(notificationSvc, notifications.QueueConfig{}, logger)
		if err != nil {
			return err
		}
		queue.Start()
		publisher = queue
	}

	productSvc := products.NewService(products.NewProductRepository(db), cache, logger)

	orderSvc, err := orders.NewService(orders.NewOrderRepository(db), productSvc, publisher, cfg.AutoCompleteAfter, logger)
	if err != nil {
		return err
	}

	likeSvc, err := likes.NewService(likes.NewLikeRepository(db), productSvc, publisher, logger)
	if err != nil {
		return err
	}

	commentSvc := comments.NewService(comments.NewCommentRepository(db), publisher, logger)

	gate := auth.NewMiddleware(auth.NewAuthenticator(cfg.JWTSecret), logger)

	mux := http.NewServeMux()
	route := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, telemetry.WithHTTPRoute(h))
	}
	staff := func(h http.HandlerFunc) http.HandlerFunc {
		return gate.RequireRole(h, auth.RoleTenant, auth.RoleAdmin)
	}

	mux.Handle("GET /metrics", metricsHandler)
	route("GET /health", healthHandler(db, logger))

	productHandler := products.NewHandler(productSvc, logger)
	route("POST /products", staff(productHandler.HandleCreate))
	route("GET /products", productHandler.HandleList)
	route("GET /products/{id}", productHandler.HandleGet)
	route("PUT /products/{id}", staff(productHandler.HandleUpdate))
	route("DELETE /products/{id}", staff(productHandler.HandleDelete))

	commentHandler := comments.NewHandler(commentSvc, logger)
	route("POST /products/{id}/comments", gate.Require(commentHandler.HandleCreate))
	route("GET /products/{id}/comments", commentHandler.HandleList)

	orderHandler := orders.NewHandler(orderSvc, logger)
	route("POST /orders", gate.Require(orderHandler.HandleCreate))
	route("GET /orders/tenant", staff(orderHandler.HandleListForTenant))
	route("GET /orders/mine", gate.Require(orderHandler.HandleListMine))
	route("GET /orders/{order_id}", gate.Require(orderHandler.HandleGet))
	route("PUT /orders/{order_id}/status", gate.Require(orderHandler.HandleUpdateStatus))
	route("PUT /orders/{order_id}/received", gate.Require(orderHandler.HandleReceived))
	route("POST /orders/auto-complete", orderHandler.HandleAutoComplete)

	likeHandler := likes.NewHandler(likeSvc, logger)
	route("POST /likes/products/{id}/toggle", gate.Require(likeHandler.HandleToggle))
	route("GET /likes/products/{id}/status", gate.Optional(likeHandler.HandleStatus))

	notificationHandler := notifications.NewHandler(notificationSvc, logger)
	route("POST /notifications", gate.Require(notificationHandler.HandleCreate))
	route("GET /notifications/tenant", staff(notificationHandler.HandleListForTenant))
	route("PUT /notifications/{id}/read", gate.Require(notificationHandler.HandleMarkRead))
	route("PUT /notifications/mark-all-read", gate.Require(notificationHandler.HandleMarkAllRead))

	analyticsHandler := analytics.NewHandler(analytics.NewAnalyticsRepository(db), logger)
	route("GET /analytics/tenant", staff(analyticsHandler.HandleTenant))

	handler := httpx.AccessLog(logger, httpx.Recover(logger, mux))

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      telemetry.InstrumentServer(handler, cfg.ServiceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting storefront api", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return err
	case <-stop:
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if queue != nil {
		if err := queue.Close(shutdownCtx); err != nil {
			logger.Warn("notification queue did not drain", "error", err)
		}
	}
	return nil
}

func healthHandler(db *sql.DB, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			logger.Warn("health check failed", "error", err)
			httpx.WriteJSON(w, logger, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		httpx.WriteJSON(w, logger, http.StatusOK, map[string]string{"status": "ok"})
	}
}
