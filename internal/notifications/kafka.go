package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/storefront-api/internal/domain"
)

const EventNotificationRequested = "notification.requested"

type producer interface {
	Publish(ctx context.Context, key string, event any) error
}

// KafkaPublisher hands notification requests to the message bus. Keys are
// the addressed tenant or product so one recipient's requests stay ordered.
type KafkaPublisher struct {
	producer producer
	failures metric.Int64Counter
	now      func() time.Time
}

func NewKafkaPublisher(p producer) (*KafkaPublisher, error) {
	failures, err := dispatchFailures()
	if err != nil {
		return nil, err
	}
	return &KafkaPublisher{producer: p, failures: failures, now: time.Now}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, req domain.NotificationRequest) error {
	event := domain.NotificationRequestedEvent{
		Request:   req,
		Timestamp: p.now().UTC(),
	}
	if err := p.producer.Publish(ctx, partitionKey(req), event); err != nil {
		p.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("type", string(req.Type))))
		return fmt.Errorf("publish notification request: %w", err)
	}
	return nil
}

func partitionKey(req domain.NotificationRequest) string {
	switch {
	case req.TenantID > 0:
		return "tenant-" + strconv.FormatInt(req.TenantID, 10)
	case req.ProductID != nil:
		return "product-" + strconv.FormatInt(*req.ProductID, 10)
	default:
		return string(req.Type)
	}
}

// Worker consumes notification requests from the bus and persists them.
type Worker struct {
	notifier Notifier
	retry    RetryPolicy
	logger   *slog.Logger
}

func NewWorker(notifier Notifier, retry RetryPolicy, logger *slog.Logger) *Worker {
	if retry == (RetryPolicy{}) {
		retry = DefaultRetryPolicy
	}
	return &Worker{notifier: notifier, retry: retry, logger: logger}
}

// Handle returns an error only for transient failures that outlived the retry
// policy; the consumer then stops without committing and the message is redelivered.
// Malformed or unaddressable requests are logged and skipped.
func (w *Worker) Handle(ctx context.Context, payload []byte) error {
	var event domain.NotificationRequestedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		w.logger.Error("discarding malformed notification event", "error", err)
		return nil
	}

	id, err := deliver(ctx, w.notifier, w.retry, event.Request)
	if err != nil {
		if isPermanent(err) {
			w.logger.Warn("notification request rejected", "error", err, "type", event.Request.Type)
			return nil
		}
		w.logger.Error("failed to persist notification", "error", err, "type", event.Request.Type)
		return fmt.Errorf("persist notification: %w", err)
	}

	w.logger.Info("notification persisted", "notification_id", id, "type", event.Request.Type,
		"queued_for", time.Since(event.Timestamp).String())
	return nil
}
