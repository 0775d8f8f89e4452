package notifications

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/storefront-api/internal/domain"
)

var (
	ErrQueueFull   = errors.New("notification queue is full")
	ErrQueueClosed = errors.New("notification queue is closed")
)

const deliveryTimeout = 30 * time.Second

type QueueConfig struct {
	Workers int
	Size    int
	Retry   RetryPolicy
}

type job struct {
	ctx context.Context
	req domain.NotificationRequest
}

// Queue is an in-process fire-and-forget dispatcher. Publish never waits for
// the database; workers deliver with retries and log what they drop.
type Queue struct {
	notifier Notifier
	cfg      QueueConfig
	logger   *slog.Logger
	failures metric.Int64Counter

	mu     sync.RWMutex
	closed bool
	jobs   chan job
	wg     sync.WaitGroup
	start  sync.Once
}

func NewQueue(notifier Notifier, cfg QueueConfig, logger *slog.Logger) (*Queue, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Size <= 0 {
		cfg.Size = 1024
	}
	if cfg.Retry == (RetryPolicy{}) {
		cfg.Retry = DefaultRetryPolicy
	}

	failures, err := dispatchFailures()
	if err != nil {
		return nil, err
	}

	return &Queue{
		notifier: notifier,
		cfg:      cfg,
		logger:   logger.With("component", "notification_queue"),
		failures: failures,
		jobs:     make(chan job, cfg.Size),
	}, nil
}

func dispatchFailures() (metric.Int64Counter, error) {
	return otel.Meter("storefront/notifications").Int64Counter("notifications.dispatch_failures",
		metric.WithDescription("Notification requests that could not be delivered"),
	)
}

// Start launches the workers. It is safe to call more than once.
func (q *Queue) Start() {
	q.start.Do(func() {
		for range q.cfg.Workers {
			q.wg.Add(1)
			go q.run()
		}
		q.logger.Info("notification queue started", "workers", q.cfg.Workers, "size", q.cfg.Size)
	})
}

func (q *Queue) Publish(ctx context.Context, req domain.NotificationRequest) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.jobs <- job{ctx: context.WithoutCancel(ctx), req: req}:
		return nil
	default:
		q.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("type", string(req.Type))))
		return ErrQueueFull
	}
}

// Close stops accepting work and waits for queued requests to drain.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.logger.Info("notification queue drained")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) run() {
	defer q.wg.Done()
	for j := range q.jobs {
		q.process(j)
	}
}

func (q *Queue) process(j job) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("notification delivery panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()

	ctx, cancel := context.WithTimeout(j.ctx, deliveryTimeout)
	defer cancel()

	id, err := deliver(ctx, q.notifier, q.cfg.Retry, j.req)
	if err != nil {
		q.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("type", string(j.req.Type))))
		q.logger.Warn("notification dropped", "error", err, "type", j.req.Type, "tenant_id", j.req.TenantID)
		return
	}

	q.logger.Debug("notification delivered", "notification_id", id, "type", j.req.Type)
}
