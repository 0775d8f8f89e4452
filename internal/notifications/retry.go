package notifications

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/joao-fontenele/storefront-api/internal/apperr"
	"github.com/joao-fontenele/storefront-api/internal/domain"
)

// Publisher submits a request without waiting for it to be stored.
type Publisher interface {
	Publish(ctx context.Context, req domain.NotificationRequest) error
}

// Notifier persists a single notification request.
type Notifier interface {
	Notify(ctx context.Context, req domain.NotificationRequest) (int64, error)
}

// RetryPolicy bounds how long a delivery keeps retrying transient failures.
type RetryPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxRetries      uint64
}

var DefaultRetryPolicy = RetryPolicy{
	InitialInterval: 200 * time.Millisecond,
	MaxInterval:     5 * time.Second,
	MaxRetries:      5,
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, p.MaxRetries), ctx)
}

// deliver calls n until it succeeds, the policy gives up, or the error is
// classified. Classified errors (missing tenant, bad input) never succeed on retry.
func deliver(ctx context.Context, n Notifier, policy RetryPolicy, req domain.NotificationRequest) (int64, error) {
	var id int64
	op := func() error {
		var err error
		id, err = n.Notify(ctx, req)
		if isPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	if err := backoff.Retry(op, policy.backOff(ctx)); err != nil {
		return 0, err
	}
	return id, nil
}

func isPermanent(err error) bool {
	return err != nil && apperr.KindOf(err) != apperr.KindInternal
}
