package likes

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/storefront-api/internal/auth"
	"github.com/joao-fontenele/storefront-api/internal/domain"
)

type Store interface {
	Toggle(ctx context.Context, productID, userID int64) (bool, domain.ProductRef, error)
	Status(ctx context.Context, productID, userID int64) (domain.LikeStatus, error)
}

type ProductCache interface {
	Invalidate(ctx context.Context, productID int64)
}

type Notifier interface {
	Publish(ctx context.Context, req domain.NotificationRequest) error
}

type Service struct {
	store    Store
	products ProductCache
	notifier Notifier
	logger   *slog.Logger
	toggled  metric.Int64Counter
}

func NewService(store Store, products ProductCache, notifier Notifier, logger *slog.Logger) (*Service, error) {
	toggled, err := otel.Meter("storefront/likes").Int64Counter("likes.toggled",
		metric.WithDescription("Like toggles by resulting state"),
	)
	if err != nil {
		return nil, err
	}
	return &Service{store: store, products: products, notifier: notifier, logger: logger, toggled: toggled}, nil
}

// Toggle likes the product if the user has not, and unlikes it otherwise.
func (s *Service) Toggle(ctx context.Context, actor auth.Identity, productID int64) (bool, error) {
	liked, product, err := s.store.Toggle(ctx, productID, actor.ID)
	if err != nil {
		return false, err
	}

	s.toggled.Add(ctx, 1, metric.WithAttributes(attribute.String("liked", strconv.FormatBool(liked))))
	s.products.Invalidate(ctx, productID)

	if liked {
		req := domain.NotificationRequest{
			Type:      domain.NotificationLike,
			TenantID:  product.TenantID,
			ProductID: &product.ID,
			Message:   fmt.Sprintf("%s liked %s", actor.Username, product.Name),
			Data: map[string]any{
				"product_name": product.Name,
				"liker":        actor.Username,
				"liker_id":     actor.ID,
			},
		}
		if err := s.notifier.Publish(ctx, req); err != nil {
			s.logger.Warn("failed to enqueue notification", "error", err, "type", req.Type, "product_id", productID)
		}
	}

	s.logger.Debug("like toggled", "product_id", productID, "user_id", actor.ID, "liked", liked)
	return liked, nil
}

// Status never writes. Anonymous callers pass a zero identity.
func (s *Service) Status(ctx context.Context, actor auth.Identity, productID int64) (domain.LikeStatus, error) {
	return s.store.Status(ctx, productID, actor.ID)
}
