package comments

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joao-fontenele/storefront-api/internal/apperr"
	"github.com/joao-fontenele/storefront-api/internal/auth"
	"github.com/joao-fontenele/storefront-api/internal/domain"
)

const maxBodyLength = 2000

type Store interface {
	Product(ctx context.Context, productID int64) (domain.ProductRef, error)
	Insert(ctx context.Context, c *domain.Comment) error
	ListByProduct(ctx context.Context, productID int64) ([]domain.Comment, error)
}

type Notifier interface {
	Publish(ctx context.Context, req domain.NotificationRequest) error
}

type Input struct {
	Body   string `json:"body"`
	Rating *int   `json:"rating"`
}

func (in *Input) Validate() error {
	in.Body = strings.TrimSpace(in.Body)
	if in.Body == "" {
		return apperr.Validation("body is required")
	}
	if len(in.Body) > maxBodyLength {
		return apperr.Validation("body must be at most %d characters", maxBodyLength)
	}
	if in.Rating != nil && (*in.Rating < 1 || *in.Rating > 5) {
		return apperr.Validation("rating must be between 1 and 5")
	}
	return nil
}

type Service struct {
	store    Store
	notifier Notifier
	logger   *slog.Logger
}

func NewService(store Store, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{store: store, notifier: notifier, logger: logger}
}

// Create stores a comment. A rating makes it a review, which the owning
// tenant is notified about as such.
func (s *Service) Create(ctx context.Context, actor auth.Identity, productID int64, in Input) (*domain.Comment, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	product, err := s.store.Product(ctx, productID)
	if err != nil {
		return nil, err
	}

	c := &domain.Comment{
		ProductID:  productID,
		UserID:     actor.ID,
		AuthorName: actor.Username,
		Body:       in.Body,
		Rating:     in.Rating,
	}
	if err := s.store.Insert(ctx, c); err != nil {
		return nil, err
	}

	kind := domain.NotificationComment
	message := fmt.Sprintf("%s commented on %s", actor.Username, product.Name)
	data := map[string]any{"product_name": product.Name, "author": actor.Username, "comment_id": c.ID, "body": c.Body}
	if c.Rating != nil {
		kind = domain.NotificationReview
		message = fmt.Sprintf("%s rated %s %d/5", actor.Username, product.Name, *c.Rating)
		data["rating"] = *c.Rating
	}

	req := domain.NotificationRequest{
		Type:      kind,
		TenantID:  product.TenantID,
		ProductID: &product.ID,
		Message:   message,
		Data:      data,
	}
	if err := s.notifier.Publish(ctx, req); err != nil {
		s.logger.Warn("failed to enqueue notification", "error", err, "type", kind, "product_id", productID)
	}

	s.logger.Info("comment created", "comment_id", c.ID, "product_id", productID, "review", c.Rating != nil)
	return c, nil
}

func (s *Service) List(ctx context.Context, productID int64) ([]domain.Comment, error) {
	if _, err := s.store.Product(ctx, productID); err != nil {
		return nil, err
	}
	return s.store.ListByProduct(ctx, productID)
}
