package products

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront-api/internal/apperr"
	"github.com/joao-fontenele/storefront-api/internal/auth"
	"github.com/joao-fontenele/storefront-api/internal/domain"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100
)

type Store interface {
	Create(ctx context.Context, p *domain.Product) error
	Get(ctx context.Context, id int64) (*domain.Product, error)
	List(ctx context.Context, f Filter) ([]domain.Product, error)
	Update(ctx context.Context, p *domain.Product) error
	Delete(ctx context.Context, id int64) error
}

type Input struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Category    string           `json:"category"`
	ImageURL    string           `json:"image_url"`
	Price       decimal.Decimal  `json:"price"`
	Discount    *decimal.Decimal `json:"discount"`
	Stock       int              `json:"stock"`
}

func (in *Input) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return apperr.Validation("name is required")
	}
	if in.Price.IsNegative() {
		return apperr.Validation("price must not be negative")
	}
	if in.Discount != nil && (in.Discount.IsNegative() || in.Discount.GreaterThan(decimal.NewFromInt(100))) {
		return apperr.Validation("discount must be between 0 and 100")
	}
	if in.Stock < 0 {
		return apperr.Validation("stock must not be negative")
	}
	return nil
}

func (in Input) apply(p *domain.Product) {
	p.Name = in.Name
	p.Description = in.Description
	p.Category = in.Category
	p.ImageURL = in.ImageURL
	p.Price = in.Price
	p.Discount = in.Discount
	p.Stock = in.Stock
	p.StockStatus = domain.StockStatusFor(in.Stock)
}

// Service is the product store. Single-product reads go through the cache;
// every write path invalidates it.
type Service struct {
	store  Store
	cache  Cache
	logger *slog.Logger
}

func NewService(store Store, cache Cache, logger *slog.Logger) *Service {
	if cache == nil {
		cache = NopCache{}
	}
	return &Service{store: store, cache: cache, logger: logger}
}

func (s *Service) Create(ctx context.Context, actor auth.Identity, in Input) (*domain.Product, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	p := &domain.Product{CreatedBy: actor.ID}
	in.apply(p)

	if err := s.store.Create(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("product created", "product_id", p.ID, "tenant_id", p.CreatedBy)
	return p, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.Product, error) {
	cached, ok, err := s.cache.Get(ctx, id)
	if err != nil {
		s.logger.Warn("product cache read failed", "error", err, "product_id", id)
	}
	if ok {
		return cached, nil
	}

	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, p); err != nil {
		s.logger.Warn("product cache write failed", "error", err, "product_id", id)
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, f Filter) ([]domain.Product, error) {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.store.List(ctx, f)
}

func (s *Service) Update(ctx context.Context, actor auth.Identity, id int64, in Input) (*domain.Product, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	p, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	in.apply(p)
	if err := s.store.Update(ctx, p); err != nil {
		return nil, err
	}
	s.Invalidate(ctx, id)

	s.logger.Info("product updated", "product_id", id, "stock", p.Stock, "stock_status", p.StockStatus)
	return p, nil
}

func (s *Service) Delete(ctx context.Context, actor auth.Identity, id int64) error {
	if _, err := s.owned(ctx, actor, id); err != nil {
		return err
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.Invalidate(ctx, id)

	s.logger.Info("product deleted", "product_id", id)
	return nil
}

// Invalidate drops a cached product. Failures are logged; the entry expires on its own.
func (s *Service) Invalidate(ctx context.Context, id int64) {
	if err := s.cache.Delete(ctx, id); err != nil {
		s.logger.Warn("product cache invalidation failed", "error", err, "product_id", id)
	}
}

func (s *Service) owned(ctx context.Context, actor auth.Identity, id int64) (*domain.Product, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.CreatedBy != actor.ID && !actor.IsAdmin() {
		return nil, apperr.Forbidden("not the owner of this product")
	}
	return p, nil
}
