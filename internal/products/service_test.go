package products

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/storefront-api/internal/apperr"
	"github.com/joao-fontenele/storefront-api/internal/auth"
	"github.com/joao-fontenele/storefront-api/internal/domain"
)

type memStore struct {
	products map[int64]domain.Product
	nextID   int64
	gets     int
}

func newMemStore() *memStore {
	return &memStore{products: map[int64]domain.Product{}}
}

func (m *memStore) Create(_ context.Context, p *domain.Product) error {
	m.nextID++
	p.ID = m.nextID
	m.products[p.ID] = *p
	return nil
}

func (m *memStore) Get(_ context.Context, id int64) (*domain.Product, error) {
	m.gets++
	p, ok := m.products[id]
	if !ok {
		return nil, apperr.NotFound("product not found")
	}
	return &p, nil
}

func (m *memStore) List(_ context.Context, f Filter) ([]domain.Product, error) {
	var out []domain.Product
	for _, p := range m.products {
		if f.TenantID != 0 && p.CreatedBy != f.TenantID {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *memStore) Update(_ context.Context, p *domain.Product) error {
	if _, ok := m.products[p.ID]; !ok {
		return apperr.NotFound("product not found")
	}
	m.products[p.ID] = *p
	return nil
}

func (m *memStore) Delete(_ context.Context, id int64) error {
	delete(m.products, id)
	return nil
}

type memCache struct {
	entries map[int64]domain.Product
	failGet bool
}

func newMemCache() *memCache {
	return &memCache{entries: map[int64]domain.Product{}}
}

func (c *memCache) Get(_ context.Context, id int64) (*domain.Product, bool, error) {
	if c.failGet {
		return nil, false, errors.New("connection refused")
	}
	p, ok := c.entries[id]
	if !ok {
		return nil, false, nil
	}
	return &p, true, nil
}

func (c *memCache) Set(_ context.Context, p *domain.Product) error {
	c.entries[p.ID] = *p
	return nil
}

func (c *memCache) Delete(_ context.Context, id int64) error {
	delete(c.entries, id)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var (
	tenant = auth.Identity{ID: 10, Username: "shop", Role: auth.RoleTenant}
	rival  = auth.Identity{ID: 11, Username: "other", Role: auth.RoleTenant}
	admin  = auth.Identity{ID: 1, Username: "root", Role: auth.RoleAdmin}
)

func mug() Input {
	return Input{Name: "Mug", Category: "kitchen", Price: decimal.RequireFromString("12.50"), Stock: 3}
}

func TestInputValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Input)
	}{
		{"blank name", func(in *Input) { in.Name = "   " }},
		{"negative price", func(in *Input) { in.Price = decimal.NewFromInt(-1) }},
		{"negative stock", func(in *Input) { in.Stock = -1 }},
		{"discount above 100", func(in *Input) { d := decimal.NewFromInt(101); in.Discount = &d }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := mug()
			tt.mutate(&in)
			err := in.Validate()
			assert.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)
		})
	}

	t.Run("valid", func(t *testing.T) {
		in := mug()
		d := decimal.NewFromInt(10)
		in.Discount = &d
		assert.NoError(t, in.Validate())
	})
}

func TestServiceCreate(t *testing.T) {
	svc := NewService(newMemStore(), nil, discardLogger())

	in := mug()
	in.Stock = 0
	p, err := svc.Create(context.Background(), tenant, in)
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, p.CreatedBy)
	assert.Equal(t, domain.StockStatusSoldOut, p.StockStatus)
}

func TestServiceGetUsesCache(t *testing.T) {
	store := newMemStore()
	cache := newMemCache()
	svc := NewService(store, cache, discardLogger())
	ctx := context.Background()

	p, err := svc.Create(ctx, tenant, mug())
	require.NoError(t, err)

	_, err = svc.Get(ctx, p.ID)
	require.NoError(t, err)
	_, err = svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, store.gets)

	svc.Invalidate(ctx, p.ID)
	_, err = svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, store.gets)
}

func TestServiceGetFallsThroughOnCacheError(t *testing.T) {
	store := newMemStore()
	cache := newMemCache()
	cache.failGet = true
	svc := NewService(store, cache, discardLogger())
	ctx := context.Background()

	p, err := svc.Create(ctx, tenant, mug())
	require.NoError(t, err)

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mug", got.Name)
}

func TestServiceOwnership(t *testing.T) {
	ctx := context.Background()

	t.Run("other tenant cannot update", func(t *testing.T) {
		svc := NewService(newMemStore(), nil, discardLogger())
		p, err := svc.Create(ctx, tenant, mug())
		require.NoError(t, err)

		_, err = svc.Update(ctx, rival, p.ID, mug())
		assert.True(t, apperr.Is(err, apperr.KindForbidden))
	})

	t.Run("admin can delete", func(t *testing.T) {
		store := newMemStore()
		svc := NewService(store, nil, discardLogger())
		p, err := svc.Create(ctx, tenant, mug())
		require.NoError(t, err)

		require.NoError(t, svc.Delete(ctx, admin, p.ID))
		assert.Empty(t, store.products)
	})

	t.Run("update recomputes stock status and drops cache", func(t *testing.T) {
		cache := newMemCache()
		svc := NewService(newMemStore(), cache, discardLogger())
		p, err := svc.Create(ctx, tenant, mug())
		require.NoError(t, err)
		_, err = svc.Get(ctx, p.ID)
		require.NoError(t, err)
		require.Contains(t, cache.entries, p.ID)

		in := mug()
		in.Stock = 0
		updated, err := svc.Update(ctx, tenant, p.ID, in)
		require.NoError(t, err)
		assert.Equal(t, domain.StockStatusSoldOut, updated.StockStatus)
		assert.NotContains(t, cache.entries, p.ID)
	})
}

func TestServiceListClampsLimit(t *testing.T) {
	var seen Filter
	store := &recordingStore{memStore: newMemStore(), seen: &seen}
	svc := NewService(store, nil, discardLogger())

	_, err := svc.List(context.Background(), Filter{Limit: 1000, Offset: -5})
	require.NoError(t, err)
	assert.Equal(t, maxListLimit, seen.Limit)
	assert.Equal(t, 0, seen.Offset)
}

type recordingStore struct {
	*memStore
	seen *Filter
}

func (r *recordingStore) List(ctx context.Context, f Filter) ([]domain.Product, error) {
	*r.seen = f
	return r.memStore.List(ctx, f)
}
