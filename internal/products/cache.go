package products

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/joao-fontenele/storefront-api/internal/domain"
)

// Cache is a read-through cache for single products.
type Cache interface {
	Get(ctx context.Context, id int64) (*domain.Product, bool, error)
	Set(ctx context.Context, p *domain.Product) error
	Delete(ctx context.Context, id int64) error
}

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// NewRedisClient connects to addr and pings it.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

func cacheKey(id int64) string {
	return "product:" + strconv.FormatInt(id, 10)
}

func (c *RedisCache) Get(ctx context.Context, id int64) (*domain.Product, bool, error) {
	data, err := c.client.Get(ctx, cacheKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var p domain.Product
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, false, fmt.Errorf("decode cached product: %w", err)
	}
	return &p, true, nil
}

func (c *RedisCache) Set(ctx context.Context, p *domain.Product) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode product: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(p.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, id int64) error {
	if err := c.client.Del(ctx, cacheKey(id)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// NopCache is used when no Redis address is configured.
type NopCache struct{}

func (NopCache) Get(context.Context, int64) (*domain.Product, bool, error) { return nil, false, nil }
func (NopCache) Set(context.Context, *domain.Product) error { return nil }
func (NopCache) Delete(context.Context, int64) error { return nil }
