package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/olyamironova/oms-engine/internal/domain"
	"github.com/olyamironova/oms-engine/internal/port"
)

var _ port.Cache = (*RedisCache)(nil)

type RedisCache struct {
	client    *redis.Client
	ttl       time.Duration
	namespace string
}

// NewRedisCache keys every entry under namespace so several engines can share
// one Redis database.
func NewRedisCache(addr string, password string, db int, ttl time.Duration, namespace string) *RedisCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisCache{
		client:    rdb,
		ttl:       ttl,
		namespace: namespace,
	}
}

func (c *RedisCache) key(parts ...string) string {
	k := c.namespace
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

func (c *RedisCache) Ping(ctx context.Context) error { return c.client.Ping(ctx).Err() }

func (c *RedisCache) Close() error { return c.client.Close() }

func (c *RedisCache) SetPortfolio(ctx context.Context, view *domain.PortfolioView) error {
	b, err := json.Marshal(view)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key("portfolio"), b, c.ttl).Err()
}

func (c *RedisCache) GetPortfolio(ctx context.Context) (*domain.PortfolioView, error) {
	b, err := c.client.Get(ctx, c.key("portfolio")).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var view domain.PortfolioView
	if err := json.Unmarshal(b, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *RedisCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, c.key("portfolio")).Err()
}

func (c *RedisCache) SetSnapshot(ctx context.Context, snapshotID string, data []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.ttl
	}
	return c.client.Set(ctx, c.key("snapshot", snapshotID), data, ttl).Err()
}

func (c *RedisCache) GetSnapshot(ctx context.Context, snapshotID string) ([]byte, error) {
	res, err := c.client.Get(ctx, c.key("snapshot", snapshotID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return res, err
}
