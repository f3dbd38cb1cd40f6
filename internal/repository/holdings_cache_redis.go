package repository

import (
	"context"
	"errors"
	"fmt"

	"holdings_tracker/internal/entity"
	"holdings_tracker/internal/port"

	"github.com/redis/go-redis/v9"
)

var _ port.HoldingsCache = (*RedisHoldingsCache)(nil)

// RedisHoldingsCache stores the snapshot as one JSON value without expiry.
type RedisHoldingsCache struct {
	client *redis.Client
	key    string
}

func NewRedisHoldingsCache(client *redis.Client, key string) *RedisHoldingsCache {
	return &RedisHoldingsCache{client: client, key: key}
}

func (c *RedisHoldingsCache) Load(ctx context.Context) (*entity.Snapshot, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", entity.ErrCacheUnavailable, c.key, err)
	}

	var snapshot entity.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", entity.ErrCacheUnavailable, c.key, err)
	}
	return &snapshot, nil
}

func (c *RedisHoldingsCache) Store(ctx context.Context, snapshot *entity.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := c.client.Set(ctx, c.key, data, 0).Err(); err != nil {
		return fmt.Errorf("%w: set %s: %v", entity.ErrCacheUnavailable, c.key, err)
	}
	return nil
}

func (c *RedisHoldingsCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", entity.ErrCacheUnavailable, err)
	}
	return nil
}
