package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"holdings_tracker/internal/entity"
	"holdings_tracker/internal/port"

	"github.com/redis/go-redis/v9"
)

var _ port.ScoreStore = (*RedisScoreStore)(nil)

// RedisScoreStore keeps one string key per address. A zero ttl stores keys without expiry.
type RedisScoreStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisScoreStore(client *redis.Client, prefix string, ttl time.Duration) *RedisScoreStore {
	return &RedisScoreStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisScoreStore) keyFor(address string) string {
	return s.prefix + address
}

func (s *RedisScoreStore) Load(ctx context.Context, addresses []string) (map[string]float64, error) {
	out := make(map[string]float64, len(addresses))
	if len(addresses) == 0 {
		return out, nil
	}

	keys := make([]string, len(addresses))
	for i, addr := range addresses {
		keys[i] = s.keyFor(addr)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return out, fmt.Errorf("%w: mget scores: %v", entity.ErrCacheUnavailable, err)
	}

	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		score, err := strconv.ParseFloat(str, 64)
		if err != nil {
			continue
		}
		out[addresses[i]] = score
	}
	return out, nil
}

func (s *RedisScoreStore) Save(ctx context.Context, scores map[string]float64) error {
	if len(scores) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for addr, score := range scores {
		pipe.Set(ctx, s.keyFor(addr), strconv.FormatFloat(score, 'f', -1, 64), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: save scores: %v", entity.ErrCacheUnavailable, err)
	}
	return nil
}
