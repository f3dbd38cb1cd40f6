// Package provider wires configuration into the storage backends and the refresh pipeline.
package provider

import (
	"context"
	"fmt"

	"holdings_tracker/internal/config"
	"holdings_tracker/internal/port"
	"holdings_tracker/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Connections holds the shared clients opened for the configured backends.
type Connections struct {
	Redis    *redis.Client
	Postgres *pgxpool.Pool
}

// OpenConnections connects to Redis and Postgres only when a backend needs them.
func OpenConnections(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Connections, error) {
	conns := &Connections{}

	if cfg.Cache.Backend == config.BackendRedis || cfg.ScoreStore.Backend == config.BackendRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		logger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr), zap.Int("db", cfg.Redis.DB))
		conns.Redis = client
	}

	if cfg.ScoreStore.Backend == config.BackendPostgres {
		pool, err := repository.NewPostgresPool(ctx, cfg.Postgres.DSN)
		if err != nil {
			conns.Close()
			return nil, err
		}
		if err := repository.Migrate(ctx, pool); err != nil {
			pool.Close()
			conns.Close()
			return nil, err
		}
		logger.Info("Connected to Postgres and applied migrations")
		conns.Postgres = pool
	}

	return conns, nil
}

// Close releases every open connection.
func (c *Connections) Close() {
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.Postgres != nil {
		c.Postgres.Close()
	}
}

// NewHoldingsCache returns the snapshot backend named by cfg.Cache.Backend.
func NewHoldingsCache(cfg *config.Config, conns *Connections) (port.HoldingsCache, error) {
	switch cfg.Cache.Backend {
	case config.BackendMemory:
		return repository.NewMemoryHoldingsCache(), nil
	case config.BackendFile:
		return repository.NewFileHoldingsCache(cfg.Cache.FilePath), nil
	case config.BackendRedis:
		if conns.Redis == nil {
			return nil, fmt.Errorf("cache backend %q needs a redis connection", cfg.Cache.Backend)
		}
		return repository.NewRedisHoldingsCache(conns.Redis, cfg.Cache.RedisKey), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

// NewScoreStore returns the trust score backend named by cfg.ScoreStore.Backend.
func NewScoreStore(cfg *config.Config, conns *Connections) (port.ScoreStore, error) {
	ttl := cfg.ScoreTTL()
	switch cfg.ScoreStore.Backend {
	case config.BackendMemory:
		return repository.NewMemoryScoreStore(ttl), nil
	case config.BackendFile:
		return repository.NewFileScoreStore(cfg.ScoreStore.FilePath, ttl), nil
	case config.BackendRedis:
		if conns.Redis == nil {
			return nil, fmt.Errorf("score store backend %q needs a redis connection", cfg.ScoreStore.Backend)
		}
		return repository.NewRedisScoreStore(conns.Redis, cfg.ScoreStore.RedisKeyPrefix, ttl), nil
	case config.BackendPostgres:
		if conns.Postgres == nil {
			return nil, fmt.Errorf("score store backend %q needs a postgres connection", cfg.ScoreStore.Backend)
		}
		return repository.NewPostgresScoreStore(conns.Postgres, ttl), nil
	default:
		return nil, fmt.Errorf("unknown score store backend %q", cfg.ScoreStore.Backend)
	}
}
