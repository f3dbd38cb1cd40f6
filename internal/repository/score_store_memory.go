package repository

import (
	"context"
	"time"

	"holdings_tracker/internal/port"

	"github.com/patrickmn/go-cache"
)

var _ port.ScoreStore = (*MemoryScoreStore)(nil)

// MemoryScoreStore keeps scores for the lifetime of the process, or for ttl when it is positive.
type MemoryScoreStore struct {
	store *cache.Cache
	ttl   time.Duration
}

func NewMemoryScoreStore(ttl time.Duration) *MemoryScoreStore {
	cleanup := time.Duration(0)
	if ttl > 0 {
		cleanup = ttl
	}
	return &MemoryScoreStore{store: cache.New(cache.NoExpiration, cleanup), ttl: ttl}
}

func (s *MemoryScoreStore) Load(_ context.Context, addresses []string) (map[string]float64, error) {
	out := make(map[string]float64, len(addresses))
	for _, addr := range addresses {
		if v, ok := s.store.Get(addr); ok {
			out[addr] = v.(float64)
		}
	}
	return out, nil
}

func (s *MemoryScoreStore) Save(_ context.Context, scores map[string]float64) error {
	exp := cache.NoExpiration
	if s.ttl > 0 {
		exp = s.ttl
	}
	for addr, score := range scores {
		s.store.Set(addr, score, exp)
	}
	return nil
}
