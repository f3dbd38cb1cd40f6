package repository

import (
	"context"

	"holdings_tracker/internal/entity"
	"holdings_tracker/internal/port"

	"github.com/patrickmn/go-cache"
)

const snapshotKey = "snapshot"

var _ port.HoldingsCache = (*MemoryHoldingsCache)(nil)

// MemoryHoldingsCache keeps the snapshot in process memory. Entries never expire;
// staleness is decided by the snapshot's own timestamp.
type MemoryHoldingsCache struct {
	store *cache.Cache
}

func NewMemoryHoldingsCache() *MemoryHoldingsCache {
	return &MemoryHoldingsCache{store: cache.New(cache.NoExpiration, 0)}
}

func (c *MemoryHoldingsCache) Load(_ context.Context) (*entity.Snapshot, error) {
	v, ok := c.store.Get(snapshotKey)
	if !ok {
		return nil, nil
	}
	return cloneSnapshot(v.(*entity.Snapshot)), nil
}

func (c *MemoryHoldingsCache) Store(_ context.Context, snapshot *entity.Snapshot) error {
	c.store.Set(snapshotKey, cloneSnapshot(snapshot), cache.NoExpiration)
	return nil
}

func (c *MemoryHoldingsCache) Ping(context.Context) error { return nil }
