package service

import (
	"context"
	"time"

	"holdings_tracker/internal/entity"
	"holdings_tracker/internal/port"
	"holdings_tracker/pkg/metrics"

	"go.uber.org/zap"
)

// CacheTTL is how long a snapshot counts as fresh.
const CacheTTL = 60 * time.Second

// SnapshotCache adds the freshness rules on top of a HoldingsCache backend.
// Backend failures are logged and never surface to callers.
type SnapshotCache struct {
	backend port.HoldingsCache
	now     func() time.Time
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewSnapshotCache(backend port.HoldingsCache, m *metrics.Metrics, logger *zap.Logger) *SnapshotCache {
	return &SnapshotCache{
		backend: backend,
		now:     time.Now,
		metrics: m,
		logger:  logger.Named("SnapshotCache"),
	}
}

// Get returns the cached snapshot, or nil when nothing was written or the read failed.
func (c *SnapshotCache) Get(ctx context.Context) *entity.Snapshot {
	snap, err := c.backend.Load(ctx)
	if err != nil {
		c.metrics.CacheErrors.WithLabelValues("load").Inc()
		c.logger.Error("Failed to read holdings cache", zap.Error(err))
		return nil
	}
	return snap
}

// Set replaces the cached snapshot with holdings stamped at the current time.
// The written snapshot is returned even when the backend write fails.
func (c *SnapshotCache) Set(ctx context.Context, holdings []entity.TokenHolding) *entity.Snapshot {
	if holdings == nil {
		holdings = []entity.TokenHolding{}
	}
	snap := &entity.Snapshot{Holdings: holdings, LastUpdated: c.now().UTC()}
	if err := c.backend.Store(ctx, snap); err != nil {
		c.metrics.CacheErrors.WithLabelValues("store").Inc()
		c.logger.Error("Failed to write holdings cache", zap.Int("holdings", len(holdings)), zap.Error(err))
	}
	return snap
}

// Stale reports whether snap is missing or older than CacheTTL.
func (c *SnapshotCache) Stale(snap *entity.Snapshot) bool {
	if snap == nil {
		return true
	}
	return c.now().Sub(snap.LastUpdated) > CacheTTL
}

// IsStale reads the backend and applies Stale.
func (c *SnapshotCache) IsStale(ctx context.Context) bool {
	return c.Stale(c.Get(ctx))
}

func (c *SnapshotCache) Ping(ctx context.Context) error {
	return c.backend.Ping(ctx)
}
