package port

import (
	"context"

	"holdings_tracker/internal/entity"
)

// HoldingsService is what the HTTP layer needs from the refresh orchestrator.
type HoldingsService interface {
	// GetHoldings serves a fresh cache or refreshes, falling back to stale cache on error.
	GetHoldings(ctx context.Context) (*entity.Snapshot, error)
	// GetHoldingsStaleWhileRevalidate serves whatever is cached and refreshes in the background when stale.
	// started is true only when this call began a new refresh.
	GetHoldingsStaleWhileRevalidate(ctx context.Context) (snapshot *entity.Snapshot, started bool, err error)
	// RefreshWithTimeout runs a refresh and waits for it up to the configured bound.
	RefreshWithTimeout(ctx context.Context) (*entity.Snapshot, error)
	// TriggerBackgroundRefresh starts a refresh without waiting for it. It returns false and
	// starts nothing when a refresh is already running.
	TriggerBackgroundRefresh() bool
	// CachePing reports the health of the holdings cache backend.
	CachePing(ctx context.Context) error
}
