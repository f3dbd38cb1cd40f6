package port

import (
	"context"

	"holdings_tracker/internal/entity"
)

// HoldingsCache persists the latest holdings snapshot. Load returns (nil, nil) when
// nothing has been written yet.
type HoldingsCache interface {
	Load(ctx context.Context) (*entity.Snapshot, error)
	Store(ctx context.Context, snapshot *entity.Snapshot) error
	Ping(ctx context.Context) error
}

// ScoreStore persists trust scores by token address. Load returns only the
// requested addresses that have a live score; Save merges into existing entries.
type ScoreStore interface {
	Load(ctx context.Context, addresses []string) (map[string]float64, error)
	Save(ctx context.Context, scores map[string]float64) error
}
