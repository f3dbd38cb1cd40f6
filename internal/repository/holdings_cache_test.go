package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"holdings_tracker/internal/entity"
	"holdings_tracker/internal/port"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func sampleSnapshot() *entity.Snapshot {
	return &entity.Snapshot{
		LastUpdated: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Holdings: []entity.TokenHolding{
			{
				Address:         "MintA",
				Balance:         1000,
				Decimals:        6,
				USDValue:        10,
				PercentageOwned: 0.01,
				MarketData: entity.MarketData{
					PairData: entity.PairData{
						BaseToken: entity.DEXToken{Address: "MintA", Symbol: "TKA"},
						PriceUsd:  "0.01",
						Fdv:       ptr(100000.0),
						Volume:    entity.PairVolume{H24: 500},
					},
					Score: ptr(87.5),
				},
			},
		},
	}
}

// exerciseHoldingsCache runs the behaviour every backend must share.
func exerciseHoldingsCache(t *testing.T, c port.HoldingsCache) {
	t.Helper()
	ctx := context.Background()

	got, err := c.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got, "empty cache loads as nil")

	want := sampleSnapshot()
	require.NoError(t, c.Store(ctx, want))

	got, err = c.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, want.LastUpdated.Equal(got.LastUpdated))
	require.Len(t, got.Holdings, 1)
	assert.Equal(t, want.Holdings[0].Address, got.Holdings[0].Address)
	assert.Equal(t, want.Holdings[0].USDValue, got.Holdings[0].USDValue)
	require.NotNil(t, got.Holdings[0].MarketData.Score)
	assert.Equal(t, 87.5, *got.Holdings[0].MarketData.Score)
	require.NotNil(t, got.Holdings[0].MarketData.Fdv)
	assert.Equal(t, 100000.0, *got.Holdings[0].MarketData.Fdv)

	// Writes replace the whole entry.
	next := &entity.Snapshot{LastUpdated: want.LastUpdated.Add(time.Minute), Holdings: []entity.TokenHolding{}}
	require.NoError(t, c.Store(ctx, next))
	got, err = c.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got.Holdings)
	assert.True(t, next.LastUpdated.Equal(got.LastUpdated))

	assert.NoError(t, c.Ping(ctx))
}

func TestMemoryHoldingsCache(t *testing.T) {
	exerciseHoldingsCache(t, NewMemoryHoldingsCache())
}

func TestMemoryHoldingsCache_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryHoldingsCache()
	snap := sampleSnapshot()
	require.NoError(t, c.Store(ctx, snap))

	snap.Holdings[0].USDValue = 999
	got, err := c.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10.0, got.Holdings[0].USDValue)
}

func TestFileHoldingsCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.json")
	exerciseHoldingsCache(t, NewFileHoldingsCache(path))

	_, err := os.Stat(path)
	assert.NoError(t, err, "parent directories are created on write")
}

func TestFileHoldingsCache_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	got, err := NewFileHoldingsCache(path).Load(context.Background())
	assert.Nil(t, got)
	assert.ErrorIs(t, err, entity.ErrCacheUnavailable)
}

func TestFileHoldingsCache_UnwritableLocation(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	c := NewFileHoldingsCache(filepath.Join(blocker, "cache.json"))
	err := c.Store(context.Background(), sampleSnapshot())
	assert.ErrorIs(t, err, entity.ErrCacheUnavailable)
}
