package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"holdings_tracker/internal/config"
	"holdings_tracker/internal/entity"
	"holdings_tracker/internal/pkg/retry"
	"holdings_tracker/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func addresses(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("Mint%03d", i)
	}
	return out
}

func dexConfig(spacingMillis int64, concurrency int) config.DEXScreenerConfig {
	return config.DEXScreenerConfig{
		MaxTokensPerBatchRequest: 30,
		BatchSpacingMillis:       spacingMillis,
		MaxConcurrentRequests:    concurrency,
	}
}

func TestDedupByVolume(t *testing.T) {
	pairs := []entity.PairData{
		pair("A", "1", 100),
		pair("B", "2", 50),
		pair("A", "1.1", 300),
		pair("B", "2.2", 50), // tie: first stays
		pair("C", "3", 0),
		pair("A", "1.2", 200),
	}

	got := DedupByVolume(pairs)

	require.Len(t, got, 3)
	assert.Equal(t, "A", got[0].BaseToken.Address)
	assert.Equal(t, "1.1", got[0].PriceUsd)
	assert.Equal(t, "B", got[1].BaseToken.Address)
	assert.Equal(t, "2", got[1].PriceUsd)
	assert.Equal(t, "C", got[2].BaseToken.Address)
}

func TestDedupByVolume_MissingVolumeCountsAsZero(t *testing.T) {
	noVolume := pair("A", "1", 0)
	noVolume.Volume = entity.PairVolume{}
	got := DedupByVolume([]entity.PairData{noVolume, pair("A", "2", 0.5)})
	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0].PriceUsd)
}

func TestMarketDataService_EmptyInputMakesNoRequests(t *testing.T) {
	dex := &fakeDEXClient{}
	svc := NewMarketDataService(dex, dexConfig(0, 2), retry.Policy{MaxAttempts: 1}, metrics.New(nil), zap.NewNop())

	got, err := svc.GetMarketData(context.Background(), []string{"", "  "})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, dex.batches)
}

func TestMarketDataService_BatchesAndDedups(t *testing.T) {
	addrs := addresses(65)
	dex := &fakeDEXClient{pairs: map[string][]entity.PairData{
		addrs[0]:  {pair(addrs[0], "1", 10), pair(addrs[0], "2", 20)},
		addrs[31]: {pair(addrs[31], "5", 1)},
		addrs[64]: {pair(addrs[64], "7", 1)},
	}}
	svc := NewMarketDataService(dex, dexConfig(0, 4), retry.Policy{MaxAttempts: 1}, metrics.New(nil), zap.NewNop())

	got, err := svc.GetMarketData(context.Background(), addrs)
	require.NoError(t, err)

	require.Len(t, dex.batches, 3)
	sizes := map[int]int{}
	for _, b := range dex.batches {
		sizes[len(b)]++
	}
	assert.Equal(t, map[int]int{30: 2, 5: 1}, sizes)

	require.Len(t, got, 3)
	assert.Equal(t, addrs[0], got[0].BaseToken.Address)
	assert.Equal(t, "2", got[0].PriceUsd)
	assert.Equal(t, addrs[31], got[1].BaseToken.Address)
	assert.Equal(t, addrs[64], got[2].BaseToken.Address)
}

func TestMarketDataService_FailedBatchIsSkipped(t *testing.T) {
	addrs := addresses(60)
	dex := &fakeDEXClient{
		fail: map[string]bool{addrs[0]: true},
		pairs: map[string][]entity.PairData{
			addrs[1]:  {pair(addrs[1], "1", 1)},
			addrs[45]: {pair(addrs[45], "1", 1)},
		},
	}
	m := metrics.New(nil)
	svc := NewMarketDataService(dex, dexConfig(0, 2), retry.Policy{MaxAttempts: 1}, m, zap.NewNop())

	got, err := svc.GetMarketData(context.Background(), addrs)
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, addrs[45], got[0].BaseToken.Address)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamRequests.WithLabelValues(metrics.SourceDEXScreener, metrics.OutcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamRequests.WithLabelValues(metrics.SourceDEXScreener, metrics.OutcomeSuccess)))
}

func TestMarketDataService_SpacesBatchStarts(t *testing.T) {
	dex := &fakeDEXClient{}
	svc := NewMarketDataService(dex, dexConfig(50, 4), retry.Policy{MaxAttempts: 1}, metrics.New(nil), zap.NewNop())

	_, err := svc.GetMarketData(context.Background(), addresses(90))
	require.NoError(t, err)

	require.Len(t, dex.starts, 3)
	first, last := dex.starts[0], dex.starts[0]
	for _, s := range dex.starts {
		if s.Before(first) {
			first = s
		}
		if s.After(last) {
			last = s
		}
	}
	// Three starts need two full gaps.
	assert.GreaterOrEqual(t, last.Sub(first), 90*time.Millisecond)
}

func TestMarketDataService_RespectsConcurrencyLimit(t *testing.T) {
	dex := &fakeDEXClient{delay: 20 * time.Millisecond}
	svc := NewMarketDataService(dex, dexConfig(0, 2), retry.Policy{MaxAttempts: 1}, metrics.New(nil), zap.NewNop())

	_, err := svc.GetMarketData(context.Background(), addresses(150))
	require.NoError(t, err)

	assert.Len(t, dex.batches, 5)
	assert.LessOrEqual(t, dex.maxActive, 2)
}

func TestMarketDataService_PropagatePolicyFailsTheCall(t *testing.T) {
	addrs := addresses(60)
	dex := &fakeDEXClient{
		fail:  map[string]bool{addrs[0]: true},
		pairs: map[string][]entity.PairData{addrs[45]: {pair(addrs[45], "1", 1)}},
	}
	policy := retry.Policy{MaxAttempts: 1, OnExhaustion: retry.Propagate}
	svc := NewMarketDataService(dex, dexConfig(0, 1), policy, metrics.New(nil), zap.NewNop())

	got, err := svc.GetMarketData(context.Background(), addrs)

	assert.Nil(t, got)
	assert.ErrorIs(t, err, entity.ErrUpstreamUnavailable)
	assert.Contains(t, err.Error(), "market data batch 1")
}
