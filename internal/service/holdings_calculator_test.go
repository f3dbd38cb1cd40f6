package service

import (
	"context"
	"testing"

	"holdings_tracker/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestComputeHoldings_ValueAndOwnership(t *testing.T) {
	balances := []entity.TokenBalance{{Mint: "A", Amount: "1000000000", Decimals: 6, UIAmount: 1000}}
	p := pair("A", "0.01", 100)
	p.Fdv = ptr(100000.0)

	got := ComputeHoldings(balances, []entity.PairData{p}, map[string]float64{"A": 87})

	require.Len(t, got, 1)
	h := got[0]
	assert.Equal(t, "A", h.Address)
	assert.Equal(t, 1000.0, h.Balance)
	assert.Equal(t, 6, h.Decimals)
	assert.Equal(t, 10.0, h.USDValue)
	assert.Equal(t, 0.01, h.PercentageOwned)
	require.NotNil(t, h.MarketData.Score)
	assert.Equal(t, 87.0, *h.MarketData.Score)
	assert.Equal(t, "A-0.01", h.MarketData.PairAddress)
}

func TestComputeHoldings_NoFDVMeansZeroOwnership(t *testing.T) {
	balances := []entity.TokenBalance{{Mint: "A", Amount: "5", Decimals: 0}}
	got := ComputeHoldings(balances, []entity.PairData{pair("A", "2", 1)}, nil)

	require.Len(t, got, 1)
	assert.Equal(t, 10.0, got[0].USDValue)
	assert.Zero(t, got[0].PercentageOwned)
	assert.Nil(t, got[0].MarketData.Score)
}

func TestComputeHoldings_JoinDropsUnmatched(t *testing.T) {
	balances := []entity.TokenBalance{
		{Mint: "A", Amount: "1", Decimals: 0},
		{Mint: "OnlyBalance", Amount: "1", Decimals: 0},
	}
	pairs := []entity.PairData{pair("A", "1", 1), pair("OnlyPair", "1", 1)}

	got := ComputeHoldings(balances, pairs, nil)

	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].Address)
}

func TestComputeHoldings_FirstPairWins(t *testing.T) {
	balances := []entity.TokenBalance{{Mint: "A", Amount: "1", Decimals: 0}}
	got := ComputeHoldings(balances, []entity.PairData{pair("A", "3", 1), pair("A", "9", 1000)}, nil)

	require.Len(t, got, 1)
	assert.Equal(t, 3.0, got[0].USDValue)
}

func TestComputeHoldings_SortedByValueThenAddress(t *testing.T) {
	balances := []entity.TokenBalance{
		{Mint: "C", Amount: "1", Decimals: 0},
		{Mint: "B", Amount: "1", Decimals: 0},
		{Mint: "A", Amount: "1", Decimals: 0},
		{Mint: "D", Amount: "1", Decimals: 0},
	}
	pairs := []entity.PairData{pair("A", "5", 1), pair("B", "5", 1), pair("C", "1", 1), pair("D", "8", 1)}

	got := ComputeHoldings(balances, pairs, nil)

	order := make([]string, len(got))
	for i, h := range got {
		order[i] = h.Address
	}
	assert.Equal(t, []string{"D", "A", "B", "C"}, order)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].USDValue, got[i].USDValue)
	}
}

func TestComputeHoldings_Idempotent(t *testing.T) {
	balances := []entity.TokenBalance{
		{Mint: "A", Amount: "123456789", Decimals: 4},
		{Mint: "B", Amount: "42", Decimals: 0},
	}
	pa := pair("A", "0.000123", 10)
	pa.Fdv = ptr(987654.0)
	pairs := []entity.PairData{pa, pair("B", "1.5", 1)}
	scores := map[string]float64{"B": 12}

	assert.Equal(t, ComputeHoldings(balances, pairs, scores), ComputeHoldings(balances, pairs, scores))
}

func TestComputeHoldings_FallsBackToUIAmount(t *testing.T) {
	balances := []entity.TokenBalance{{Mint: "A", Amount: "", Decimals: 6, UIAmount: 2.5}}
	got := ComputeHoldings(balances, []entity.PairData{pair("A", "4", 1)}, nil)

	require.Len(t, got, 1)
	assert.Equal(t, 10.0, got[0].USDValue)
}

func TestHoldingsCalculator_AttachesScores(t *testing.T) {
	calc := NewHoldingsCalculator(&fakeScoreFetcher{scores: map[string]float64{"A": 64}}, zap.NewNop())
	balances := []entity.TokenBalance{{Mint: "A", Amount: "1", Decimals: 0}}

	got, err := calc.Compute(context.Background(), balances, []entity.PairData{pair("A", "1", 1)}, "wallet")

	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].MarketData.Score)
	assert.Equal(t, 64.0, *got[0].MarketData.Score)
}

func TestDedupThenComputeHoldings_HighestVolumePairPricesTheHolding(t *testing.T) {
	balances := []entity.TokenBalance{{Mint: "A", Amount: "1000000000", Decimals: 6, UIAmount: 1000}}
	busy := pair("A", "0.01", 500)
	busy.Fdv = ptr(100000.0)
	quiet := pair("A", "0.02", 50)
	quiet.Fdv = ptr(100000.0)

	deduped := DedupByVolume([]entity.PairData{busy, quiet})
	require.Len(t, deduped, 1)
	assert.Equal(t, "0.01", deduped[0].PriceUsd)

	got := ComputeHoldings(balances, deduped, nil)

	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].Address)
	assert.Equal(t, 10.0, got[0].USDValue)
	assert.Equal(t, 0.01, got[0].PercentageOwned)
	assert.Equal(t, 500.0, got[0].MarketData.Volume.H24)
}
