package main

import (
	"strings"
	"testing"
	"time"

	"holdings_tracker/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReport(t *testing.T) {
	score := 72.5
	mcap := 400_000.0
	big := entity.TokenHolding{Address: "MintA", Balance: 1_000_000, USDValue: 600, PercentageOwned: 30}
	big.MarketData.BaseToken = entity.DEXToken{Address: "MintA", Name: "Alpha", Symbol: "ALP"}
	big.MarketData.PriceUsd = "0.0006"
	big.MarketData.Liquidity = &entity.DEXLiquidity{Usd: 20_000}
	big.MarketData.MarketCap = &mcap
	big.MarketData.Score = &score
	big.MarketData.Volume.H24 = 20_000
	big.MarketData.Txns.H24 = entity.TxnSummary{Buys: 12, Sells: 8}
	small := entity.TokenHolding{Address: "MintB", Balance: 5, USDValue: 400, PercentageOwned: 1}

	snap := &entity.Snapshot{
		Holdings:    []entity.TokenHolding{big, small},
		LastUpdated: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	var out strings.Builder
	require.NoError(t, writeReport(&out, "Wallet1", snap, 10))
	got := out.String()

	assert.Contains(t, got, "Wallet: Wallet1")
	assert.Contains(t, got, "As of:  2024-06-01T12:00:00Z")
	assert.Contains(t, got, "Token: Alpha (ALP)")
	assert.Contains(t, got, "Percentage Owned: 30.00%")
	assert.Contains(t, got, "Trust Score: 72.5")
	assert.Regexp(t, `Liquidity/MCap\s+5\.00%`, got)
	assert.Regexp(t, `Volume/MCap\s+5\.00%`, got)
	assert.Regexp(t, `24h Transactions\s+20\n`, got)
	assert.NotContains(t, got, "Low trading volume")
	assert.Contains(t, got, "High ownership concentration (>25%)")
	assert.Contains(t, got, "Low liquidity (<$50k)")
	assert.NotContains(t, got, "MintB")
	assert.Contains(t, got, "Total Holdings: 2 tokens")
	assert.Contains(t, got, "Total Portfolio Value: $1000")
	assert.Contains(t, got, "Significant Positions (>=10%): 1")
	assert.Contains(t, got, "Value in Significant Positions: $600 (60.00% of portfolio)")
}

func TestWriteReport_NothingSignificant(t *testing.T) {
	snap := &entity.Snapshot{Holdings: []entity.TokenHolding{{Address: "MintB", USDValue: 1, PercentageOwned: 1}}}

	var out strings.Builder
	require.NoError(t, writeReport(&out, "Wallet1", snap, 10))
	assert.Contains(t, out.String(), "No holdings above the threshold.")
}
