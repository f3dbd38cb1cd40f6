package port

import (
	"context"

	"holdings_tracker/internal/entity"
)

// BalanceFetcher returns the wallet's non-zero SPL token balances.
// Whether a failed node query is returned or degrades to no balances is up to the
// fetcher's retry policy. An invalid wallet is always an error.
type BalanceFetcher interface {
	GetBalances(ctx context.Context, walletAddress string) ([]entity.TokenBalance, error)
}

// MarketDataFetcher returns at most one pair per base token. Under a returnPartial
// policy failed batches are dropped and the error is always nil.
type MarketDataFetcher interface {
	GetMarketData(ctx context.Context, tokenAddresses []string) ([]entity.PairData, error)
}

// ScoreFetcher returns known trust scores by address. Under a returnPartial policy it
// degrades to whatever is already stored and the error is always nil.
type ScoreFetcher interface {
	GetScores(ctx context.Context, tokenAddresses []string) (map[string]float64, error)
}
