package service

import (
	"context"
	"fmt"
	"sort"

	"holdings_tracker/internal/entity"
	"holdings_tracker/internal/port"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

// HoldingsCalculator joins balances with market data and trust scores.
type HoldingsCalculator struct {
	scores port.ScoreFetcher
	logger *zap.Logger
}

func NewHoldingsCalculator(scores port.ScoreFetcher, logger *zap.Logger) *HoldingsCalculator {
	return &HoldingsCalculator{
		scores: scores,
		logger: logger.Named("HoldingsCalculator"),
	}
}

// Compute looks up scores for the pairs' base tokens and builds the sorted holdings.
func (c *HoldingsCalculator) Compute(ctx context.Context, balances []entity.TokenBalance, pairs []entity.PairData, wallet string) ([]entity.TokenHolding, error) {
	addresses := make([]string, 0, len(pairs))
	for _, p := range pairs {
		addresses = append(addresses, p.BaseToken.Address)
	}
	scores, err := c.scores.GetScores(ctx, addresses)
	if err != nil {
		return nil, fmt.Errorf("fetch scores: %w", err)
	}

	holdings := ComputeHoldings(balances, pairs, scores)
	c.logger.Info("Computed holdings",
		zap.String("wallet", wallet),
		zap.Int("balances", len(balances)),
		zap.Int("pairs", len(pairs)),
		zap.Int("scores", len(scores)),
		zap.Int("holdings", len(holdings)))
	return holdings, nil
}

// ComputeHoldings builds one holding per mint present in both balances and pairs.
// The first pair for a base token wins. Result is sorted by USD value descending,
// then by address.
func ComputeHoldings(balances []entity.TokenBalance, pairs []entity.PairData, scores map[string]float64) []entity.TokenHolding {
	pairByToken := make(map[string]entity.PairData, len(pairs))
	for _, p := range pairs {
		if _, ok := pairByToken[p.BaseToken.Address]; !ok {
			pairByToken[p.BaseToken.Address] = p
		}
	}

	holdings := make([]entity.TokenHolding, 0, len(balances))
	seen := make(map[string]struct{}, len(balances))
	for _, b := range balances {
		pair, ok := pairByToken[b.Mint]
		if !ok {
			continue
		}
		if _, dup := seen[b.Mint]; dup {
			continue
		}
		seen[b.Mint] = struct{}{}

		price, err := decimal.NewFromString(pair.PriceUsd)
		if err != nil {
			price = decimal.Zero
		}
		amount := uiAmount(b)
		usd := amount.Mul(price)

		pct := decimal.Zero
		if pair.Fdv != nil && *pair.Fdv > 0 && price.IsPositive() {
			// amount / (fdv / price) * 100, rearranged to avoid dividing twice.
			pct = usd.Mul(hundred).Div(decimal.NewFromFloat(*pair.Fdv))
		}

		md := entity.MarketData{PairData: pair}
		if score, ok := scores[b.Mint]; ok {
			md.Score = &score
		}

		holdings = append(holdings, entity.TokenHolding{
			Address:         b.Mint,
			Balance:         amount.InexactFloat64(),
			Decimals:        b.Decimals,
			USDValue:        usd.InexactFloat64(),
			PercentageOwned: pct.InexactFloat64(),
			MarketData:      md,
		})
	}

	sort.Slice(holdings, func(i, j int) bool {
		if holdings[i].USDValue != holdings[j].USDValue {
			return holdings[i].USDValue > holdings[j].USDValue
		}
		return holdings[i].Address < holdings[j].Address
	})
	return holdings
}

// uiAmount prefers the exact raw amount and falls back to the float the RPC reported.
func uiAmount(b entity.TokenBalance) decimal.Decimal {
	if raw, err := decimal.NewFromString(b.Amount); err == nil {
		return raw.Shift(int32(-b.Decimals))
	}
	return decimal.NewFromFloat(b.UIAmount)
}
