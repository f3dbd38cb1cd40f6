package service

import "holdings_tracker/internal/entity"

// Thresholds used by the portfolio summary and the risk report.
const (
	DefaultSignificantThreshold = 10.0   // percent of supply
	HighConcentrationPercent    = 25.0   // percent of supply
	LowLiquidityUSD             = 50_000 // pooled USD
	LowVolumeUSD                = 10_000 // 24h USD volume
)

// Summarize aggregates a holdings set. Significant positions are those owning at least
// DefaultSignificantThreshold percent of supply.
func Summarize(holdings []entity.TokenHolding) entity.Summary {
	var sum entity.Summary
	sum.TotalHoldings = len(holdings)

	for _, h := range holdings {
		sum.TotalValue += h.USDValue
		if h.PercentageOwned >= DefaultSignificantThreshold {
			sum.SignificantPositions++
			sum.TopHoldingsValue += h.USDValue
		}
	}
	if sum.TotalHoldings > 0 {
		sum.AveragePosition = sum.TotalValue / float64(sum.TotalHoldings)
	}
	if sum.TotalValue > 0 {
		sum.TopHoldingsPercentage = sum.TopHoldingsValue * 100 / sum.TotalValue
	}
	return sum
}

// Risk computes the heuristic warnings for one holding.
func Risk(h entity.TokenHolding) entity.RiskFlags {
	liquidity := h.MarketData.LiquidityUSD()
	flags := entity.RiskFlags{
		HighConcentration: h.PercentageOwned > HighConcentrationPercent,
		LowLiquidity:      liquidity > 0 && liquidity < LowLiquidityUSD,
		LowVolume:         h.MarketData.Volume.H24 > 0 && h.MarketData.Volume.H24 < LowVolumeUSD,
	}
	if mc := h.MarketData.MarketCap; mc != nil && *mc > 0 {
		if liquidity > 0 {
			ratio := liquidity * 100 / *mc
			flags.LiquidityToMarketCap = &ratio
		}
		if volume := h.MarketData.Volume.H24; volume > 0 {
			ratio := volume * 100 / *mc
			flags.VolumeToMarketCap = &ratio
		}
	}
	return flags
}

// SignificantHoldings returns the holdings owning at least threshold percent of supply,
// in their existing order, each with its risk flags.
func SignificantHoldings(holdings []entity.TokenHolding, threshold float64) []entity.HoldingReport {
	out := make([]entity.HoldingReport, 0)
	for _, h := range holdings {
		if h.PercentageOwned < threshold {
			continue
		}
		out = append(out, entity.HoldingReport{TokenHolding: h, Risk: Risk(h)})
	}
	return out
}
