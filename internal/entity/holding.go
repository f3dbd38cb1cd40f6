package entity

import "time"

// MarketData is the deduplicated pair for a token annotated with its trust score.
type MarketData struct {
	PairData
	Score *float64 `json:"score,omitempty"`
}

// TokenHolding joins a wallet balance with the market data for the same mint.
type TokenHolding struct {
	Address         string     `json:"address"`
	Balance         float64    `json:"balance"`
	Decimals        int        `json:"decimals"`
	USDValue        float64    `json:"usdValue"`
	PercentageOwned float64    `json:"percentageOwned"`
	MarketData      MarketData `json:"marketData"`
}

// Snapshot is the cached result of one successful refresh cycle.
type Snapshot struct {
	Holdings    []TokenHolding `json:"holdings"`
	LastUpdated time.Time      `json:"lastUpdated"`
}

// Summary aggregates a holdings set.
type Summary struct {
	TotalValue            float64 `json:"totalValue"`
	TotalHoldings         int     `json:"totalHoldings"`
	SignificantPositions  int     `json:"significantPositions"`
	AveragePosition       float64 `json:"averagePosition"`
	TopHoldingsValue      float64 `json:"topHoldingsValue"`
	TopHoldingsPercentage float64 `json:"topHoldingsPercentage"`
}

// RiskFlags are heuristic warnings attached to a single holding.
type RiskFlags struct {
	HighConcentration    bool     `json:"highConcentration"`
	LowLiquidity         bool     `json:"lowLiquidity"`
	LowVolume            bool     `json:"lowVolume"`
	LiquidityToMarketCap *float64 `json:"liquidityToMarketCap,omitempty"`
	VolumeToMarketCap    *float64 `json:"volumeToMarketCap,omitempty"`
}

// HoldingReport is a holding together with its risk flags.
type HoldingReport struct {
	TokenHolding
	Risk RiskFlags `json:"risk"`
}
