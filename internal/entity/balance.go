package entity

// TokenBalance is the wallet's position in one SPL mint at the time of the query.
type TokenBalance struct {
	Mint     string  `json:"mint"`
	Amount   string  `json:"amount"` // raw base units
	Decimals int     `json:"decimals"`
	UIAmount float64 `json:"uiAmount"`
}
