package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"holdings_tracker/internal/entity"
	"holdings_tracker/internal/service"

	"github.com/shopspring/decimal"
)

// writeReport prints the significant holdings with their risk indicators, then the portfolio summary.
func writeReport(w io.Writer, wallet string, snap *entity.Snapshot, threshold float64) error {
	reports := service.SignificantHoldings(snap.Holdings, threshold)
	summary := service.Summarize(snap.Holdings)

	var b strings.Builder
	fmt.Fprintf(&b, "Wallet: %s\n", wallet)
	fmt.Fprintf(&b, "As of:  %s\n\n", snap.LastUpdated.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "=== Significant Holdings (>=%s%% of supply) ===\n\n", trim(threshold, 2))

	if len(reports) == 0 {
		b.WriteString("No holdings above the threshold.\n\n")
	}
	for _, r := range reports {
		md := r.MarketData
		fmt.Fprintf(&b, "Token: %s (%s)\n", md.BaseToken.Name, md.BaseToken.Symbol)
		fmt.Fprintf(&b, "Address: %s\n", r.Address)
		fmt.Fprintf(&b, "Balance: %s tokens\n", trim(r.Balance, 4))
		fmt.Fprintf(&b, "USD Value: $%s\n", trim(r.USDValue, 2))
		fmt.Fprintf(&b, "Percentage Owned: %s%%\n", fixed(r.PercentageOwned, 2))
		if md.Score != nil {
			fmt.Fprintf(&b, "Trust Score: %s\n", trim(*md.Score, 1))
		}

		tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "  Price\t$%s\n", md.PriceUsd)
		fmt.Fprintf(tw, "  24h Change\t%s%%\n", fixed(md.PriceChange.H24, 2))
		fmt.Fprintf(tw, "  24h Volume\t$%s\n", trim(md.Volume.H24, 2))
		fmt.Fprintf(tw, "  24h Transactions\t%d\n", md.Txns.H24.Buys+md.Txns.H24.Sells)
		if r.Risk.VolumeToMarketCap != nil {
			fmt.Fprintf(tw, "  Volume/MCap\t%s%%\n", fixed(*r.Risk.VolumeToMarketCap, 2))
		}
		fmt.Fprintf(tw, "  Market Cap\t%s\n", optionalUSD(md.MarketCap))
		fmt.Fprintf(tw, "  FDV\t%s\n", optionalUSD(md.Fdv))
		if md.Liquidity != nil {
			fmt.Fprintf(tw, "  Liquidity\t$%s\n", trim(md.Liquidity.Usd, 2))
		} else {
			fmt.Fprintf(tw, "  Liquidity\tN/A\n")
		}
		if r.Risk.LiquidityToMarketCap != nil {
			fmt.Fprintf(tw, "  Liquidity/MCap\t%s%%\n", fixed(*r.Risk.LiquidityToMarketCap, 2))
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		if r.Risk.HighConcentration || r.Risk.LowLiquidity || r.Risk.LowVolume {
			b.WriteString("Risk Indicators:\n")
			if r.Risk.HighConcentration {
				fmt.Fprintf(&b, "  ! High ownership concentration (>%s%%)\n", trim(service.HighConcentrationPercent, 0))
			}
			if r.Risk.LowLiquidity {
				b.WriteString("  ! Low liquidity (<$50k)\n")
			}
			if r.Risk.LowVolume {
				b.WriteString("  ! Low trading volume (<$10k/24h)\n")
			}
		}
		b.WriteString("\n-------------------\n\n")
	}

	b.WriteString("=== Portfolio Summary ===\n")
	fmt.Fprintf(&b, "Total Holdings: %d tokens\n", summary.TotalHoldings)
	fmt.Fprintf(&b, "Total Portfolio Value: $%s\n", trim(summary.TotalValue, 2))
	fmt.Fprintf(&b, "Significant Positions (>=%s%%): %d\n", trim(service.DefaultSignificantThreshold, 0), summary.SignificantPositions)
	fmt.Fprintf(&b, "Average Position Size: $%s\n", trim(summary.AveragePosition, 2))
	fmt.Fprintf(&b, "Value in Significant Positions: $%s (%s%% of portfolio)\n",
		trim(summary.TopHoldingsValue, 2), fixed(summary.TopHoldingsPercentage, 2))

	_, err := io.WriteString(w, b.String())
	return err
}

// trim rounds to places and drops trailing zeros.
func trim(v float64, places int32) string {
	return decimal.NewFromFloat(v).Round(places).String()
}

// fixed rounds to exactly places digits.
func fixed(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}

func optionalUSD(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return "$" + trim(*v, 2)
}
