package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/papertrade/router"
	"github.com/rustyeddy/papertrade/sim"
)

func money(x float64) string {
	return "$" + decimal.NewFromFloat(x).StringFixed(2)
}

func qty(x float64) string {
	return decimal.NewFromFloat(x).Round(6).String()
}

func pct(x float64) string {
	return decimal.NewFromFloat(x).StringFixed(2) + "%"
}

func printResult(out io.Writer, res router.Result) {
	switch {
	case res.Success:
		fmt.Fprintf(out, "✓ %s %s %s @ %s  commission %s  realized %s  cash %s\n",
			res.Side, qty(res.Quantity), res.Symbol, money(res.FillPrice),
			money(res.Commission), money(res.RealizedPL), money(res.Cash))
	default:
		fmt.Fprintf(out, "✗ %s %s [%s] %s\n", res.Side, res.Symbol, res.Status, res.Reason)
	}
	if res.Success && res.Paused {
		fmt.Fprintf(out, "  ⚠ trading paused: %s\n", res.Reason)
	}
	if res.Success && res.Err != nil {
		fmt.Fprintf(out, "  ⚠ %v\n", res.Err)
	}
}

func printPerformance(out io.Writer, m sim.Metrics, positions []sim.PositionView) {
	fmt.Fprintln(out, "\nPerformance")
	fmt.Fprintf(out, "  Portfolio value: %s (cash %s)\n", money(m.PortfolioValue), money(m.Cash))
	fmt.Fprintf(out, "  Return:          %s\n", pct(m.ReturnPct))
	fmt.Fprintf(out, "  Realized P/L:    %s  Unrealized P/L: %s\n", money(m.RealizedPL), money(m.UnrealizedPL))
	fmt.Fprintf(out, "  Commission:      %s\n", money(m.Commission))
	fmt.Fprintf(out, "  Trades:          %d (won %d, lost %d, win rate %s)\n",
		m.TotalTrades, m.WinningTrades, m.LosingTrades, pct(m.WinRate*100))
	fmt.Fprintf(out, "  Max drawdown:    %s\n", pct(m.MaxDrawdownPct))

	open := 0
	for _, p := range positions {
		if p.IsOpen() {
			open++
		}
	}
	if open == 0 {
		return
	}
	fmt.Fprintln(out, "\nOpen positions")
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  SYMBOL\tQTY\tAVG\tMARK\tUNREALIZED")
	for _, p := range positions {
		if !p.IsOpen() {
			continue
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n", p.Symbol, qty(p.Quantity), money(p.AvgPrice), money(p.Mark), money(p.UnrealizedPL))
	}
	_ = tw.Flush()
}

func summarize(results []router.Result) (filled, notFilled int) {
	for _, r := range results {
		if r.Success {
			filled++
		} else {
			notFilled++
		}
	}
	return filled, notFilled
}
