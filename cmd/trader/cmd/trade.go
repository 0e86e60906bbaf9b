package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/papertrade/broker"
	"github.com/rustyeddy/papertrade/strategies"
)

var tradeCmd = &cobra.Command{
	Use:   "trade",
	Short: "Place one paper trade through the execution gate",
	Long: `Send a single manual signal through the router: allocation, the
execution gate, the engine and the circuit breakers.

Examples:
  trader trade --symbol AAPL --side buy --qty 10 --ref 150.25
  trader trade --symbol AAPL --side sell --notional 1500 --ref 150 --kind limit --limit 151`,
	RunE: runTrade,
}

var (
	tradeSymbol   string
	tradeSide     string
	tradeKind     string
	tradeQty      float64
	tradeNotional float64
	tradeRef      float64
	tradeLimit    float64
	tradeStop     float64
	tradeStrategy string
)

func init() {
	rootCmd.AddCommand(tradeCmd)

	f := tradeCmd.Flags()
	f.StringVarP(&tradeSymbol, "symbol", "s", "", "symbol to trade (required)")
	f.StringVar(&tradeSide, "side", "buy", "buy or sell")
	f.StringVar(&tradeKind, "kind", "market", "market, limit, stop or stop_limit")
	f.Float64VarP(&tradeQty, "qty", "q", 0, "quantity")
	f.Float64Var(&tradeNotional, "notional", 0, "notional amount, used when --qty is not set")
	f.Float64VarP(&tradeRef, "ref", "r", 0, "reference price (required)")
	f.Float64Var(&tradeLimit, "limit", 0, "limit price for limit and stop_limit orders")
	f.Float64Var(&tradeStop, "stop", 0, "stop trigger for stop and stop_limit orders")
	f.StringVar(&tradeStrategy, "strategy", "manual", "strategy name for allocation and the journal")
	_ = tradeCmd.MarkFlagRequired("symbol")
	_ = tradeCmd.MarkFlagRequired("ref")
}

func tradeSignal() (strategies.Signal, error) {
	side, err := broker.ParseSide(tradeSide)
	if err != nil {
		return strategies.Signal{}, err
	}
	kind, err := broker.ParseKind(tradeKind)
	if err != nil {
		return strategies.Signal{}, err
	}
	sig := strategies.Signal{
		Strategy:       tradeStrategy,
		Symbol:         tradeSymbol,
		Side:           side,
		Kind:           kind,
		Quantity:       tradeQty,
		Notional:       tradeNotional,
		ReferencePrice: tradeRef,
	}
	if tradeLimit > 0 {
		sig.Price = broker.Ptr(tradeLimit)
	}
	if tradeStop > 0 {
		sig.StopPrice = broker.Ptr(tradeStop)
	}
	return sig, nil
}

func runTrade(cmd *cobra.Command, args []string) error {
	sig, err := tradeSignal()
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	res := a.Router.HandleSignal(context.Background(), sig)
	out := cmd.OutOrStdout()
	printResult(out, res)
	if res.Success {
		prices := a.Router.Marks()
		printPerformance(out, a.Engine.GetPerformanceMetrics(prices), a.Engine.GetAllPositions(prices))
		return nil
	}
	return fmt.Errorf("trade not executed: %s", res.Status)
}
