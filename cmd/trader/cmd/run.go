package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/papertrade/broker"
	"github.com/rustyeddy/papertrade/router"
	"github.com/rustyeddy/papertrade/strategies"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Replay a CSV signal file through the router",
	Long: `Route every signal in a CSV file through the safety stack and the
paper trading engine, then print a performance summary.

The file needs a header row. Recognized columns:
  time,strategy,symbol,side,kind,quantity,notional,reference_price,price,stop_price
symbol, side and reference_price are required.

By default signals execute in file order. With --concurrent each strategy
in the file runs in its own goroutine and the router serializes execution.

Example:
  trader run -c papertrade.yaml --signals signals.csv`,
	RunE: runRun,
}

var (
	runSignalsPath string
	runConcurrent  bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runSignalsPath, "signals", "", "path to CSV signal file (required)")
	runCmd.Flags().BoolVar(&runConcurrent, "concurrent", false, "run each strategy concurrently")
	_ = runCmd.MarkFlagRequired("signals")
}

func runRun(cmd *cobra.Command, args []string) error {
	f, err := os.Open(runSignalsPath)
	if err != nil {
		return fmt.Errorf("open signals: %w", err)
	}
	sigs, err := strategies.ReadSignals(f)
	_ = f.Close()
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Routing %d signals from %s\n\n", len(sigs), runSignalsPath)

	var results []router.Result
	if runConcurrent {
		var strats []strategies.Strategy
		for _, s := range strategies.GroupByStrategy(sigs, "manual") {
			strats = append(strats, s)
		}
		results, err = a.Router.Run(ctx, strats, lastPrices(sigs))
		for _, res := range results {
			printResult(out, res)
		}
	} else {
		for _, sig := range sigs {
			if ctx.Err() != nil {
				err = ctx.Err()
				break
			}
			if sig.Strategy == "" {
				sig.Strategy = "manual"
			}
			res := a.Router.HandleSignal(ctx, sig)
			printResult(out, res)
			results = append(results, res)
		}
	}

	filled, skipped := summarize(results)
	fmt.Fprintf(out, "\n%d filled, %d not executed\n", filled, skipped)

	prices := a.Router.Marks()
	printPerformance(out, a.Engine.GetPerformanceMetrics(prices), a.Engine.GetAllPositions(prices))
	if st := a.Router.Breakers(); st.Paused {
		fmt.Fprintf(out, "\n⚠ Trading paused: %s\n  Resume with: trader control resume\n", st.PauseReason)
	}
	return err
}

func lastPrices(sigs []strategies.Signal) broker.Prices {
	prices := make(broker.Prices)
	for _, s := range sigs {
		if s.ReferencePrice > 0 {
			prices[s.Symbol] = s.ReferencePrice
		}
	}
	return prices
}
