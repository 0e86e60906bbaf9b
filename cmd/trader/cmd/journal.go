package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/papertrade/internal/id"
	"github.com/rustyeddy/papertrade/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the SQLite trade journal",
	Long: `Query and display records from a SQLite trade journal.

Subcommands:
  trade  - Show one trade by ID
  list   - List trades, optionally for one symbol
  day    - List trades filled on a given day
  pnl    - Total realized P/L
  latest - Latest performance snapshot

Examples:
  trader journal trade 01HZX...
  trader journal list --symbol AAPL
  trader journal day 2024-01-15`,
}

var journalTradeCmd = &cobra.Command{
	Use:   "trade <trade-id>",
	Short: "Show one trade",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrade,
}

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List trades",
	Args:  cobra.NoArgs,
	RunE:  runJournalList,
}

var journalDayCmd = &cobra.Command{
	Use:   "day <YYYY-MM-DD>",
	Short: "List trades filled on a specific day",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalDay,
}

var journalPnLCmd = &cobra.Command{
	Use:   "pnl",
	Short: "Total realized P/L",
	Args:  cobra.NoArgs,
	RunE:  runJournalPnL,
}

var journalLatestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Show the latest performance snapshot",
	Args:  cobra.NoArgs,
	RunE:  runJournalLatest,
}

var (
	journalDBPath string
	journalSymbol string
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalTradeCmd, journalListCmd, journalDayCmd, journalPnLCmd, journalLatestCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "", "path to SQLite journal (default journal.db_path from config)")
	journalListCmd.Flags().StringVar(&journalSymbol, "symbol", "", "only this symbol")
	journalPnLCmd.Flags().StringVar(&journalSymbol, "symbol", "", "only this symbol")
}

func openJournalDB() (*journal.SQLite, error) {
	path := journalDBPath
	if path == "" {
		cfg, _, err := setup()
		if err != nil {
			return nil, err
		}
		if cfg.Journal.Type != "sqlite" {
			return nil, fmt.Errorf("journal.type is %q; pass --db or configure a sqlite journal", cfg.Journal.Type)
		}
		path = cfg.Journal.DBPath
	}
	j, err := journal.NewSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return j, nil
}

func runJournalTrade(cmd *cobra.Command, args []string) error {
	j, err := openJournalDB()
	if err != nil {
		return err
	}
	defer j.Close()

	rec, err := j.GetTrade(args[0])
	if err != nil {
		return fmt.Errorf("get trade: %w", err)
	}
	out := cmd.OutOrStdout()
	printTrades(out, []journal.TradeRecord{rec})

	// Trade ids are order ids, so they carry the placement time.
	if placed, err := id.Time(rec.TradeID); err == nil {
		fmt.Fprintf(out, "\nOrder placed %s, filled %s later\n",
			placed.Format(time.RFC3339), rec.Time.Sub(placed).Round(time.Millisecond))
	}
	return nil
}

func runJournalList(cmd *cobra.Command, args []string) error {
	j, err := openJournalDB()
	if err != nil {
		return err
	}
	defer j.Close()

	recs, err := j.ListTrades(journalSymbol)
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}
	printTrades(cmd.OutOrStdout(), recs)
	return nil
}

func runJournalDay(cmd *cobra.Command, args []string) error {
	start, end, err := dayBounds(time.Local, args[0])
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}

	j, err := openJournalDB()
	if err != nil {
		return err
	}
	defer j.Close()

	recs, err := j.ListTradesBetween(start, end)
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}
	printTrades(cmd.OutOrStdout(), recs)
	return nil
}

func runJournalPnL(cmd *cobra.Command, args []string) error {
	j, err := openJournalDB()
	if err != nil {
		return err
	}
	defer j.Close()

	total, err := j.RealizedPL(journalSymbol)
	if err != nil {
		return fmt.Errorf("realized P/L: %w", err)
	}
	label := "all symbols"
	if journalSymbol != "" {
		label = journalSymbol
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Realized P/L (%s): %s\n", label, money(total))
	return nil
}

func runJournalLatest(cmd *cobra.Command, args []string) error {
	j, err := openJournalDB()
	if err != nil {
		return err
	}
	defer j.Close()

	s, err := j.LatestSnapshot()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Snapshot %s\n", s.Time.Format(time.RFC3339))
	fmt.Fprintf(out, "  Portfolio value: %s (cash %s)\n", money(s.PortfolioValue), money(s.Cash))
	fmt.Fprintf(out, "  Trades:          %d (won %d, lost %d)\n", s.TotalTrades, s.WinningTrades, s.LosingTrades)
	fmt.Fprintf(out, "  Max drawdown:    %s\n", pct(s.MaxDrawdownPct))
	fmt.Fprintf(out, "  Open positions:  %d\n", s.OpenPositions)
	return nil
}

func printTrades(out io.Writer, recs []journal.TradeRecord) {
	if len(recs) == 0 {
		fmt.Fprintln(out, "no trades")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tID\tSTRATEGY\tSYMBOL\tSIDE\tQTY\tPRICE\tCOMMISSION\tREALIZED")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Time.Format("2006-01-02 15:04:05"), r.TradeID, r.Strategy, r.Symbol, r.Side,
			qty(r.Quantity), money(r.FillPrice), money(r.Commission), money(r.RealizedPL))
	}
	_ = tw.Flush()
	fmt.Fprintf(out, "\n%d trades, realized %s\n", len(recs), money(journal.RealizedTotal(recs, "")))
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return start, end, nil
}
