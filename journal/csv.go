// journal/csv.go
package journal

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

var (
	tradesHeader   = []string{"trade_id", "time", "symbol", "side", "quantity", "fill_price", "commission", "realized_pl", "strategy"}
	snapshotHeader = []string{"time", "cash", "portfolio_value", "total_trades", "winning_trades", "losing_trades", "max_drawdown_pct", "open_positions"}
)

type CSVJournal struct {
	trades    *csv.Writer
	snapshots *csv.Writer
	tf, sf    *os.File
}

// NewCSV creates (truncating) the trades and snapshots files and writes
// their headers.
func NewCSV(tradesPath, snapshotsPath string) (*CSVJournal, error) {
	tf, err := os.Create(tradesPath)
	if err != nil {
		return nil, err
	}
	sf, err := os.Create(snapshotsPath)
	if err != nil {
		_ = tf.Close()
		return nil, err
	}

	tw := csv.NewWriter(tf)
	sw := csv.NewWriter(sf)

	j := &CSVJournal{tw, sw, tf, sf}
	if err := j.writeRow(tw, tradesHeader); err != nil {
		_ = j.Close()
		return nil, fmt.Errorf("write trades header: %w", err)
	}
	if err := j.writeRow(sw, snapshotHeader); err != nil {
		_ = j.Close()
		return nil, fmt.Errorf("write snapshots header: %w", err)
	}
	return j, nil
}

func (j *CSVJournal) RecordTrade(t TradeRecord) error {
	return j.writeRow(j.trades, []string{
		t.TradeID,
		t.Time.Format(time.RFC3339Nano),
		t.Symbol,
		t.Side,
		money(t.Quantity),
		money(t.FillPrice),
		money(t.Commission),
		money(t.RealizedPL),
		t.Strategy,
	})
}

func (j *CSVJournal) RecordSnapshot(s PerformanceSnapshot) error {
	return j.writeRow(j.snapshots, []string{
		s.Time.Format(time.RFC3339Nano),
		money(s.Cash),
		money(s.PortfolioValue),
		strconv.Itoa(s.TotalTrades),
		strconv.Itoa(s.WinningTrades),
		strconv.Itoa(s.LosingTrades),
		money(s.MaxDrawdownPct),
		strconv.Itoa(s.OpenPositions),
	})
}

func (j *CSVJournal) writeRow(w *csv.Writer, row []string) error {
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func (j *CSVJournal) Close() error {
	j.trades.Flush()
	if err := j.trades.Error(); err != nil {
		return err
	}
	j.snapshots.Flush()
	if err := j.snapshots.Error(); err != nil {
		return err
	}

	if err := j.tf.Close(); err != nil {
		return err
	}
	return j.sf.Close()
}

// money renders x with at most 8 decimals and no float noise,
// e.g. 8988.99 instead of 8988.990000000002.
func money(x float64) string {
	return decimal.NewFromFloat(x).Round(8).String()
}
