package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const tradeColumns = `trade_id, time, symbol, side, quantity, fill_price, commission, realized_pl, strategy`

type scanner interface {
	Scan(dest ...any) error
}

func scanTrade(s scanner) (TradeRecord, error) {
	var rec TradeRecord
	err := s.Scan(
		&rec.TradeID,
		&rec.Time,
		&rec.Symbol,
		&rec.Side,
		&rec.Quantity,
		&rec.FillPrice,
		&rec.Commission,
		&rec.RealizedPL,
		&rec.Strategy,
	)
	return rec, err
}

// GetTrade returns a single trade record by ID.
func (j *SQLite) GetTrade(tradeID string) (TradeRecord, error) {
	row := j.db.QueryRow(`SELECT `+tradeColumns+` FROM trades WHERE trade_id = ?`, tradeID)

	rec, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TradeRecord{}, fmt.Errorf("trade %q not found", tradeID)
		}
		return TradeRecord{}, err
	}
	return rec, nil
}

// ListTrades returns every trade in fill order, optionally for one symbol.
func (j *SQLite) ListTrades(symbol string) ([]TradeRecord, error) {
	q := `SELECT ` + tradeColumns + ` FROM trades`
	var args []any
	if symbol != "" {
		q += ` WHERE symbol = ?`
		args = append(args, symbol)
	}
	q += ` ORDER BY time ASC, trade_id ASC`
	return j.queryTrades(q, args...)
}

// ListTradesBetween returns trades filled within [start, end). Times are
// stored in UTC, which keeps the text comparison in order.
func (j *SQLite) ListTradesBetween(start, end time.Time) ([]TradeRecord, error) {
	return j.queryTrades(`
		SELECT `+tradeColumns+`
		FROM trades
		WHERE time >= ? AND time < ?
		ORDER BY time ASC, trade_id ASC`, start.UTC(), end.UTC())
}

// RealizedPL sums realized P&L in the journal, optionally for one symbol.
func (j *SQLite) RealizedPL(symbol string) (float64, error) {
	q := `SELECT COALESCE(SUM(realized_pl), 0) FROM trades`
	var args []any
	if symbol != "" {
		q += ` WHERE symbol = ?`
		args = append(args, symbol)
	}
	var total float64
	if err := j.db.QueryRow(q, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// LatestSnapshot returns the most recent performance snapshot.
func (j *SQLite) LatestSnapshot() (PerformanceSnapshot, error) {
	var s PerformanceSnapshot
	err := j.db.QueryRow(`
		SELECT time, cash, portfolio_value, total_trades, winning_trades, losing_trades, max_drawdown_pct, open_positions
		FROM snapshots
		ORDER BY time DESC, rowid DESC
		LIMIT 1`).Scan(
		&s.Time,
		&s.Cash,
		&s.PortfolioValue,
		&s.TotalTrades,
		&s.WinningTrades,
		&s.LosingTrades,
		&s.MaxDrawdownPct,
		&s.OpenPositions,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return PerformanceSnapshot{}, fmt.Errorf("no snapshots recorded")
	}
	return s, err
}

func (j *SQLite) queryTrades(q string, args ...any) ([]TradeRecord, error) {
	rows, err := j.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		rec, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
