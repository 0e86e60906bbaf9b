package journal

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, time, symbol, side, quantity, fill_price, commission, realized_pl, strategy)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, t.Time.UTC(), t.Symbol, t.Side, t.Quantity,
		t.FillPrice, t.Commission, t.RealizedPL, t.Strategy,
	)
	return err
}

func (j *SQLite) RecordSnapshot(s PerformanceSnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO snapshots
		(time, cash, portfolio_value, total_trades, winning_trades, losing_trades, max_drawdown_pct, open_positions)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.Time.UTC(), s.Cash, s.PortfolioValue, s.TotalTrades, s.WinningTrades,
		s.LosingTrades, s.MaxDrawdownPct, s.OpenPositions,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
