// journal/journal.go
package journal

import (
	"sync"
	"time"
)

// TradeRecord is the append-only record written for every fill.
type TradeRecord struct {
	TradeID    string
	Time       time.Time
	Symbol     string
	Side       string
	Quantity   float64
	FillPrice  float64
	Commission float64
	RealizedPL float64
	Strategy   string
}

// PerformanceSnapshot is the reporting view of the portfolio after a fill.
type PerformanceSnapshot struct {
	Time           time.Time
	Cash           float64
	PortfolioValue float64
	TotalTrades    int
	WinningTrades  int
	LosingTrades   int
	MaxDrawdownPct float64
	OpenPositions  int
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordSnapshot(PerformanceSnapshot) error
	Close() error
}

// Discard drops everything.
var Discard Journal = discard{}

type discard struct{}

func (discard) RecordTrade(TradeRecord) error            { return nil }
func (discard) RecordSnapshot(PerformanceSnapshot) error { return nil }
func (discard) Close() error                             { return nil }

// Memory keeps records in process. Used by tests and dry runs.
type Memory struct {
	mu        sync.Mutex
	trades    []TradeRecord
	snapshots []PerformanceSnapshot
	closed    bool
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) RecordTrade(t TradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = append(m.trades, t)
	return nil
}

func (m *Memory) RecordSnapshot(s PerformanceSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, s)
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *Memory) Trades() []TradeRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TradeRecord(nil), m.trades...)
}

func (m *Memory) Snapshots() []PerformanceSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PerformanceSnapshot(nil), m.snapshots...)
}

// RealizedTotal sums realized P&L over records, optionally for one symbol.
func RealizedTotal(records []TradeRecord, symbol string) float64 {
	var total float64
	for _, r := range records {
		if symbol != "" && r.Symbol != symbol {
			continue
		}
		total += r.RealizedPL
	}
	return total
}
