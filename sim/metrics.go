package sim

import (
	"context"
	"sort"
	"time"

	"github.com/rustyeddy/papertrade/broker"
	"github.com/rustyeddy/papertrade/journal"
)

// PositionView is a position valued at a mark price.
type PositionView struct {
	broker.Position
	Mark         float64
	MarketValue  float64
	UnrealizedPL float64
}

// Metrics is the performance projection of the portfolio.
type Metrics struct {
	InitialCash    float64
	Cash           float64
	PortfolioValue float64
	PeakValue      float64
	ReturnPct      float64
	RealizedPL     float64
	UnrealizedPL   float64
	Commission     float64
	TotalTrades    int
	WinningTrades  int
	LosingTrades   int
	WinRate        float64
	MaxDrawdownPct float64
	OpenPositions  int
}

// Snapshot converts the metrics into the journal's reporting shape.
func (m Metrics) Snapshot(at time.Time) journal.PerformanceSnapshot {
	return journal.PerformanceSnapshot{
		Time:           at,
		Cash:           m.Cash,
		PortfolioValue: m.PortfolioValue,
		TotalTrades:    m.TotalTrades,
		WinningTrades:  m.WinningTrades,
		LosingTrades:   m.LosingTrades,
		MaxDrawdownPct: m.MaxDrawdownPct,
		OpenPositions:  m.OpenPositions,
	}
}

// GetPosition returns the position for symbol, including a closed one kept
// for its realized P&L.
func (e *Engine) GetPosition(ctx context.Context, symbol string) (broker.Position, bool) {
	_ = ctx
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.positions[symbol]
	if !ok {
		return broker.Position{}, false
	}
	return *p, true
}

// GetAllPositions values every known position, sorted by symbol. Prices
// missing from the map fall back to the last reference price seen for the
// symbol.
func (e *Engine) GetAllPositions(prices broker.Prices) []PositionView {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.positionsLocked(prices)
}

// GetPortfolioValue is cash plus the marked value of open positions.
func (e *Engine) GetPortfolioValue(ctx context.Context, prices broker.Prices) (float64, error) {
	_ = ctx
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.portfolioValueLocked(prices), nil
}

// GetPerformanceMetrics reports counters and valuations.
func (e *Engine) GetPerformanceMetrics(prices broker.Prices) Metrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.metricsLocked(prices)
}

func (e *Engine) markFor(symbol string, prices broker.Prices) float64 {
	if px, ok := prices[symbol]; ok && px > 0 {
		return px
	}
	if px, ok := e.lastPrice[symbol]; ok {
		return px
	}
	if p, ok := e.positions[symbol]; ok {
		return p.AvgPrice
	}
	return 0
}

func (e *Engine) positionsLocked(prices broker.Prices) []PositionView {
	out := make([]PositionView, 0, len(e.positions))
	for sym, p := range e.positions {
		mark := e.markFor(sym, prices)
		out = append(out, PositionView{
			Position:     *p,
			Mark:         mark,
			MarketValue:  p.MarketValue(mark),
			UnrealizedPL: p.UnrealizedPL(mark),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func (e *Engine) portfolioValueLocked(prices broker.Prices) float64 {
	value := e.acct.Cash
	for sym, p := range e.positions {
		if !p.IsOpen() {
			continue
		}
		value += p.MarketValue(e.markFor(sym, prices))
	}
	return value
}

func (e *Engine) metricsLocked(prices broker.Prices) Metrics {
	m := Metrics{
		InitialCash:    e.acct.InitialCash,
		Cash:           e.acct.Cash,
		PeakValue:      e.acct.PeakValue,
		Commission:     e.acct.Commission,
		TotalTrades:    e.stats.total,
		WinningTrades:  e.stats.winning,
		LosingTrades:   e.stats.losing,
		MaxDrawdownPct: e.stats.maxDrawdown * 100,
	}
	for _, v := range e.positionsLocked(prices) {
		m.RealizedPL += v.RealizedPL
		if v.IsOpen() {
			m.OpenPositions++
			m.UnrealizedPL += v.UnrealizedPL
		}
	}
	m.PortfolioValue = e.portfolioValueLocked(prices)
	if m.InitialCash > 0 {
		m.ReturnPct = (m.PortfolioValue - m.InitialCash) / m.InitialCash * 100
	}
	if decided := m.WinningTrades + m.LosingTrades; decided > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(decided)
	}
	return m
}
