package sim

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rustyeddy/papertrade/broker"
	"github.com/rustyeddy/papertrade/journal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testJournal struct {
	trades    []journal.TradeRecord
	snapshots []journal.PerformanceSnapshot
	failTrade error
	closed    bool
}

func (j *testJournal) RecordTrade(rec journal.TradeRecord) error {
	if j.failTrade != nil {
		return j.failTrade
	}
	j.trades = append(j.trades, rec)
	return nil
}

func (j *testJournal) RecordSnapshot(rec journal.PerformanceSnapshot) error {
	j.snapshots = append(j.snapshots, rec)
	return nil
}

func (j *testJournal) Close() error {
	j.closed = true
	return nil
}

var t0 = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func newEngine(t *testing.T, cash float64, cfg Config) (*Engine, *testJournal) {
	t.Helper()
	acct := broker.Account{ID: "paper-1", Currency: "USD", Cash: cash}
	j := &testJournal{}
	clock := t0
	e := NewEngine(acct, cfg, j, WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}))
	return e, j
}

func place(t *testing.T, e *Engine, req broker.OrderRequest) broker.Order {
	t.Helper()
	if req.Kind == "" {
		req.Kind = broker.KindMarket
	}
	o, err := e.PlaceOrder(context.Background(), req)
	require.NoError(t, err)
	return o
}

func trade(t *testing.T, e *Engine, symbol string, side broker.Side, qty, ref float64) broker.Fill {
	t.Helper()
	o := place(t, e, broker.OrderRequest{Symbol: symbol, Side: side, Quantity: qty})
	fill, err := e.ExecuteOrder(context.Background(), o.ID, ref)
	require.NoError(t, err)
	require.True(t, fill.Filled())
	return fill
}

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestBuyScenarioOnePercentCommission(t *testing.T) {
	t.Parallel()

	e, j := newEngine(t, 10000, Config{CommissionRate: 0.01, SlippageRate: 0.001})
	fill := trade(t, e, "X", broker.SideBuy, 10, 100)

	assert.InDelta(t, 100.10, fill.Price, 1e-9)
	assert.InDelta(t, 10.01, fill.Commission, 1e-9)
	assert.InDelta(t, 8988.99, fill.Cash, 1e-9)

	pos, ok := e.GetPosition(context.Background(), "X")
	require.True(t, ok)
	assert.InDelta(t, 10, pos.Quantity, 1e-12)
	assert.InDelta(t, 100.10, pos.AvgPrice, 1e-9)

	require.Len(t, j.trades, 1)
	assert.Equal(t, "buy", j.trades[0].Side)
	assert.InDelta(t, 100.10, j.trades[0].FillPrice, 1e-9)
	require.Len(t, j.snapshots, 1)
	assert.InDelta(t, 8988.99, j.snapshots[0].Cash, 1e-9)
}

func TestBuyScenarioTenthPercentCommission(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t, 10000, Config{CommissionRate: 0.001, SlippageRate: 0.001})
	fill := trade(t, e, "X", broker.SideBuy, 10, 100)

	assert.InDelta(t, 100.10, fill.Price, 1e-9)
	assert.InDelta(t, 1.001, fill.Commission, 1e-9)
	assert.InDelta(t, 10000-1001-1.001, fill.Cash, 1e-9)
}

func TestMarketOrderNotFilledAtPlacement(t *testing.T) {
	t.Parallel()

	e, j := newEngine(t, 10000, Config{})
	o := place(t, e, broker.OrderRequest{Symbol: "X", Side: broker.SideBuy, Quantity: 1})

	assert.Equal(t, broker.StatePending, o.State)
	assert.NotEmpty(t, o.ID)
	_, ok := e.GetPosition(context.Background(), "X")
	assert.False(t, ok)
	assert.Empty(t, j.trades)

	acct, err := e.GetAccount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10000.0, acct.Cash)
}

func TestPlaceOrderValidation(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t, 10000, Config{})
	_, err := e.PlaceOrder(context.Background(), broker.OrderRequest{Symbol: "X", Side: broker.SideBuy, Kind: broker.KindLimit, Quantity: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, broker.ErrValidation)

	_, err = e.PlaceOrder(context.Background(), broker.OrderRequest{Symbol: "X", Side: broker.SideBuy, Kind: broker.KindMarket, Quantity: 0})
	assert.ErrorIs(t, err, broker.ErrValidation)
	assert.Empty(t, e.orders)
}

func TestTriggerConditions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		req     broker.OrderRequest
		ref     float64
		trigger bool
	}{
		{"limit buy below", broker.OrderRequest{Side: broker.SideBuy, Kind: broker.KindLimit, Price: broker.Ptr(100)}, 99, true},
		{"limit buy at", broker.OrderRequest{Side: broker.SideBuy, Kind: broker.KindLimit, Price: broker.Ptr(100)}, 100, true},
		{"limit buy above", broker.OrderRequest{Side: broker.SideBuy, Kind: broker.KindLimit, Price: broker.Ptr(100)}, 101, false},
		{"limit sell above", broker.OrderRequest{Side: broker.SideSell, Kind: broker.KindLimit, Price: broker.Ptr(100)}, 101, true},
		{"limit sell below", broker.OrderRequest{Side: broker.SideSell, Kind: broker.KindLimit, Price: broker.Ptr(100)}, 99, false},
		{"stop buy above", broker.OrderRequest{Side: broker.SideBuy, Kind: broker.KindStop, StopPrice: broker.Ptr(100)}, 101, true},
		{"stop buy below", broker.OrderRequest{Side: broker.SideBuy, Kind: broker.KindStop, StopPrice: broker.Ptr(100)}, 99, false},
		{"stop sell below", broker.OrderRequest{Side: broker.SideSell, Kind: broker.KindStop, StopPrice: broker.Ptr(100)}, 99, true},
		{"stop sell above", broker.OrderRequest{Side: broker.SideSell, Kind: broker.KindStop, StopPrice: broker.Ptr(100)}, 101, false},
		{"stop limit buy inside", broker.OrderRequest{Side: broker.SideBuy, Kind: broker.KindStopLimit, StopPrice: broker.Ptr(100), Price: broker.Ptr(102)}, 101, true},
		{"stop limit buy through limit", broker.OrderRequest{Side: broker.SideBuy, Kind: broker.KindStopLimit, StopPrice: broker.Ptr(100), Price: broker.Ptr(102)}, 103, false},
		{"stop limit buy not triggered", broker.OrderRequest{Side: broker.SideBuy, Kind: broker.KindStopLimit, StopPrice: broker.Ptr(100), Price: broker.Ptr(102)}, 99, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e, j := newEngine(t, 100000, Config{CommissionRate: 0.001})
			req := tt.req
			req.Symbol = "X"
			req.Quantity = 1
			o := place(t, e, req)

			fill, err := e.ExecuteOrder(context.Background(), o.ID, tt.ref)
			require.NoError(t, err)

			got, _ := e.GetOrder(o.ID)
			acct, _ := e.GetAccount(context.Background())
			if tt.trigger {
				assert.Equal(t, broker.FillStatusFilled, fill.Status)
				assert.Equal(t, broker.StateFilled, got.State)
				assert.Len(t, j.trades, 1)
				return
			}
			assert.Equal(t, broker.FillStatusConditionNotMet, fill.Status)
			assert.Equal(t, broker.StatePending, got.State)
			assert.Equal(t, 100000.0, acct.Cash)
			assert.Empty(t, j.trades)
		})
	}
}

func TestLimitNeverFillsThroughLimit(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t, 100000, Config{SlippageRate: 0.01})

	buy := place(t, e, broker.OrderRequest{Symbol: "X", Side: broker.SideBuy, Kind: broker.KindLimit, Quantity: 1, Price: broker.Ptr(100)})
	fill, err := e.ExecuteOrder(context.Background(), buy.ID, 99.5)
	require.NoError(t, err)
	assert.InDelta(t, 100, fill.Price, 1e-9)

	sell := place(t, e, broker.OrderRequest{Symbol: "X", Side: broker.SideSell, Kind: broker.KindLimit, Quantity: 1, Price: broker.Ptr(100)})
	fill, err = e.ExecuteOrder(context.Background(), sell.ID, 100.5)
	require.NoError(t, err)
	assert.InDelta(t, 100, fill.Price, 1e-9)
}

func TestInsufficientFundsRejects(t *testing.T) {
	t.Parallel()

	e, j := newEngine(t, 1000, Config{CommissionRate: 0.001})
	o := place(t, e, broker.OrderRequest{Symbol: "X", Side: broker.SideBuy, Quantity: 10})

	_, err := e.ExecuteOrder(context.Background(), o.ID, 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	got, _ := e.GetOrder(o.ID)
	assert.Equal(t, broker.StateRejected, got.State)
	assert.Zero(t, got.FilledQuantity)
	assert.NotEmpty(t, got.RejectReason)

	acct, _ := e.GetAccount(context.Background())
	assert.Equal(t, 1000.0, acct.Cash)
	assert.Zero(t, acct.Commission)
	_, ok := e.GetPosition(context.Background(), "X")
	assert.False(t, ok)
	assert.Empty(t, j.trades)
	assert.Zero(t, e.GetPerformanceMetrics(nil).TotalTrades)

	_, err = e.ExecuteOrder(context.Background(), o.ID, 1)
	assert.ErrorIs(t, err, ErrOrderTerminal)
}

func TestTerminalOrdersAreFrozen(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t, 10000, Config{})
	fill := trade(t, e, "X", broker.SideBuy, 5, 10)
	before, _ := e.GetOrder(fill.OrderID)

	_, err := e.ExecuteOrder(context.Background(), fill.OrderID, 10)
	assert.ErrorIs(t, err, ErrOrderTerminal)
	_, err = e.CancelOrder(context.Background(), fill.OrderID)
	assert.ErrorIs(t, err, ErrOrderTerminal)

	after, _ := e.GetOrder(fill.OrderID)
	assert.Equal(t, before, after)
	assert.LessOrEqual(t, after.FilledQuantity, after.Quantity)

	pending := place(t, e, broker.OrderRequest{Symbol: "X", Side: broker.SideBuy, Quantity: 1})
	cancelled, err := e.CancelOrder(context.Background(), pending.ID)
	require.NoError(t, err)
	assert.Equal(t, broker.StateCancelled, cancelled.State)
	_, err = e.ExecuteOrder(context.Background(), pending.ID, 10)
	assert.ErrorIs(t, err, ErrOrderTerminal)

	_, err = e.ExecuteOrder(context.Background(), "nope", 10)
	assert.ErrorIs(t, err, ErrOrderNotFound)
	_, err = e.CancelOrder(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestBadReferencePrice(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t, 10000, Config{})
	o := place(t, e, broker.OrderRequest{Symbol: "X", Side: broker.SideBuy, Quantity: 1})

	for _, ref := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := e.ExecuteOrder(context.Background(), o.ID, ref)
		assert.ErrorIs(t, err, broker.ErrValidation)
	}
	got, _ := e.GetOrder(o.ID)
	assert.Equal(t, broker.StatePending, got.State)
}

func TestRoundTripRealizesAndCounts(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t, 10000, Config{CommissionRate: 0.001})

	trade(t, e, "X", broker.SideBuy, 10, 100)
	win := trade(t, e, "X", broker.SideSell, 10, 110)
	assert.InDelta(t, 100, win.RealizedPL, 1e-9)
	assert.InDelta(t, 10, win.ClosedQuantity, 1e-9)

	trade(t, e, "X", broker.SideBuy, 10, 100)
	loss := trade(t, e, "X", broker.SideSell, 10, 95)
	assert.InDelta(t, -50, loss.RealizedPL, 1e-9)

	m := e.GetPerformanceMetrics(nil)
	assert.Equal(t, 4, m.TotalTrades)
	assert.Equal(t, 1, m.WinningTrades)
	assert.Equal(t, 1, m.LosingTrades)
	assert.InDelta(t, 0.5, m.WinRate, 1e-12)
	assert.Zero(t, m.OpenPositions)
	assert.InDelta(t, 50, m.RealizedPL, 1e-9)

	commission := 0.001 * (1000 + 1100 + 1000 + 950)
	assert.InDelta(t, commission, m.Commission, 1e-9)
	assert.InDelta(t, 10000+50-commission, m.Cash, 1e-9)
	assert.InDelta(t, m.Cash, m.PortfolioValue, 1e-9)

	pos, ok := e.GetPosition(context.Background(), "X")
	require.True(t, ok)
	assert.False(t, pos.IsOpen())
	assert.InDelta(t, 50, pos.RealizedPL, 1e-9)

	var replay float64
	for _, tr := range e.Trades() {
		replay += tr.RealizedPL
	}
	assert.InDelta(t, pos.RealizedPL, replay, 1e-9)
}

func TestShortSaleCreditsCash(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t, 1000, Config{})
	trade(t, e, "X", broker.SideSell, 5, 100)

	acct, _ := e.GetAccount(context.Background())
	assert.InDelta(t, 1500, acct.Cash, 1e-9)

	pos, _ := e.GetPosition(context.Background(), "X")
	assert.InDelta(t, -5, pos.Quantity, 1e-12)

	value, err := e.GetPortfolioValue(context.Background(), broker.Prices{"X": 90})
	require.NoError(t, err)
	assert.InDelta(t, 1050, value, 1e-9)

	views := e.GetAllPositions(broker.Prices{"X": 90})
	require.Len(t, views, 1)
	assert.InDelta(t, 50, views[0].UnrealizedPL, 1e-9)
	assert.InDelta(t, 90, views[0].Mark, 1e-9)
}

func TestValuationFallsBackToLastReference(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t, 10000, Config{})
	trade(t, e, "X", broker.SideBuy, 10, 100)
	trade(t, e, "Y", broker.SideBuy, 1, 50)

	value, err := e.GetPortfolioValue(context.Background(), broker.Prices{"X": 120})
	require.NoError(t, err)
	assert.InDelta(t, 10000-1000-50+1200+50, value, 1e-9)

	views := e.GetAllPositions(nil)
	require.Len(t, views, 2)
	assert.Equal(t, "X", views[0].Symbol)
	assert.Equal(t, "Y", views[1].Symbol)
}

func TestMaxDrawdownAndPeak(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t, 10000, Config{})
	trade(t, e, "X", broker.SideBuy, 100, 50)  // value 10000
	trade(t, e, "X", broker.SideBuy, 1, 70)    // marks 100 @70 -> 11930 + 70 = 12000
	trade(t, e, "X", broker.SideSell, 101, 40) // flat, cash 8970

	acct, _ := e.GetAccount(context.Background())
	assert.InDelta(t, 12000, acct.PeakValue, 1e-9)

	m := e.GetPerformanceMetrics(nil)
	assert.InDelta(t, (12000-8970)/12000.0*100, m.MaxDrawdownPct, 1e-9)
	assert.InDelta(t, -10.3, m.ReturnPct, 1e-9)
}

func TestJournalFailureStillCommits(t *testing.T) {
	t.Parallel()

	e, j := newEngine(t, 10000, Config{})
	j.failTrade = errors.New("disk full")

	o := place(t, e, broker.OrderRequest{Symbol: "X", Side: broker.SideBuy, Quantity: 1})
	fill, err := e.ExecuteOrder(context.Background(), o.ID, 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrJournal)
	assert.True(t, fill.Filled())

	got, _ := e.GetOrder(o.ID)
	assert.Equal(t, broker.StateFilled, got.State)
	acct, _ := e.GetAccount(context.Background())
	assert.InDelta(t, 9900, acct.Cash, 1e-9)
}

func TestConcurrentBuysCannotOverspend(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t, 1000, Config{})

	var wg sync.WaitGroup
	var mu sync.Mutex
	filled := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o, err := e.PlaceOrder(context.Background(), broker.OrderRequest{Symbol: "X", Side: broker.SideBuy, Kind: broker.KindMarket, Quantity: 1})
			if err != nil {
				return
			}
			if fill, err := e.ExecuteOrder(context.Background(), o.ID, 100); err == nil && fill.Filled() {
				mu.Lock()
				filled++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, filled)
	acct, _ := e.GetAccount(context.Background())
	assert.True(t, approxEqual(acct.Cash, 0, 1e-9), "cash %.6f", acct.Cash)
	assert.GreaterOrEqual(t, acct.Cash, 0.0)
}
