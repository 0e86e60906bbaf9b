package sim

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rustyeddy/papertrade/broker"
	"github.com/rustyeddy/papertrade/internal/id"
	"github.com/rustyeddy/papertrade/journal"
)

// Config holds the execution cost model.
type Config struct {
	CommissionRate float64 // fraction of filled notional, 0.001 = 0.1%
	SlippageRate   float64 // adverse price move, 0.001 = 0.1%
}

// Engine is the paper trading engine. It owns orders, positions and cash;
// prices are always supplied by the caller.
type Engine struct {
	mu        sync.Mutex
	acct      broker.Account
	cfg       Config
	orders    map[string]*broker.Order
	positions map[string]*broker.Position
	trades    []Trade
	lastPrice map[string]float64
	stats     counters
	journal   journal.Journal
	log       *slog.Logger
	now       func() time.Time
}

type counters struct {
	total       int
	winning     int
	losing      int
	maxDrawdown float64 // fraction of peak
}

type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithClock replaces time.Now, mostly for tests and replays.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func NewEngine(acct broker.Account, cfg Config, j journal.Journal, opts ...Option) *Engine {
	if j == nil {
		j = journal.Discard
	}
	if acct.InitialCash == 0 {
		acct.InitialCash = acct.Cash
	}
	if acct.PeakValue < acct.Cash {
		acct.PeakValue = acct.Cash
	}
	e := &Engine{
		acct:      acct,
		cfg:       cfg,
		orders:    make(map[string]*broker.Order),
		positions: make(map[string]*broker.Position),
		lastPrice: make(map[string]float64),
		journal:   j,
		log:       slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var _ broker.Broker = (*Engine)(nil)

// PlaceOrder validates the request and records a PENDING order. Nothing is
// filled here, market orders included.
func (e *Engine) PlaceOrder(ctx context.Context, req broker.OrderRequest) (broker.Order, error) {
	_ = ctx

	if err := req.Validate(); err != nil {
		return broker.Order{}, fmt.Errorf("place order: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	o := &broker.Order{
		ID:        id.NewAt(now),
		Symbol:    req.Symbol,
		Side:      req.Side,
		Kind:      req.Kind,
		Quantity:  req.Quantity,
		Price:     copyPrice(req.Price),
		StopPrice: copyPrice(req.StopPrice),
		State:     broker.StatePending,
		Strategy:  req.Strategy,
		CreatedAt: now,
	}
	e.orders[o.ID] = o

	e.log.Debug("order placed",
		slog.String("id", o.ID),
		slog.String("symbol", o.Symbol),
		slog.String("side", string(o.Side)),
		slog.String("kind", string(o.Kind)),
		slog.Float64("qty", o.Quantity))

	return *o, nil
}

// ExecuteOrder tries to fill a pending order at the reference price.
//
// An unmet trigger returns a Fill with FillStatusConditionNotMet and no state
// change. Insufficient cash rejects the order and leaves the portfolio
// untouched. On success every mutation is applied in one step after all
// checks pass. If the journal write fails after commit the fill is still
// returned together with an error wrapping ErrJournal.
func (e *Engine) ExecuteOrder(ctx context.Context, orderID string, referencePrice float64) (broker.Fill, error) {
	_ = ctx

	e.mu.Lock()
	defer e.mu.Unlock()

	o, ok := e.orders[orderID]
	if !ok {
		return broker.Fill{}, fmt.Errorf("execute order %q: %w", orderID, ErrOrderNotFound)
	}
	if o.State.Terminal() {
		return broker.Fill{}, fmt.Errorf("execute order %q (%s): %w", orderID, o.State, ErrOrderTerminal)
	}
	if !(referencePrice > 0) || !finite(referencePrice) {
		return broker.Fill{}, fmt.Errorf("execute order %q: %w", orderID,
			&broker.ValidationError{Field: "reference_price", Reason: "reference price must be positive"})
	}

	if !conditionMet(o, referencePrice) {
		return broker.Fill{
			Status:    broker.FillStatusConditionNotMet,
			OrderID:   o.ID,
			Symbol:    o.Symbol,
			Side:      o.Side,
			Reference: referencePrice,
			Cash:      e.acct.Cash,
			Time:      e.now(),
		}, nil
	}

	now := e.now()
	qty := o.Remaining()
	price := fillPrice(o, referencePrice, e.cfg.SlippageRate)
	notional := qty * price
	commission := notional * e.cfg.CommissionRate

	cash := e.acct.Cash
	if o.Side == broker.SideBuy {
		cost := notional + commission
		if cost > cash {
			o.State = broker.StateRejected
			o.RejectReason = fmt.Sprintf("cost %.2f exceeds cash %.2f", cost, cash)
			e.log.Warn("order rejected",
				slog.String("id", o.ID),
				slog.String("symbol", o.Symbol),
				slog.Float64("cost", cost),
				slog.Float64("cash", cash))
			return broker.Fill{}, fmt.Errorf("execute order %q: %s: %w", orderID, o.RejectReason, ErrInsufficientFunds)
		}
		cash -= cost
	} else {
		cash += notional - commission
	}

	// Work on a copy so nothing is visible until every check has passed.
	pos := broker.Position{Symbol: o.Symbol}
	if cur, ok := e.positions[o.Symbol]; ok {
		pos = *cur
	}
	realized, closed := pos.Apply(o.Side.Sign()*qty, price, now)

	if !finite(price, commission, cash, pos.Quantity, pos.AvgPrice, pos.RealizedPL) {
		return broker.Fill{}, fmt.Errorf("execute order %q: non-finite fill arithmetic: %w", orderID, ErrInternal)
	}

	// commit
	e.acct.Cash = cash
	e.acct.Commission += commission
	e.positions[o.Symbol] = &pos
	e.lastPrice[o.Symbol] = referencePrice

	o.FilledQuantity += qty
	o.AvgFillPrice = price
	o.Commission += commission
	o.State = broker.StateFilled
	o.FilledAt = now

	trade := Trade{
		ID:         o.ID,
		OrderID:    o.ID,
		Symbol:     o.Symbol,
		Side:       o.Side,
		Quantity:   qty,
		Price:      price,
		Commission: commission,
		RealizedPL: realized,
		Strategy:   o.Strategy,
		Time:       now,
	}
	e.trades = append(e.trades, trade)

	e.stats.total++
	switch {
	case realized > 0:
		e.stats.winning++
	case realized < 0:
		e.stats.losing++
	}
	e.markLocked(nil)

	fill := broker.Fill{
		Status:         broker.FillStatusFilled,
		OrderID:        o.ID,
		Symbol:         o.Symbol,
		Side:           o.Side,
		Quantity:       qty,
		Price:          price,
		Reference:      referencePrice,
		Commission:     commission,
		RealizedPL:     realized,
		ClosedQuantity: closed,
		Cash:           e.acct.Cash,
		Time:           now,
	}

	e.log.Info("order filled",
		slog.String("id", o.ID),
		slog.String("symbol", o.Symbol),
		slog.String("side", string(o.Side)),
		slog.Float64("qty", qty),
		slog.Float64("price", price),
		slog.Float64("commission", commission),
		slog.Float64("realized_pl", realized),
		slog.Float64("cash", e.acct.Cash))

	if err := e.journal.RecordTrade(trade.Record()); err != nil {
		e.log.Error("journal trade", slog.String("id", o.ID), slog.Any("error", err))
		return fill, fmt.Errorf("record trade %q: %w: %v", o.ID, ErrJournal, err)
	}
	if err := e.journal.RecordSnapshot(e.metricsLocked(nil).Snapshot(now)); err != nil {
		e.log.Error("journal snapshot", slog.String("id", o.ID), slog.Any("error", err))
		return fill, fmt.Errorf("record snapshot: %w: %v", ErrJournal, err)
	}
	return fill, nil
}

// CancelOrder moves a pending order to CANCELLED.
func (e *Engine) CancelOrder(ctx context.Context, orderID string) (broker.Order, error) {
	_ = ctx

	e.mu.Lock()
	defer e.mu.Unlock()

	o, ok := e.orders[orderID]
	if !ok {
		return broker.Order{}, fmt.Errorf("cancel order %q: %w", orderID, ErrOrderNotFound)
	}
	if o.State.Terminal() {
		return *o, fmt.Errorf("cancel order %q (%s): %w", orderID, o.State, ErrOrderTerminal)
	}
	o.State = broker.StateCancelled
	e.log.Debug("order cancelled", slog.String("id", o.ID))
	return *o, nil
}

// GetOrder returns a copy of the order.
func (e *Engine) GetOrder(orderID string) (broker.Order, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, ok := e.orders[orderID]
	if !ok {
		return broker.Order{}, false
	}
	return *o, true
}

func (e *Engine) GetAccount(ctx context.Context) (broker.Account, error) {
	_ = ctx
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.acct, nil
}

// Trades returns the fill history in order.
func (e *Engine) Trades() []Trade {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Trade(nil), e.trades...)
}

// markLocked revalues the portfolio and advances the high-water mark and
// max drawdown.
func (e *Engine) markLocked(prices broker.Prices) float64 {
	value := e.portfolioValueLocked(prices)
	if value > e.acct.PeakValue {
		e.acct.PeakValue = value
	}
	if e.acct.PeakValue > 0 {
		dd := (e.acct.PeakValue - value) / e.acct.PeakValue
		if dd > e.stats.maxDrawdown {
			e.stats.maxDrawdown = dd
		}
	}
	return value
}

func copyPrice(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
