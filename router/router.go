// Package router funnels strategy signals into the paper trading engine.
// Every signal passes validation, allocation, the execution gate and the
// circuit breakers, one at a time.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rustyeddy/papertrade/broker"
	"github.com/rustyeddy/papertrade/control"
	"github.com/rustyeddy/papertrade/gate"
	"github.com/rustyeddy/papertrade/risk"
	"github.com/rustyeddy/papertrade/sim"
	"github.com/rustyeddy/papertrade/strategies"
)

// ErrGateDenied is wrapped into Result.Err when the gate blocks a signal.
var ErrGateDenied = errors.New("trade denied by execution gate")

type Status string

const (
	StatusFilled          Status = "filled"
	StatusConditionNotMet Status = "condition_not_met"
	StatusInvalid         Status = "invalid"
	StatusDenied          Status = "denied"
	StatusRejected        Status = "rejected"
	StatusFailed          Status = "failed"
)

// Result reports what happened to one signal. Success is true only when
// the order filled.
type Result struct {
	Success    bool
	Status     Status
	Strategy   string
	Symbol     string
	Side       broker.Side
	OrderID    string
	FillPrice  float64
	Quantity   float64
	Commission float64
	RealizedPL float64
	Cash       float64
	Reason     string
	Err        error

	// Paused is set when trading is paused after this signal, either
	// because the gate denied it for a pause or because a breaker tripped.
	Paused bool
}

// Router serializes signals through the engine and the safety layers.
type Router struct {
	mu       sync.Mutex
	broker   broker.Broker
	breakers *risk.DrawdownProtection
	gate     *gate.Checker
	store    control.Store
	alloc    Allocation
	marks    broker.Prices
	log      *slog.Logger
	clock    *Clock

	// stamps of the last reset requests applied from the store
	dailyResetSeen time.Time
	peakResetSeen  time.Time
}

type Option func(*Router)

func WithLogger(l *slog.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.log = l
		}
	}
}

// WithClock makes the router stamp c with each signal's time.
func WithClock(c *Clock) Option {
	return func(r *Router) {
		r.clock = c
	}
}

// New builds a Router. A nil store keeps breaker pauses in memory only.
func New(b broker.Broker, breakers *risk.DrawdownProtection, checker *gate.Checker, store control.Store, alloc Allocation, opts ...Option) *Router {
	r := &Router{
		broker:   b,
		breakers: breakers,
		gate:     checker,
		store:    store,
		alloc:    alloc,
		marks:    make(broker.Prices),
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	// Requests made before this router existed concern an earlier session.
	now := time.Now()
	r.dailyResetSeen, r.peakResetSeen = now, now
	return r
}

// HandleSignal runs one signal through the pipeline. Errors are reported in
// the Result rather than returned.
func (r *Router) HandleSignal(ctx context.Context, sig strategies.Signal) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := Result{Strategy: sig.Strategy, Symbol: sig.Symbol, Side: sig.Side}

	if err := sig.Validate(); err != nil {
		return r.fail(res, StatusInvalid, fmt.Errorf("invalid signal: %w", err))
	}
	r.marks[sig.Symbol] = sig.ReferencePrice
	if r.clock != nil {
		r.clock.set(sig.Time)
	}

	// The gate is consulted before the engine is touched at all.
	d := r.gate.Check(ctx, r.breakers.IsPaused())
	if !d.Allowed {
		res.Status = StatusDenied
		res.Reason = d.Reason
		res.Err = fmt.Errorf("%w: %s", ErrGateDenied, d.Reason)
		res.Paused = d.Code == gate.CodePaused
		return res
	}

	capital, err := r.broker.GetPortfolioValue(ctx, r.marks)
	if err != nil {
		return r.fail(res, StatusFailed, fmt.Errorf("portfolio value: %w", err))
	}
	r.applyResetRequests(ctx, capital)

	qty := sig.Units()
	var position float64
	if p, ok := r.broker.GetPosition(ctx, sig.Symbol); ok {
		position = p.Quantity
	}
	capped, alloc := r.alloc.capQuantity(sig.Strategy, sig.Side, qty, sig.ReferencePrice, capital, position)
	if capped < qty {
		r.log.Info("signal clamped by allocation",
			slog.String("strategy", sig.Strategy),
			slog.String("symbol", sig.Symbol),
			slog.Float64("requested", qty),
			slog.Float64("allowed", capped),
			slog.Float64("max_notional", alloc.MaxNotional))
	}
	if capped <= broker.Epsilon {
		res.Reason = "allocation leaves no quantity to trade"
		res.Status = StatusRejected
		return res
	}

	order, err := r.broker.PlaceOrder(ctx, sig.Request(capped))
	if err != nil {
		return r.fail(res, StatusInvalid, err)
	}
	res.OrderID = order.ID

	fill, err := r.broker.ExecuteOrder(ctx, order.ID, sig.ReferencePrice)
	switch {
	case errors.Is(err, sim.ErrJournal) && fill.Filled():
		// The fill is committed; only the record was lost.
		r.log.Error("fill not journaled", slog.String("order", order.ID), slog.Any("error", err))
		res.Err = err
	case errors.Is(err, sim.ErrInsufficientFunds):
		return r.fail(res, StatusRejected, err)
	case err != nil:
		r.cancel(ctx, order.ID)
		return r.fail(res, StatusFailed, err)
	}

	if !fill.Filled() {
		r.cancel(ctx, order.ID)
		res.Status = StatusConditionNotMet
		res.Reason = "order condition not met"
		res.Cash = fill.Cash
		return res
	}

	res.Success = true
	res.Status = StatusFilled
	res.FillPrice = fill.Price
	res.Quantity = fill.Quantity
	res.Commission = fill.Commission
	res.RealizedPL = fill.RealizedPL
	res.Cash = fill.Cash

	capital, err = r.broker.GetPortfolioValue(ctx, r.marks)
	if err != nil {
		res.Err = errors.Join(res.Err, fmt.Errorf("portfolio value: %w", err))
		return res
	}
	if fill.ClosedQuantity > 0 {
		r.breakers.RecordTrade(fill.RealizedPL, capital)
	} else {
		r.breakers.ObserveCapital(capital)
	}

	wasPaused := r.breakers.IsPaused()
	st := r.breakers.CheckAllBreakers(capital)
	if !st.TradingAllowed {
		res.Paused = true
		res.Reason = st.Reason
		if !wasPaused {
			r.persistPause(ctx, st.Reason)
		}
	}
	return res
}

// Resume lifts a pause: the persisted flag is cleared and the breakers are
// force-resumed.
func (r *Router) Resume(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.store != nil {
		if err := r.store.SetPaused(ctx, false, ""); err != nil {
			return fmt.Errorf("clear pause flag: %w", err)
		}
	}
	r.breakers.ForceResume()
	r.gate.Invalidate()
	return nil
}

// ResetDaily starts a new trading day: the next trade sets the daily
// drawdown baseline.
func (r *Router) ResetDaily() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetDailyLocked("operator")
}

// ResetPeak moves the total drawdown high-water mark to the portfolio value
// at the latest marks.
func (r *Router) ResetPeak(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	capital, err := r.broker.GetPortfolioValue(ctx, r.marks)
	if err != nil {
		return fmt.Errorf("portfolio value: %w", err)
	}
	r.resetPeakLocked(capital, "operator")
	return nil
}

// Breakers returns the circuit breaker state.
func (r *Router) Breakers() risk.State {
	return r.breakers.State()
}

// Marks returns the latest reference price seen per symbol.
func (r *Router) Marks() broker.Prices {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(broker.Prices, len(r.marks))
	for k, v := range r.marks {
		out[k] = v
	}
	return out
}

func (r *Router) resetDailyLocked(reason string) {
	r.breakers.ResetDaily()
	r.log.Info("daily drawdown baseline reset", slog.String("reason", reason))
}

func (r *Router) resetPeakLocked(capital float64, reason string) {
	r.breakers.ResetPeak(capital)
	r.log.Info("peak capital reset", slog.Float64("capital", capital), slog.String("reason", reason))
}

// applyResetRequests picks up reset requests written to the control store
// by another process. Read errors leave the baselines alone.
func (r *Router) applyResetRequests(ctx context.Context, capital float64) {
	if r.store == nil {
		return
	}
	if f, err := r.store.DailyReset(ctx); err != nil {
		r.log.Warn("read daily reset request", slog.Any("error", err))
	} else if f.Active && f.UpdatedAt.After(r.dailyResetSeen) {
		r.dailyResetSeen = f.UpdatedAt
		r.resetDailyLocked(f.Reason)
	}
	if f, err := r.store.PeakReset(ctx); err != nil {
		r.log.Warn("read peak reset request", slog.Any("error", err))
	} else if f.Active && f.UpdatedAt.After(r.peakResetSeen) {
		r.peakResetSeen = f.UpdatedAt
		r.resetPeakLocked(capital, f.Reason)
	}
}

func (r *Router) persistPause(ctx context.Context, reason string) {
	if r.store != nil {
		if err := r.store.SetPaused(ctx, true, reason); err != nil {
			r.log.Error("persist pause flag", slog.Any("error", err))
		}
	}
	r.gate.Invalidate()
}

func (r *Router) cancel(ctx context.Context, orderID string) {
	if _, err := r.broker.CancelOrder(ctx, orderID); err != nil && !errors.Is(err, sim.ErrOrderTerminal) {
		r.log.Warn("cancel order", slog.String("order", orderID), slog.Any("error", err))
	}
}

func (r *Router) fail(res Result, status Status, err error) Result {
	res.Status = status
	res.Err = err
	res.Reason = err.Error()
	r.log.Warn("signal not executed",
		slog.String("strategy", res.Strategy),
		slog.String("symbol", res.Symbol),
		slog.String("status", string(status)),
		slog.Any("error", err))
	return res
}
