package risk

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// tolerance keeps boundary values such as 3000/12000 inclusive.
const tolerance = 1e-12

type lossEntry struct {
	at     time.Time
	amount float64 // magnitude, always positive
}

// DrawdownProtection runs the five circuit breakers. It goes from ACTIVE to
// PAUSED when any breaker trips and only returns to ACTIVE via ForceResume.
type DrawdownProtection struct {
	mu     sync.Mutex
	policy Policy
	log    *slog.Logger
	now    func() time.Time

	consecutiveLosses int
	losses            []lossEntry
	dailyStart        float64
	dailyStartSet     bool
	peak              float64
	totalTrades       int
	winningTrades     int

	paused    bool
	reason    string
	pausedAt  time.Time
	triggered []string
}

type Option func(*DrawdownProtection)

func WithLogger(l *slog.Logger) Option {
	return func(d *DrawdownProtection) {
		if l != nil {
			d.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *DrawdownProtection) {
		if now != nil {
			d.now = now
		}
	}
}

func NewDrawdownProtection(p Policy, opts ...Option) *DrawdownProtection {
	d := &DrawdownProtection{
		policy: p,
		log:    slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RecordTrade books a closed trade's realized P&L and the capital after it.
func (d *DrawdownProtection) RecordTrade(pnl, capital float64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.totalTrades++
	if pnl > 0 {
		d.winningTrades++
	}
	if pnl < 0 {
		d.consecutiveLosses++
		d.losses = append(d.losses, lossEntry{at: d.now(), amount: -pnl})
	} else {
		d.consecutiveLosses = 0
	}
	d.observeLocked(capital)
}

// ObserveCapital advances the capital baselines for a fill that realized
// nothing, such as an opening trade.
func (d *DrawdownProtection) ObserveCapital(capital float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observeLocked(capital)
}

func (d *DrawdownProtection) observeLocked(capital float64) {
	if !d.dailyStartSet {
		d.dailyStart = capital
		d.dailyStartSet = true
	}
	if capital > d.peak {
		d.peak = capital
	}
}

// CheckAllBreakers evaluates every breaker against current capital. When
// already paused it returns the existing pause without re-evaluating.
func (d *DrawdownProtection) CheckAllBreakers(capital float64) Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.paused {
		return Status{
			TradingAllowed: false,
			Paused:         true,
			Reason:         d.reason,
			Triggered:      append([]string(nil), d.triggered...),
		}
	}

	breakers := []Breaker{
		d.checkConsecutiveLossesLocked(),
		d.checkHourlyLossLocked(),
		d.checkDailyDrawdownLocked(capital),
		d.checkTotalDrawdownLocked(capital),
		d.checkWinRateLocked(),
	}

	var names, msgs []string
	for _, b := range breakers {
		if b.Triggered {
			names = append(names, b.Name)
			msgs = append(msgs, b.Message)
		}
	}

	st := Status{TradingAllowed: true, Breakers: breakers}
	if len(names) == 0 {
		return st
	}

	d.paused = true
	d.triggered = names
	d.reason = strings.Join(msgs, "; ")
	d.pausedAt = d.now()

	d.log.Warn("circuit breaker tripped, trading paused",
		slog.Any("breakers", names),
		slog.String("reason", d.reason),
		slog.Float64("capital", capital))

	st.TradingAllowed = false
	st.Paused = true
	st.Reason = d.reason
	st.Triggered = append([]string(nil), names...)
	return st
}

// ForceResume is the operator action that lifts a pause. Counters that
// caused the trip are reset so the same data does not re-trip immediately;
// the peak and daily baselines are kept.
func (d *DrawdownProtection) ForceResume() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.paused {
		return
	}
	d.log.Info("trading resumed by operator",
		slog.String("previous_reason", d.reason),
		slog.Duration("paused_for", d.now().Sub(d.pausedAt)))

	d.paused = false
	d.reason = ""
	d.triggered = nil
	d.pausedAt = time.Time{}
	d.consecutiveLosses = 0
	d.losses = nil
}

// ResetDaily clears the daily baseline; the next trade sets a new one.
func (d *DrawdownProtection) ResetDaily() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dailyStart = 0
	d.dailyStartSet = false
}

// ResetPeak moves the high-water mark to capital. Operators use it after an
// acknowledged drawdown so the total drawdown breaker measures from here.
func (d *DrawdownProtection) ResetPeak(capital float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.peak = capital
}

func (d *DrawdownProtection) IsPaused() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.paused
}

func (d *DrawdownProtection) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()

	return State{
		Paused:            d.paused,
		PauseReason:       d.reason,
		PausedAt:          d.pausedAt,
		Triggered:         append([]string(nil), d.triggered...),
		ConsecutiveLosses: d.consecutiveLosses,
		HourlyLoss:        d.hourlyLossLocked(),
		DailyStartCapital: d.dailyStart,
		PeakCapital:       d.peak,
		TotalTrades:       d.totalTrades,
		WinningTrades:     d.winningTrades,
	}
}

func (d *DrawdownProtection) checkConsecutiveLossesLocked() Breaker {
	limit := d.policy.MaxConsecutiveLosses
	b := Breaker{
		Name:         BreakerConsecutiveLosses,
		CurrentValue: float64(d.consecutiveLosses),
		Threshold:    float64(limit),
	}
	if limit <= 0 {
		b.Message = "disabled"
		return b
	}
	b.Triggered = d.consecutiveLosses >= limit
	b.Message = fmt.Sprintf("%d consecutive losses (limit %d)", d.consecutiveLosses, limit)
	return b
}

// hourlyLossLocked prunes entries older than the window and sums the rest.
func (d *DrawdownProtection) hourlyLossLocked() float64 {
	cutoff := d.now().Add(-lossWindow)
	i := 0
	for i < len(d.losses) && d.losses[i].at.Before(cutoff) {
		i++
	}
	d.losses = d.losses[i:]

	var sum float64
	for _, l := range d.losses {
		sum += l.amount
	}
	return sum
}

func (d *DrawdownProtection) checkHourlyLossLocked() Breaker {
	loss := d.hourlyLossLocked()
	b := Breaker{
		Name:         BreakerHourlyLoss,
		CurrentValue: loss,
		Threshold:    d.policy.MaxHourlyLoss,
	}
	if d.policy.MaxHourlyLoss <= 0 {
		b.Message = "disabled"
		return b
	}
	b.Triggered = loss >= d.policy.MaxHourlyLoss-tolerance
	b.Message = fmt.Sprintf("hourly loss $%.2f (limit $%.2f)", loss, d.policy.MaxHourlyLoss)
	return b
}

func (d *DrawdownProtection) checkDailyDrawdownLocked(capital float64) Breaker {
	var dd float64
	if d.dailyStartSet && d.dailyStart > 0 && capital < d.dailyStart {
		dd = (d.dailyStart - capital) / d.dailyStart
	}
	b := Breaker{
		Name:         BreakerDailyDrawdown,
		CurrentValue: dd,
		Threshold:    d.policy.MaxDailyDrawdown,
	}
	if d.policy.MaxDailyDrawdown <= 0 {
		b.Message = "disabled"
		return b
	}
	b.Triggered = dd >= d.policy.MaxDailyDrawdown-tolerance
	b.Message = fmt.Sprintf("daily drawdown %.1f%% (limit %.1f%%)", dd*100, d.policy.MaxDailyDrawdown*100)
	return b
}

func (d *DrawdownProtection) checkTotalDrawdownLocked(capital float64) Breaker {
	var dd float64
	if d.peak > 0 && capital < d.peak {
		dd = (d.peak - capital) / d.peak
	}
	b := Breaker{
		Name:         BreakerTotalDrawdown,
		CurrentValue: dd,
		Threshold:    d.policy.MaxTotalDrawdown,
	}
	if d.policy.MaxTotalDrawdown <= 0 {
		b.Message = "disabled"
		return b
	}
	b.Triggered = dd >= d.policy.MaxTotalDrawdown-tolerance
	b.Message = fmt.Sprintf("total drawdown %.1f%% from peak $%.2f (limit %.1f%%)", dd*100, d.peak, d.policy.MaxTotalDrawdown*100)
	return b
}

func (d *DrawdownProtection) checkWinRateLocked() Breaker {
	b := Breaker{
		Name:      BreakerWinRate,
		Threshold: d.policy.MinWinRate,
	}
	if d.totalTrades > 0 {
		b.CurrentValue = float64(d.winningTrades) / float64(d.totalTrades)
	}
	if d.policy.MinWinRate <= 0 {
		b.Message = "disabled"
		return b
	}
	if d.totalTrades < d.policy.MinTradesForWinRate {
		b.Message = fmt.Sprintf("win rate not evaluated before %d trades (have %d)", d.policy.MinTradesForWinRate, d.totalTrades)
		return b
	}
	b.Triggered = b.CurrentValue < d.policy.MinWinRate
	b.Message = fmt.Sprintf("win rate %.1f%% over %d trades (minimum %.1f%%)", b.CurrentValue*100, d.totalTrades, d.policy.MinWinRate*100)
	return b
}
