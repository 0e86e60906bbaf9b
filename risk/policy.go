package risk

import "time"

// Policy holds the circuit breaker thresholds. Every limit is inclusive:
// a breaker trips once its metric reaches the threshold.
type Policy struct {
	MaxConsecutiveLosses int     // 3
	MaxHourlyLoss        float64 // account currency, 500
	MaxDailyDrawdown     float64 // fraction, 0.15
	MaxTotalDrawdown     float64 // fraction, 0.25

	// Win rate is only judged once MinTradesForWinRate trades are booked.
	MinWinRate          float64 // 0.50
	MinTradesForWinRate int     // 20
}

// DefaultPolicy returns the stock thresholds.
func DefaultPolicy() Policy {
	return Policy{
		MaxConsecutiveLosses: 3,
		MaxHourlyLoss:        500,
		MaxDailyDrawdown:     0.15,
		MaxTotalDrawdown:     0.25,
		MinWinRate:           0.50,
		MinTradesForWinRate:  20,
	}
}

// Breaker names as reported in Status.Triggered.
const (
	BreakerConsecutiveLosses = "consecutive_losses"
	BreakerHourlyLoss        = "hourly_loss"
	BreakerDailyDrawdown     = "daily_drawdown"
	BreakerTotalDrawdown     = "total_drawdown"
	BreakerWinRate           = "win_rate"
)

// lossWindow is how far back hourly losses are summed.
const lossWindow = time.Hour

// Breaker is the evaluation of a single rule.
type Breaker struct {
	Name         string
	Triggered    bool
	CurrentValue float64
	Threshold    float64
	Message      string
}

// Status is the outcome of CheckAllBreakers.
type Status struct {
	TradingAllowed bool
	Paused         bool
	Reason         string
	Triggered      []string
	Breakers       []Breaker
}

// State is a read-only snapshot of the breaker bookkeeping.
type State struct {
	Paused            bool
	PauseReason       string
	PausedAt          time.Time
	Triggered         []string
	ConsecutiveLosses int
	HourlyLoss        float64
	DailyStartCapital float64
	PeakCapital       float64
	TotalTrades       int
	WinningTrades     int
}
