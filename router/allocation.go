package router

import (
	"math"

	"github.com/rustyeddy/papertrade/broker"
	"github.com/rustyeddy/papertrade/risk"
)

// Allocation caps how much capital a single signal may commit. Each
// strategy owns a share of the portfolio and one trade may use at most
// MaxTradeFraction of that share. A MaxTradeFraction of zero disables the cap.
type Allocation struct {
	MaxTradeFraction float64
	DefaultShare     float64
	Shares           map[string]float64
}

// share returns the strategy's fraction of capital.
func (a Allocation) share(strategy string) float64 {
	if s, ok := a.Shares[strategy]; ok {
		return s
	}
	if a.DefaultShare > 0 {
		return a.DefaultShare
	}
	return 1
}

// capQuantity splits qty into the leg that closes the existing position and
// the leg that opens new exposure, and clamps only the opening leg.
func (a Allocation) capQuantity(strategy string, side broker.Side, qty, price, capital, position float64) (float64, risk.Result) {
	if a.MaxTradeFraction <= 0 {
		return qty, risk.Result{}
	}

	var closing float64
	if position*side.Sign() < 0 {
		closing = math.Min(qty, math.Abs(position))
	}
	opening := qty - closing

	res := risk.Calculate(risk.Inputs{
		Capital:          capital,
		Share:            a.share(strategy),
		MaxTradeFraction: a.MaxTradeFraction,
		Price:            price,
	})
	return closing + risk.CapUnits(opening, price, res.MaxNotional), res
}
