package risk

import "math"

// Inputs describe one strategy's capital slice at the moment of a trade.
type Inputs struct {
	Capital          float64 // portfolio value
	Share            float64 // strategy's fraction of capital, 0.25
	MaxTradeFraction float64 // fraction of the slice one trade may commit, 0.10
	Price            float64 // reference price
}

type Result struct {
	Slice       float64 // capital allotted to the strategy
	MaxNotional float64 // per-trade notional cap
	MaxUnits    float64
}

// Calculate returns the per-trade cap for a strategy slice.
func Calculate(in Inputs) Result {
	slice := math.Max(in.Capital, 0) * clamp01(in.Share)
	maxNotional := slice * clamp01(in.MaxTradeFraction)

	var units float64
	if in.Price > 0 {
		units = maxNotional / in.Price
	}
	return Result{
		Slice:       slice,
		MaxNotional: maxNotional,
		MaxUnits:    units,
	}
}

// UnitsForNotional converts a notional amount into a quantity at price.
func UnitsForNotional(notional, price float64) float64 {
	if price <= 0 || notional <= 0 {
		return 0
	}
	return notional / price
}

// CapUnits clamps units so units*price does not exceed maxNotional.
func CapUnits(units, price, maxNotional float64) float64 {
	if price <= 0 || units <= 0 {
		return 0
	}
	limit := math.Max(maxNotional, 0) / price
	return math.Min(units, limit)
}

func clamp01(x float64) float64 {
	return math.Min(math.Max(x, 0), 1)
}
