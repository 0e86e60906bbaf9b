package broker

import (
	"math"
	"time"
)

// Epsilon below which a position quantity is treated as flat.
const Epsilon = 1e-9

// Position is the one-per-symbol net position. Quantity is signed:
// positive is long, negative is short. AvgPrice is only meaningful while
// Quantity is non-zero.
type Position struct {
	Symbol     string
	Quantity   float64
	AvgPrice   float64
	RealizedPL float64
	OpenedAt   time.Time
	UpdatedAt  time.Time
}

// IsOpen reports whether the position holds any quantity.
func (p Position) IsOpen() bool { return p.Quantity != 0 }

// Apply books a fill of signed quantity q at price px and returns the P&L it
// realized and the quantity it closed. A fill that crosses zero is split: the
// closing leg realizes against the old average, the remainder opens fresh at px.
func (p *Position) Apply(q, px float64, at time.Time) (realized, closed float64) {
	if q == 0 {
		return 0, 0
	}
	if p.OpenedAt.IsZero() {
		p.OpenedAt = at
	}
	p.UpdatedAt = at

	if p.Quantity != 0 && sign(q) != sign(p.Quantity) {
		closed = math.Min(math.Abs(q), math.Abs(p.Quantity))
		realized = closed * (px - p.AvgPrice) * sign(p.Quantity)
		p.RealizedPL += realized

		p.Quantity += sign(q) * closed
		q -= sign(q) * closed
		if math.Abs(p.Quantity) < Epsilon {
			p.Quantity = 0
			p.AvgPrice = 0
		}
	}

	if math.Abs(q) < Epsilon {
		return realized, closed
	}

	if p.Quantity == 0 {
		// opening leg, including the remainder of a flip
		p.Quantity = q
		p.AvgPrice = px
		p.OpenedAt = at
		return realized, closed
	}

	next := p.Quantity + q
	p.AvgPrice = (p.Quantity*p.AvgPrice + q*px) / next
	p.Quantity = next
	return realized, closed
}

// UnrealizedPL is the mark-to-market P&L of the open quantity.
func (p Position) UnrealizedPL(mark float64) float64 {
	if p.Quantity == 0 {
		return 0
	}
	return p.Quantity * (mark - p.AvgPrice)
}

// MarketValue is the signed value of the open quantity at mark.
func (p Position) MarketValue(mark float64) float64 {
	return p.Quantity * mark
}

func sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}
