package strategies

import (
	"math"
	"time"

	"github.com/rustyeddy/papertrade/broker"
	"github.com/rustyeddy/papertrade/risk"
)

// Signal is the single trade-intent schema every strategy emits. Size is
// given either as Quantity or as Notional; Quantity wins when both are set.
// ReferencePrice is the price the trade executes against.
type Signal struct {
	Strategy       string
	Symbol         string
	Side           broker.Side
	Kind           broker.Kind
	Quantity       float64
	Notional       float64
	ReferencePrice float64
	Price          *float64
	StopPrice      *float64
	Time           time.Time
}

// Validate checks the signal shape. Errors are *broker.ValidationError.
func (s Signal) Validate() error {
	switch {
	case s.Symbol == "":
		return &broker.ValidationError{Field: "symbol", Reason: "symbol is required"}
	case !s.Side.Valid():
		return &broker.ValidationError{Field: "side", Reason: "side must be buy or sell"}
	case !s.kind().Valid():
		return &broker.ValidationError{Field: "kind", Reason: "unknown order kind"}
	case !positive(s.ReferencePrice):
		return &broker.ValidationError{Field: "reference_price", Reason: "reference price must be positive"}
	case s.Quantity < 0 || s.Notional < 0 || math.IsNaN(s.Quantity) || math.IsNaN(s.Notional):
		return &broker.ValidationError{Field: "quantity", Reason: "quantity and notional must not be negative"}
	case !positive(s.Quantity) && !positive(s.Notional):
		return &broker.ValidationError{Field: "quantity", Reason: "quantity or notional must be positive"}
	}
	return nil
}

// Units is the requested quantity, converting notional at the reference price.
func (s Signal) Units() float64 {
	if s.Quantity > 0 {
		return s.Quantity
	}
	return risk.UnitsForNotional(s.Notional, s.ReferencePrice)
}

// Request builds the order request for qty units.
func (s Signal) Request(qty float64) broker.OrderRequest {
	return broker.OrderRequest{
		Symbol:    s.Symbol,
		Side:      s.Side,
		Kind:      s.kind(),
		Quantity:  qty,
		Price:     s.Price,
		StopPrice: s.StopPrice,
		Strategy:  s.Strategy,
	}
}

func (s Signal) kind() broker.Kind {
	if s.Kind == "" {
		return broker.KindMarket
	}
	return s.Kind
}

func positive(x float64) bool {
	return x > 0 && !math.IsInf(x, 0)
}
