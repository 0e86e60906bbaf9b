package broker

import (
	"context"
	"time"
)

// Broker is the order surface the router drives. The paper engine in sim is
// the only implementation; nothing in this module routes to a live venue.
type Broker interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (Order, error)
	ExecuteOrder(ctx context.Context, orderID string, referencePrice float64) (Fill, error)
	CancelOrder(ctx context.Context, orderID string) (Order, error)
	GetAccount(ctx context.Context) (Account, error)
	GetPosition(ctx context.Context, symbol string) (Position, bool)
	GetPortfolioValue(ctx context.Context, prices Prices) (float64, error)
}

// Account is the capital side of the portfolio.
type Account struct {
	ID          string
	Currency    string
	InitialCash float64
	Cash        float64
	// PeakValue is the portfolio high-water mark. It never decreases.
	PeakValue float64
	// Commission is the total commission charged so far.
	Commission float64
}

// Prices maps symbol to a caller supplied reference price.
type Prices map[string]float64

// OrderRequest is the input to PlaceOrder.
type OrderRequest struct {
	Symbol    string
	Side      Side
	Kind      Kind
	Quantity  float64
	Price     *float64 // limit price
	StopPrice *float64
	Strategy  string
}

// Fill is the outcome of an execution attempt. Status tells whether the
// order filled or its trigger condition was not met at the reference price.
type Fill struct {
	Status     FillStatus
	OrderID    string
	Symbol     string
	Side       Side
	Quantity   float64
	Price      float64 // fill price after slippage
	Reference  float64
	Commission float64
	RealizedPL float64
	// ClosedQuantity is the part of the fill that reduced an existing position.
	ClosedQuantity float64
	Cash           float64
	Time           time.Time
}

// FillStatus distinguishes a completed fill from a no-op attempt.
type FillStatus string

const (
	FillStatusFilled          FillStatus = "filled"
	FillStatusConditionNotMet FillStatus = "condition_not_met"
)

// Filled reports whether the attempt produced a trade.
func (f Fill) Filled() bool { return f.Status == FillStatusFilled }

// Ptr returns a pointer to v. Handy for the optional price fields.
func Ptr(v float64) *float64 { return &v }
