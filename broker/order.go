package broker

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Sign returns +1 for buys and -1 for sells.
func (s Side) Sign() float64 {
	if s == SideSell {
		return -1
	}
	return 1
}

func (s Side) Valid() bool { return s == SideBuy || s == SideSell }

// ParseSide accepts buy/sell in any case.
func ParseSide(s string) (Side, error) {
	side := Side(strings.ToLower(strings.TrimSpace(s)))
	if !side.Valid() {
		return "", &ValidationError{Field: "side", Reason: fmt.Sprintf("unknown side %q", s)}
	}
	return side, nil
}

type Kind string

const (
	KindMarket    Kind = "market"
	KindLimit     Kind = "limit"
	KindStop      Kind = "stop"
	KindStopLimit Kind = "stop_limit"
)

func (k Kind) Valid() bool {
	switch k {
	case KindMarket, KindLimit, KindStop, KindStopLimit:
		return true
	}
	return false
}

// NeedsPrice reports whether the kind carries a limit price.
func (k Kind) NeedsPrice() bool { return k == KindLimit || k == KindStopLimit }

// NeedsStop reports whether the kind carries a stop trigger.
func (k Kind) NeedsStop() bool { return k == KindStop || k == KindStopLimit }

// ParseKind accepts the wire names; an empty string means market.
func ParseKind(s string) (Kind, error) {
	k := strings.ToLower(strings.TrimSpace(s))
	k = strings.ReplaceAll(k, "-", "_")
	if k == "" {
		return KindMarket, nil
	}
	if k == "stoplimit" {
		k = string(KindStopLimit)
	}
	kind := Kind(k)
	if !kind.Valid() {
		return "", &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown order kind %q", s)}
	}
	return kind, nil
}

type State string

const (
	StatePending         State = "pending"
	StatePartiallyFilled State = "partially_filled" // reserved, fills are all-or-nothing
	StateFilled          State = "filled"
	StateCancelled       State = "cancelled"
	StateRejected        State = "rejected"
)

// Terminal reports whether no further transition is allowed.
func (s State) Terminal() bool {
	return s == StateFilled || s == StateCancelled || s == StateRejected
}

// Order is a simulated order. Once State is terminal the engine never
// mutates it again.
type Order struct {
	ID             string
	Symbol         string
	Side           Side
	Kind           Kind
	Quantity       float64
	Price          *float64
	StopPrice      *float64
	FilledQuantity float64
	AvgFillPrice   float64
	Commission     float64
	State          State
	RejectReason   string
	Strategy       string
	CreatedAt      time.Time
	FilledAt       time.Time
}

// Remaining is the quantity still open on the order.
func (o Order) Remaining() float64 { return o.Quantity - o.FilledQuantity }

// SignedQuantity is the position delta a full fill would produce.
func (o Order) SignedQuantity() float64 { return o.Side.Sign() * o.Quantity }

// ErrValidation is matched by every *ValidationError.
var ErrValidation = errors.New("validation failed")

// ValidationError describes a malformed order or signal. It never reaches
// capital mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Validate checks the request shape before an order is created.
func (r OrderRequest) Validate() error {
	if strings.TrimSpace(r.Symbol) == "" {
		return &ValidationError{Field: "symbol", Reason: "symbol is required"}
	}
	if !r.Side.Valid() {
		return &ValidationError{Field: "side", Reason: fmt.Sprintf("unknown side %q", r.Side)}
	}
	if !r.Kind.Valid() {
		return &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown order kind %q", r.Kind)}
	}
	if !positive(r.Quantity) {
		return &ValidationError{Field: "quantity", Reason: "quantity must be positive"}
	}
	if r.Kind.NeedsPrice() && (r.Price == nil || !positive(*r.Price)) {
		return &ValidationError{Field: "price", Reason: fmt.Sprintf("%s order requires a positive price", r.Kind)}
	}
	if r.Kind.NeedsStop() && (r.StopPrice == nil || !positive(*r.StopPrice)) {
		return &ValidationError{Field: "stop_price", Reason: fmt.Sprintf("%s order requires a positive stop price", r.Kind)}
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
