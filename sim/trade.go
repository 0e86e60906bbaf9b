package sim

import (
	"time"

	"github.com/rustyeddy/papertrade/broker"
	"github.com/rustyeddy/papertrade/journal"
)

// Trade is the immutable record of one fill.
type Trade struct {
	ID         string
	OrderID    string
	Symbol     string
	Side       broker.Side
	Quantity   float64
	Price      float64
	Commission float64
	RealizedPL float64
	Strategy   string
	Time       time.Time
}

// Record converts the trade into the journal's wire shape.
func (t Trade) Record() journal.TradeRecord {
	return journal.TradeRecord{
		TradeID:    t.ID,
		Time:       t.Time,
		Symbol:     t.Symbol,
		Side:       string(t.Side),
		Quantity:   t.Quantity,
		FillPrice:  t.Price,
		Commission: t.Commission,
		RealizedPL: t.RealizedPL,
		Strategy:   t.Strategy,
	}
}
