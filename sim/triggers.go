package sim

import (
	"math"

	"github.com/rustyeddy/papertrade/broker"
)

// conditionMet reports whether o may fill at the reference price.
func conditionMet(o *broker.Order, ref float64) bool {
	switch o.Kind {
	case broker.KindMarket:
		return true
	case broker.KindLimit:
		return hitLimit(o, ref)
	case broker.KindStop:
		return hitStop(o, ref)
	case broker.KindStopLimit:
		return hitStop(o, ref) && hitLimit(o, ref)
	}
	return false
}

func hitLimit(o *broker.Order, ref float64) bool {
	if o.Price == nil {
		return false
	}
	if o.Side == broker.SideBuy {
		return ref <= *o.Price
	}
	return ref >= *o.Price
}

func hitStop(o *broker.Order, ref float64) bool {
	if o.StopPrice == nil {
		return false
	}
	if o.Side == broker.SideBuy {
		return ref >= *o.StopPrice
	}
	return ref <= *o.StopPrice
}

// fillPrice moves the reference price against the trader by the slippage
// rate. A limit never fills through its limit price.
func fillPrice(o *broker.Order, ref, slippage float64) float64 {
	px := ref * (1 + slippage)
	if o.Side == broker.SideSell {
		px = ref * (1 - slippage)
	}
	if o.Kind.NeedsPrice() && o.Price != nil {
		if o.Side == broker.SideBuy {
			px = math.Min(px, *o.Price)
		} else {
			px = math.Max(px, *o.Price)
		}
	}
	return px
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
