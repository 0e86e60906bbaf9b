package strategies

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/rustyeddy/papertrade/broker"
)

// OpenOnce opens a single market position the first time its symbol has a
// price, then stays silent.
type OpenOnce struct {
	name     string
	symbol   string
	quantity float64

	mu     sync.Mutex
	opened bool
}

func NewOpenOnce(p Params) (*OpenOnce, error) {
	if p.Symbol == "" {
		return nil, errors.New("open-once: symbol is required")
	}
	if p.Quantity == 0 {
		return nil, errors.New("open-once: quantity must be non-zero")
	}
	name := p.Name
	if name == "" {
		name = "open-once"
	}
	return &OpenOnce{name: name, symbol: p.Symbol, quantity: p.Quantity}, nil
}

func (s *OpenOnce) Name() string { return s.name }

func (s *OpenOnce) Signals(ctx context.Context, prices broker.Prices) ([]Signal, error) {
	px, ok := prices[s.symbol]
	if !ok || px <= 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opened {
		return nil, nil
	}
	s.opened = true

	side := broker.SideBuy
	if s.quantity < 0 {
		side = broker.SideSell
	}
	return []Signal{{
		Strategy:       s.name,
		Symbol:         s.symbol,
		Side:           side,
		Kind:           broker.KindMarket,
		Quantity:       math.Abs(s.quantity),
		ReferencePrice: px,
	}}, nil
}
