package strategies

import (
	"context"
	"sync"

	"github.com/rustyeddy/papertrade/broker"
)

// Scripted replays a fixed list of signals. The first call returns all of
// them in order; later calls return nothing.
type Scripted struct {
	name string

	mu      sync.Mutex
	pending []Signal
}

func NewScripted(name string, signals []Signal) *Scripted {
	s := &Scripted{name: name}
	for _, sig := range signals {
		if sig.Strategy == "" {
			sig.Strategy = name
		}
		s.pending = append(s.pending, sig)
	}
	return s
}

func (s *Scripted) Name() string { return s.name }

func (s *Scripted) Signals(ctx context.Context, prices broker.Prices) ([]Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = nil
	return out, nil
}

// GroupByStrategy splits signals into one Scripted strategy per strategy
// name, in order of first appearance. Unnamed signals go to fallback.
func GroupByStrategy(signals []Signal, fallback string) []*Scripted {
	var order []string
	groups := make(map[string][]Signal)
	for _, sig := range signals {
		name := sig.Strategy
		if name == "" {
			name = fallback
		}
		if _, ok := groups[name]; !ok {
			order = append(order, name)
		}
		groups[name] = append(groups[name], sig)
	}

	out := make([]*Scripted, 0, len(order))
	for _, name := range order {
		out = append(out, NewScripted(name, groups[name]))
	}
	return out
}
