package strategies

import (
	"context"

	"github.com/rustyeddy/papertrade/broker"
)

// Noop emits nothing.
type Noop struct{ name string }

func (n Noop) Name() string {
	if n.name == "" {
		return "noop"
	}
	return n.name
}

func (Noop) Signals(ctx context.Context, prices broker.Prices) ([]Signal, error) {
	return nil, nil
}
