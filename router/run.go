package router

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/papertrade/broker"
	"github.com/rustyeddy/papertrade/strategies"
)

// Run asks every strategy for signals concurrently and routes each one.
// Signals from a single strategy keep their order; the router lock
// serializes execution across strategies. A strategy error cancels the
// remaining work and is returned with the results gathered so far.
func (r *Router) Run(ctx context.Context, strats []strategies.Strategy, prices broker.Prices) ([]Result, error) {
	g, ctx := errgroup.WithContext(ctx)

	var (
		mu      sync.Mutex
		results []Result
	)
	for _, s := range strats {
		s := s // per-iteration copy (go < 1.22 loop semantics)
		g.Go(func() error {
			sigs, err := s.Signals(ctx, prices)
			if err != nil {
				return fmt.Errorf("strategy %s: %w", s.Name(), err)
			}
			for _, sig := range sigs {
				if err := ctx.Err(); err != nil {
					return err
				}
				if sig.Strategy == "" {
					sig.Strategy = s.Name()
				}
				if sig.ReferencePrice == 0 {
					sig.ReferencePrice = prices[sig.Symbol]
				}
				res := r.HandleSignal(ctx, sig)

				mu.Lock()
				results = append(results, res)
				mu.Unlock()
			}
			return nil
		})
	}

	err := g.Wait()
	return results, err
}
