// Package strategies defines the Strategy interface, the Signal schema and
// the built-in strategies. Signal generation algorithms live outside this
// module; the built-ins exist for operators and tests.
package strategies

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rustyeddy/papertrade/broker"
)

// Strategy produces trade signals from the current prices. It never trades
// directly; every signal goes through the router.
type Strategy interface {
	Name() string
	Signals(ctx context.Context, prices broker.Prices) ([]Signal, error)
}

// Params configures a built-in strategy.
type Params struct {
	Name     string
	Symbol   string
	Quantity float64 // signed, negative opens a short
}

type Factory func(Params) (Strategy, error)

// Registry maps strategy names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry holding the built-in strategies.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("noop", func(p Params) (Strategy, error) { return Noop{name: p.Name}, nil })
	r.Register("open-once", func(p Params) (Strategy, error) { return NewOpenOnce(p) })
	return r
}

func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[normalize(name)] = f
}

// New builds the named strategy. "none" is an alias for noop.
func (r *Registry) New(kind string, p Params) (Strategy, error) {
	key := normalize(kind)
	if key == "none" {
		key = "noop"
	}

	r.mu.RLock()
	f, ok := r.factories[key]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (supported: %s)", kind, strings.Join(r.Names(), ", "))
	}
	if p.Name == "" {
		p.Name = key
	}
	return f(p)
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
