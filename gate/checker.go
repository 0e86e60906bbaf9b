package gate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rustyeddy/papertrade/control"
)

// DefaultCacheTTL bounds how stale a control flag may be.
const DefaultCacheTTL = time.Second

// Checker assembles gate Inputs from static settings and a control store.
//
// An emergency kill that cannot be read counts as active. A pause that
// cannot be read counts as not paused; the circuit breakers still gate the
// trade in that case.
type Checker struct {
	paperTrading bool
	killSwitch   bool
	store        control.Store
	ttl          time.Duration
	log          *slog.Logger
	now          func() time.Time

	mu       sync.Mutex
	cached   flags
	cachedAt time.Time
	valid    bool
}

type flags struct {
	emergencyKill bool
	paused        bool
}

type Option func(*Checker)

func WithLogger(l *slog.Logger) Option {
	return func(c *Checker) {
		if l != nil {
			c.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Checker) {
		if now != nil {
			c.now = now
		}
	}
}

// WithCacheTTL sets how long flag reads are reused. Zero disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Checker) {
		if ttl >= 0 {
			c.ttl = ttl
		}
	}
}

// NewChecker builds a Checker. A nil store means both persisted flags are off.
func NewChecker(paperTrading, killSwitch bool, store control.Store, opts ...Option) *Checker {
	c := &Checker{
		paperTrading: paperTrading,
		killSwitch:   killSwitch,
		store:        store,
		ttl:          DefaultCacheTTL,
		log:          slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Inputs returns the current gate inputs. breakerPaused is OR-ed into Paused.
func (c *Checker) Inputs(ctx context.Context, breakerPaused bool) Inputs {
	f := c.flags(ctx)
	return Inputs{
		PaperTrading:  c.paperTrading,
		KillSwitch:    c.killSwitch,
		EmergencyKill: f.emergencyKill,
		Paused:        f.paused || breakerPaused,
	}
}

// Check evaluates the gate.
func (c *Checker) Check(ctx context.Context, breakerPaused bool) Decision {
	d := MayExecuteTrade(c.Inputs(ctx, breakerPaused))
	if !d.Allowed {
		c.log.Info("trade denied by gate",
			slog.String("code", string(d.Code)),
			slog.String("reason", d.Reason))
	}
	return d
}

// Invalidate drops the cached flags so the next check reads the store.
func (c *Checker) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.valid = false
}

func (c *Checker) flags(ctx context.Context) flags {
	if c.store == nil {
		return flags{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.valid && c.ttl > 0 && now.Sub(c.cachedAt) < c.ttl {
		return c.cached
	}

	var f flags
	kill, err := c.store.EmergencyKill(ctx)
	if err != nil {
		c.log.Error("emergency kill flag unreadable, failing closed", slog.Any("error", err))
		f.emergencyKill = true
	} else {
		f.emergencyKill = kill.Active
	}

	pause, err := c.store.Paused(ctx)
	if err != nil {
		c.log.Warn("pause flag unreadable, failing open", slog.Any("error", err))
	} else {
		f.paused = pause.Active
	}

	c.cached = f
	c.cachedAt = now
	c.valid = true
	return f
}
