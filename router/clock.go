package router

import (
	"sync"
	"time"
)

// Clock is the time source for replays. While a signal is being routed it
// reports the signal's own timestamp; signals without one fall back to the
// wall clock. Pass Now to the engine and the breakers so fills and the
// hourly loss window follow the replayed timeline.
type Clock struct {
	mu   sync.Mutex
	at   time.Time
	wall func() time.Time
}

func NewClock() *Clock {
	return &Clock{wall: time.Now}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.at.IsZero() {
		return c.wall()
	}
	return c.at
}

func (c *Clock) set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.at = t
}
