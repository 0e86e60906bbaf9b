// Package control persists the operator flags the execution gate reads,
// a resumable pause and an emergency kill switch, plus one-shot reset
// requests for the circuit breaker baselines.
package control

import (
	"context"
	"sync"
	"time"
)

// Flag is the persisted value of one control.
type Flag struct {
	Active    bool      `json:"active" yaml:"active"`
	Reason    string    `json:"reason,omitempty" yaml:"reason,omitempty"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Store reads and writes the flags. An unset flag reads as inactive with a
// nil error; an error means the flag could not be determined.
type Store interface {
	Paused(ctx context.Context) (Flag, error)
	EmergencyKill(ctx context.Context) (Flag, error)
	SetPaused(ctx context.Context, active bool, reason string) error
	SetEmergencyKill(ctx context.Context, active bool, reason string) error

	// Reset requests are stamped with UpdatedAt; a router applies each
	// request once, when it sees a stamp newer than the last one applied.
	DailyReset(ctx context.Context) (Flag, error)
	PeakReset(ctx context.Context) (Flag, error)
	RequestDailyReset(ctx context.Context, reason string) error
	RequestPeakReset(ctx context.Context, reason string) error

	Close() error
}

const (
	keyPaused        = "pause"
	keyEmergencyKill = "emergency_kill"
	keyDailyReset    = "daily_reset"
	keyPeakReset     = "peak_reset"
)

// Memory is an in-process Store.
type Memory struct {
	mu    sync.Mutex
	flags map[string]Flag
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{flags: make(map[string]Flag), now: time.Now}
}

func (m *Memory) Paused(ctx context.Context) (Flag, error)        { return m.get(keyPaused), nil }
func (m *Memory) EmergencyKill(ctx context.Context) (Flag, error) { return m.get(keyEmergencyKill), nil }

func (m *Memory) SetPaused(ctx context.Context, active bool, reason string) error {
	m.set(keyPaused, active, reason)
	return nil
}

func (m *Memory) SetEmergencyKill(ctx context.Context, active bool, reason string) error {
	m.set(keyEmergencyKill, active, reason)
	return nil
}

func (m *Memory) DailyReset(ctx context.Context) (Flag, error) { return m.get(keyDailyReset), nil }
func (m *Memory) PeakReset(ctx context.Context) (Flag, error)  { return m.get(keyPeakReset), nil }

func (m *Memory) RequestDailyReset(ctx context.Context, reason string) error {
	m.set(keyDailyReset, true, reason)
	return nil
}

func (m *Memory) RequestPeakReset(ctx context.Context, reason string) error {
	m.set(keyPeakReset, true, reason)
	return nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) get(key string) Flag {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flags[key]
}

func (m *Memory) set(key string, active bool, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flags[key] = Flag{Active: active, Reason: reason, UpdatedAt: m.now().UTC()}
}
