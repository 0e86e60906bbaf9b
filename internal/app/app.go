// Package app builds the paper trading stack from configuration.
package app

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/rustyeddy/papertrade/broker"
	"github.com/rustyeddy/papertrade/config"
	"github.com/rustyeddy/papertrade/control"
	"github.com/rustyeddy/papertrade/gate"
	"github.com/rustyeddy/papertrade/journal"
	"github.com/rustyeddy/papertrade/risk"
	"github.com/rustyeddy/papertrade/router"
	"github.com/rustyeddy/papertrade/sim"
	"github.com/rustyeddy/papertrade/strategies"
)

// App holds every component of one paper trading session.
type App struct {
	Config     *config.Config
	Log        *slog.Logger
	Engine     *sim.Engine
	Breakers   *risk.DrawdownProtection
	Gate       *gate.Checker
	Control    control.Store
	Journal    journal.Journal
	Router     *router.Router
	Strategies *strategies.Registry

	// Clock follows signal timestamps so replayed fills and loss windows
	// use the replayed time.
	Clock *router.Clock
}

// New wires the components in dependency order. On error anything already
// opened is closed.
func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	ttl, err := cfg.Gate.ParseCacheTTL()
	if err != nil {
		return nil, fmt.Errorf("gate.cache_ttl: %w", err)
	}

	store, err := OpenControl(cfg.Control)
	if err != nil {
		return nil, err
	}
	j, err := OpenJournal(cfg.Journal)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	a := &App{
		Config:     cfg,
		Log:        log,
		Control:    store,
		Journal:    j,
		Strategies: strategies.NewRegistry(),
		Clock:      router.NewClock(),
	}

	a.Engine = sim.NewEngine(
		broker.Account{
			ID:       cfg.Account.ID,
			Currency: cfg.Account.Currency,
			Cash:     cfg.Account.Balance,
		},
		sim.Config{
			CommissionRate: cfg.Engine.CommissionRate,
			SlippageRate:   cfg.Engine.SlippageRate,
		},
		j,
		sim.WithLogger(log.With(slog.String("component", "engine"))),
		sim.WithClock(a.Clock.Now),
	)
	a.Breakers = risk.NewDrawdownProtection(cfg.Risk.Policy(),
		risk.WithLogger(log.With(slog.String("component", "breakers"))),
		risk.WithClock(a.Clock.Now))
	a.Gate = gate.NewChecker(cfg.Gate.PaperTrading, cfg.Gate.KillSwitch, store,
		gate.WithCacheTTL(ttl),
		gate.WithLogger(log.With(slog.String("component", "gate"))))
	a.Router = router.New(a.Engine, a.Breakers, a.Gate, store,
		router.Allocation{
			MaxTradeFraction: cfg.Allocation.MaxTradeFraction,
			DefaultShare:     cfg.Allocation.DefaultShare,
			Shares:           cfg.Allocation.Strategies,
		},
		router.WithLogger(log.With(slog.String("component", "router"))),
		router.WithClock(a.Clock))

	log.Debug("paper trading stack ready",
		slog.String("account", cfg.Account.ID),
		slog.Float64("balance", cfg.Account.Balance),
		slog.String("control", cfg.Control.Type),
		slog.String("journal", cfg.Journal.Type))
	return a, nil
}

// Close releases the journal and control store.
func (a *App) Close() error {
	return errors.Join(a.Journal.Close(), a.Control.Close())
}

// OpenControl opens the configured flag store.
func OpenControl(cfg config.ControlConfig) (control.Store, error) {
	switch cfg.Type {
	case "", "memory":
		return control.NewMemory(), nil
	case "file":
		s, err := control.NewFileStore(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("open control store: %w", err)
		}
		return s, nil
	case "sqlite":
		s, err := control.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open control store: %w", err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown control type %q", cfg.Type)
}

// OpenJournal opens the configured trade journal.
func OpenJournal(cfg config.JournalConfig) (journal.Journal, error) {
	switch cfg.Type {
	case "", "none":
		return journal.Discard, nil
	case "csv":
		j, err := journal.NewCSV(cfg.TradesFile, cfg.SnapshotsFile)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		return j, nil
	case "sqlite":
		j, err := journal.NewSQLite(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		return j, nil
	}
	return nil, fmt.Errorf("unknown journal type %q", cfg.Type)
}

// NewLogger builds a text or JSON slog logger at the configured level.
func NewLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel maps a level name to slog; unknown names mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
