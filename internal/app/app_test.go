package app

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/papertrade/broker"
	"github.com/rustyeddy/papertrade/config"
	"github.com/rustyeddy/papertrade/journal"
	"github.com/rustyeddy/papertrade/router"
	"github.com/rustyeddy/papertrade/strategies"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Account.Balance = 10000
	cfg.Engine = config.EngineConfig{}
	cfg.Allocation.MaxTradeFraction = 0
	cfg.Gate.CacheTTL = "0s"
	cfg.Control = config.ControlConfig{Type: "file", Dir: filepath.Join(dir, "control")}
	cfg.Journal = config.JournalConfig{Type: "sqlite", DBPath: filepath.Join(dir, "journal.db")}
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestNewWiresEndToEnd(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Risk = config.RiskConfig{MaxConsecutiveLosses: 1}

	a, err := New(cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	sig := strategies.Signal{Strategy: "manual", Symbol: "AAPL", Side: broker.SideBuy, Quantity: 10, ReferencePrice: 100}
	res := a.Router.HandleSignal(ctx, sig)
	require.True(t, res.Success, res.Reason)

	sig.Side, sig.ReferencePrice = broker.SideSell, 95
	res = a.Router.HandleSignal(ctx, sig)
	require.True(t, res.Success, res.Reason)
	assert.True(t, res.Paused)

	// The pause reached the file store.
	flag, err := a.Control.Paused(ctx)
	require.NoError(t, err)
	assert.True(t, flag.Active)

	// And the fills reached the journal.
	db, ok := a.Journal.(*journal.SQLite)
	require.True(t, ok)
	pl, err := db.RealizedPL("AAPL")
	require.NoError(t, err)
	assert.InDelta(t, -50, pl, 1e-9)

	res = a.Router.HandleSignal(ctx, sig)
	assert.Equal(t, router.StatusDenied, res.Status)
}

func TestPauseSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	a, err := New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, a.Control.SetPaused(ctx, true, "operator"))
	require.NoError(t, a.Close())

	a, err = New(cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	res := a.Router.HandleSignal(ctx, strategies.Signal{Symbol: "AAPL", Side: broker.SideBuy, Quantity: 1, ReferencePrice: 10})
	assert.Equal(t, "trading is paused", res.Reason)

	require.NoError(t, a.Router.Resume(ctx))
	res = a.Router.HandleSignal(ctx, strategies.Signal{Symbol: "AAPL", Side: broker.SideBuy, Quantity: 1, ReferencePrice: 10})
	assert.True(t, res.Success, res.Reason)
}

func TestOpenUnknownBackends(t *testing.T) {
	_, err := OpenControl(config.ControlConfig{Type: "etcd"})
	assert.Error(t, err)
	_, err = OpenJournal(config.JournalConfig{Type: "kafka"})
	assert.Error(t, err)

	j, err := OpenJournal(config.JournalConfig{Type: "none"})
	require.NoError(t, err)
	assert.Equal(t, journal.Discard, j)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(config.LogConfig{Level: "warn", Format: "json"}, &buf)
	log.Info("hidden")
	log.Warn("shown", slog.String("k", "v"))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"k":"v"`)

	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("chatty"))
}
