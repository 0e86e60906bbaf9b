package strategies

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/papertrade/broker"
)

func TestSignalValidate(t *testing.T) {
	t.Parallel()

	base := Signal{Symbol: "AAPL", Side: broker.SideBuy, Quantity: 10, ReferencePrice: 100}

	tests := []struct {
		name  string
		edit  func(*Signal)
		field string
	}{
		{"ok", func(*Signal) {}, ""},
		{"notional only", func(s *Signal) { s.Quantity, s.Notional = 0, 1000 }, ""},
		{"no symbol", func(s *Signal) { s.Symbol = "" }, "symbol"},
		{"bad side", func(s *Signal) { s.Side = "hold" }, "side"},
		{"bad kind", func(s *Signal) { s.Kind = "iceberg" }, "kind"},
		{"no reference", func(s *Signal) { s.ReferencePrice = 0 }, "reference_price"},
		{"no size", func(s *Signal) { s.Quantity = 0 }, "quantity"},
		{"negative size", func(s *Signal) { s.Quantity = -5 }, "quantity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base
			tt.edit(&s)
			err := s.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, broker.ErrValidation)
			var ve *broker.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestSignalUnitsAndRequest(t *testing.T) {
	t.Parallel()

	s := Signal{Strategy: "s1", Symbol: "AAPL", Side: broker.SideSell, Notional: 1000, ReferencePrice: 50}
	assert.InDelta(t, 20, s.Units(), 1e-12)

	s.Quantity = 3
	assert.InDelta(t, 3, s.Units(), 1e-12, "quantity wins over notional")

	req := s.Request(2)
	assert.Equal(t, broker.KindMarket, req.Kind)
	assert.Equal(t, 2.0, req.Quantity)
	assert.Equal(t, "s1", req.Strategy)
	assert.NoError(t, req.Validate())
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	assert.Equal(t, []string{"noop", "open-once"}, r.Names())

	s, err := r.New(" NONE ", Params{})
	require.NoError(t, err)
	assert.Equal(t, "noop", s.Name())

	_, err = r.New("ema-cross", Params{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "supported: noop, open-once")

	_, err = r.New("open-once", Params{Symbol: "AAPL"})
	assert.Error(t, err, "zero quantity")
}

func TestOpenOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, err := NewOpenOnce(Params{Name: "starter", Symbol: "AAPL", Quantity: -5})
	require.NoError(t, err)

	sigs, err := s.Signals(ctx, broker.Prices{"MSFT": 300})
	require.NoError(t, err)
	assert.Empty(t, sigs, "wrong symbol")

	sigs, err = s.Signals(ctx, broker.Prices{"AAPL": 150})
	require.NoError(t, err)
	require.Len(t, sigs, 1)
	assert.Equal(t, broker.SideSell, sigs[0].Side)
	assert.Equal(t, 5.0, sigs[0].Quantity)
	assert.Equal(t, 150.0, sigs[0].ReferencePrice)
	assert.Equal(t, "starter", sigs[0].Strategy)
	assert.NoError(t, sigs[0].Validate())

	sigs, err = s.Signals(ctx, broker.Prices{"AAPL": 151})
	require.NoError(t, err)
	assert.Empty(t, sigs)
}

func TestNoop(t *testing.T) {
	sigs, err := Noop{}.Signals(context.Background(), broker.Prices{"AAPL": 1})
	assert.NoError(t, err)
	assert.Empty(t, sigs)
}

func TestScriptedDrains(t *testing.T) {
	t.Parallel()

	s := NewScripted("script", []Signal{{Symbol: "A"}, {Symbol: "B", Strategy: "other"}})
	sigs, err := s.Signals(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, sigs, 2)
	assert.Equal(t, "script", sigs[0].Strategy)
	assert.Equal(t, "other", sigs[1].Strategy)

	sigs, err = s.Signals(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, sigs)
}

func TestGroupByStrategy(t *testing.T) {
	t.Parallel()

	groups := GroupByStrategy([]Signal{
		{Strategy: "b", Symbol: "1"},
		{Symbol: "2"},
		{Strategy: "b", Symbol: "3"},
	}, "manual")
	require.Len(t, groups, 2)
	assert.Equal(t, "b", groups[0].Name())
	assert.Equal(t, "manual", groups[1].Name())

	sigs, _ := groups[0].Signals(context.Background(), nil)
	require.Len(t, sigs, 2)
	assert.Equal(t, "3", sigs[1].Symbol)
}

func TestReadSignals(t *testing.T) {
	t.Parallel()

	in := `strategy,symbol,side,kind,quantity,notional,reference_price,price,stop_price,time
# comment rows are skipped
mom,AAPL,buy,market,10,,150.5,,,2024-01-02T15:04:05Z
mom,AAPL,SELL,limit,,3000,151,150,,
rev,MSFT,buy,stop-limit,1,,300,305,302,
`
	sigs, err := ReadSignals(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, sigs, 3)

	assert.Equal(t, "mom", sigs[0].Strategy)
	assert.Equal(t, broker.KindMarket, sigs[0].Kind)
	assert.Equal(t, 10.0, sigs[0].Quantity)
	assert.Equal(t, 150.5, sigs[0].ReferencePrice)
	assert.Equal(t, 2024, sigs[0].Time.Year())
	assert.Nil(t, sigs[0].Price)

	assert.Equal(t, broker.SideSell, sigs[1].Side)
	assert.Equal(t, 3000.0, sigs[1].Notional)
	require.NotNil(t, sigs[1].Price)
	assert.Equal(t, 150.0, *sigs[1].Price)

	assert.Equal(t, broker.KindStopLimit, sigs[2].Kind)
	require.NotNil(t, sigs[2].StopPrice)
	assert.Equal(t, 302.0, *sigs[2].StopPrice)
}

func TestReadSignalsErrors(t *testing.T) {
	t.Parallel()

	_, err := ReadSignals(strings.NewReader("symbol,side\nAAPL,buy\n"))
	assert.ErrorContains(t, err, "reference_price")

	_, err = ReadSignals(strings.NewReader("symbol,side,reference_price\nAAPL,hold,1\n"))
	assert.ErrorIs(t, err, broker.ErrValidation)
	assert.ErrorContains(t, err, "row 2")

	_, err = ReadSignals(strings.NewReader("symbol,side,reference_price\nAAPL,buy,abc\n"))
	assert.ErrorContains(t, err, "reference_price")

	sigs, err := ReadSignals(strings.NewReader(""))
	assert.NoError(t, err)
	assert.Empty(t, sigs)
}
