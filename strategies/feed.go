package strategies

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/papertrade/broker"
)

// SignalColumns is the header ReadSignals understands. Only symbol, side and
// reference_price are required; the rest may be omitted or left blank.
var SignalColumns = []string{
	"time", "strategy", "symbol", "side", "kind",
	"quantity", "notional", "reference_price", "price", "stop_price",
}

// ReadSignals parses a CSV signal file. The first row must be a header
// naming columns from SignalColumns in any order.
func ReadSignals(r io.Reader) ([]Signal, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read signal header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, req := range []string{"symbol", "side", "reference_price"} {
		if _, ok := cols[req]; !ok {
			return nil, fmt.Errorf("signal header missing %q column", req)
		}
	}

	var out []Signal
	line := 1
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read signal row %d: %w", line, err)
		}
		if len(row) == 0 {
			continue
		}

		sig, err := parseSignalRow(row, cols)
		if err != nil {
			return nil, fmt.Errorf("signal row %d: %w", line, err)
		}
		out = append(out, sig)
	}
}

func parseSignalRow(row []string, cols map[string]int) (Signal, error) {
	get := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var (
		sig Signal
		err error
	)
	sig.Strategy = get("strategy")
	sig.Symbol = get("symbol")
	if sig.Side, err = broker.ParseSide(get("side")); err != nil {
		return Signal{}, err
	}
	if sig.Kind, err = broker.ParseKind(get("kind")); err != nil {
		return Signal{}, err
	}
	if sig.Quantity, err = parseFloat("quantity", get("quantity")); err != nil {
		return Signal{}, err
	}
	if sig.Notional, err = parseFloat("notional", get("notional")); err != nil {
		return Signal{}, err
	}
	if sig.ReferencePrice, err = parseFloat("reference_price", get("reference_price")); err != nil {
		return Signal{}, err
	}
	if sig.Price, err = parseOptional("price", get("price")); err != nil {
		return Signal{}, err
	}
	if sig.StopPrice, err = parseOptional("stop_price", get("stop_price")); err != nil {
		return Signal{}, err
	}
	if ts := get("time"); ts != "" {
		if sig.Time, err = time.Parse(time.RFC3339, ts); err != nil {
			return Signal{}, fmt.Errorf("time: %w", err)
		}
	}
	return sig, nil
}

func parseFloat(field, s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	return v, nil
}

func parseOptional(field, s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := parseFloat(field, s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
