package backtest

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"backsim/pkg/market"
)

// CSVKlineFeeder streams klines from a CSV file with columns
// timestamp,open,high,low,close,volume. A header row is skipped when the
// first field is not numeric.
type CSVKlineFeeder struct {
	symbol string
	bars   []market.Kline
	idx    int
}

// NewCSVKlineFeeder loads the whole file up front. Backtests replay small
// windows, so buffering beats streaming here.
func NewCSVKlineFeeder(symbol, path string) (*CSVKlineFeeder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("backtest: open kline csv: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("backtest: read kline csv: %w", err)
	}

	bars := make([]market.Kline, 0, len(rows))
	for i, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("backtest: kline row %d: want 6 columns, got %d", i, len(row))
		}
		if i == 0 && !isNumeric(row[0]) {
			continue
		}
		bar, err := parseKlineRow(row)
		if err != nil {
			return nil, fmt.Errorf("backtest: kline row %d: %w", i, err)
		}
		bars = append(bars, bar)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("backtest: kline csv %s is empty", path)
	}
	return &CSVKlineFeeder{symbol: symbol, bars: bars}, nil
}

func parseKlineRow(row []string) (market.Kline, error) {
	var bar market.Kline

	tsRaw, err := strconv.ParseInt(strings.TrimSpace(row[0]), 10, 64)
	if err != nil {
		return bar, fmt.Errorf("timestamp: %w", err)
	}
	// Accept both seconds and milliseconds epochs.
	if tsRaw > 1e12 {
		bar.OpenTime = time.UnixMilli(tsRaw)
	} else {
		bar.OpenTime = time.Unix(tsRaw, 0)
	}

	fields := []*float64{&bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume}
	names := []string{"open", "high", "low", "close", "volume"}
	for i, dst := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(row[i+1]), 64)
		if err != nil {
			return bar, fmt.Errorf("%s: %w", names[i], err)
		}
		*dst = v
	}
	return bar, nil
}

func isNumeric(s string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}

// Next returns the next bar as a snapshot, false at end of data.
func (f *CSVKlineFeeder) Next(ctx context.Context, symbol string) (*market.Snapshot, bool, error) {
	if f.idx >= len(f.bars) {
		return nil, false, nil
	}
	bar := f.bars[f.idx]
	f.idx++

	change := 0.0
	if f.idx >= 2 {
		prev := f.bars[f.idx-2].Close
		if prev != 0 {
			change = (bar.Close - prev) / prev
		}
	}
	return &market.Snapshot{
		Symbol:    symbol,
		Timestamp: bar.OpenTime,
		Price:     bar.Close,
		Change:    change,
		Bar:       &bar,
	}, true, nil
}

// Bars exposes the loaded series for indicator warmup.
func (f *CSVKlineFeeder) Bars() []market.Kline {
	return f.bars
}
