package backtest

import (
	"context"
	"time"

	"backsim/pkg/market"
)

// PriceFeeder emits snapshots built from a static price series, one bar per
// step at a fixed interval.
type PriceFeeder struct {
	symbol   string
	prices   []float64
	start    time.Time
	interval time.Duration
	idx      int
}

// NewPriceFeeder builds an in-memory feeder over a close series.
func NewPriceFeeder(symbol string, prices []float64) *PriceFeeder {
	return &PriceFeeder{
		symbol:   symbol,
		prices:   prices,
		start:    time.Now(),
		interval: time.Minute,
	}
}

// Next returns the next snapshot, false when the series is exhausted.
func (f *PriceFeeder) Next(ctx context.Context, symbol string) (*market.Snapshot, bool, error) {
	if f.idx >= len(f.prices) {
		return nil, false, nil
	}
	px := f.prices[f.idx]
	ts := f.start.Add(time.Duration(f.idx) * f.interval)
	f.idx++

	change := 0.0
	if f.idx >= 2 {
		prev := f.prices[f.idx-2]
		if prev != 0 {
			change = (px - prev) / prev
		}
	}
	return &market.Snapshot{
		Symbol:    symbol,
		Timestamp: ts,
		Price:     px,
		Change:    change,
	}, true, nil
}
