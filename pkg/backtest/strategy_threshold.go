package backtest

import (
	"context"

	"backsim/pkg/market"
)

// ThresholdStrategy buys when price increases above threshold% vs previous, sells when decreases below -threshold%.
type ThresholdStrategy struct {
	LastPrice  float64
	ThresholdP float64 // percent
	Amount     float64 // order size in base units
	Leverage   float64 // 0 means 1x
}

func (s *ThresholdStrategy) Decide(ctx context.Context, snap *market.Snapshot) ([]Order, error) {
	px := snap.Price
	if s.LastPrice == 0 {
		s.LastPrice = px
		return nil, nil
	}
	pct := (px - s.LastPrice) / s.LastPrice * 100
	s.LastPrice = px
	if pct >= s.ThresholdP {
		return []Order{{Side: SideBuy, Amount: s.Amount, Leverage: s.Leverage}}, nil
	}
	if pct <= -s.ThresholdP {
		return []Order{{Side: SideSell, Amount: s.Amount, Leverage: s.Leverage}}, nil
	}
	return nil, nil
}
