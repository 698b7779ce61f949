package market

import "time"

// Kline is one OHLCV bar as supplied by the data-acquisition layer. Prices
// stay float64 at this boundary; the ledger converts to fixed-point decimals
// when an order reaches it.
type Kline struct {
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// Snapshot is the per-step view a feeder hands to a strategy.
type Snapshot struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
	// Change is the fractional move since the previous bar (0.01 == +1%).
	Change float64 `json:"change"`
	Bar    *Kline  `json:"bar,omitempty"`
}

// Closes extracts the close series from a bar slice.
func Closes(bars []Kline) []float64 {
	out := make([]float64, len(bars))
	for i := range bars {
		out[i] = bars[i].Close
	}
	return out
}
