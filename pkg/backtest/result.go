package backtest

import (
	"encoding/json"
	"math"
	"os"

	"backsim/pkg/portfolio"
)

// Run status values.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// RunConfig echoes the account setup into the result for reporting.
type RunConfig struct {
	Symbol         string  `json:"symbol"`
	Mode           string  `json:"mode"`
	InitialCapital float64 `json:"initial_capital"`
}

// RunMetrics summarises the equity curve and trade outcomes.
type RunMetrics struct {
	RealizedPnL    float64 `json:"realized_pnl"`
	UnrealizedPnL  float64 `json:"unrealized_pnl"`
	TotalPnL       float64 `json:"total_pnl"`
	FinalValue     float64 `json:"final_value"`
	WinRate        float64 `json:"win_rate"`
	ClosedTrades   int     `json:"closed_trades"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	Sharpe         float64 `json:"sharpe"`
}

// Result is the full outcome of one simulation run: the configuration echo,
// the retained trade and valuation histories, and derived metrics.
type Result struct {
	Config       RunConfig             `json:"config"`
	Steps        int                   `json:"steps"`
	OrdersSent   int                   `json:"orders_sent"`
	Executed     int                   `json:"executed"`
	Rejected     int                   `json:"rejected"`
	Liquidations int                   `json:"liquidations"`
	Trades       []portfolio.Trade     `json:"trades"`
	History      []portfolio.Snapshot  `json:"portfolio_history"`
	Metrics      RunMetrics            `json:"metrics"`
	Status       string                `json:"status"`
	ErrorMessage string                `json:"error_message,omitempty"`
}

// WriteReport persists a run result as an indented JSON artifact.
func WriteReport(path string, r *Result) error {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

func maxDrawdownPct(equity []float64) float64 {
	if len(equity) == 0 {
		return 0
	}
	peak := equity[0]
	mdd := 0.0
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak == 0 {
			continue
		}
		dd := (peak - v) / peak
		if dd > mdd {
			mdd = dd
		}
	}
	return mdd * 100
}

func sharpe(equity []float64) float64 {
	if len(equity) < 2 {
		return 0
	}
	rets := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			continue
		}
		rets = append(rets, equity[i]/equity[i-1]-1)
	}
	if len(rets) == 0 {
		return 0
	}
	mean := 0.0
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))
	variance := 0.0
	for _, r := range rets {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(rets))
	sd := math.Sqrt(variance)
	if sd == 0 {
		return 0
	}
	return mean / sd * math.Sqrt(float64(len(rets)))
}
