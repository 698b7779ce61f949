package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"

	"backsim/pkg/market"
	"backsim/pkg/portfolio"
)

// Feeder yields sequential market snapshots for a symbol.
type Feeder interface {
	Next(ctx context.Context, symbol string) (*market.Snapshot, bool, error)
}

// OrderSide is the direction of a strategy order.
type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// Order is a strategy's request against the simulated account.
type Order struct {
	Side     OrderSide
	Amount   float64
	Leverage float64
}

// Strategy maps a snapshot into orders for the current bar.
type Strategy interface {
	Decide(ctx context.Context, snap *market.Snapshot) ([]Order, error)
}

// Engine drives a Feeder, a Strategy and a simulated account bar by bar: risk
// scan, strategy orders, then a valuation snapshot every step.
type Engine struct {
	Feeder   Feeder
	Strategy Strategy
	Account  *portfolio.Engine
	Symbol   string

	// Optional: write a JSON report to this path after the run.
	OutputPath string
}

// Run executes the simulation until the feeder is exhausted.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if e.Feeder == nil || e.Strategy == nil || e.Account == nil || e.Symbol == "" {
		return nil, fmt.Errorf("backtest: engine not fully configured")
	}
	symbol := portfolio.CanonicalSymbol(e.Symbol)
	mmr := decimal.NewFromFloat(e.Account.Config().MaintenanceMarginRate)

	res := &Result{
		Config: RunConfig{
			Symbol:         string(symbol),
			Mode:           e.Account.Core.Mode().String(),
			InitialCapital: e.Account.Core.InitialCapital().InexactFloat64(),
		},
		Status: StatusCompleted,
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		snap, ok, err := e.Feeder.Next(ctx, string(symbol))
		if err != nil {
			res.Status = StatusFailed
			res.ErrorMessage = err.Error()
			return res, err
		}
		if !ok {
			break
		}
		res.Steps++

		ts := snap.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		price := decimal.NewFromFloat(snap.Price)
		prices := portfolio.PriceMap{symbol: price}

		// Forced closes happen before the strategy sees the bar.
		for _, sym := range e.Account.Risk.CheckLiquidation(prices, mmr) {
			event, err := e.Account.Risk.Liquidate(sym, price, ts)
			if err != nil {
				res.Status = StatusFailed
				res.ErrorMessage = err.Error()
				return res, err
			}
			res.Liquidations++
			logx.WithContext(ctx).Infof("backtest: step %d %v", res.Steps, event)
		}

		orders, err := e.Strategy.Decide(ctx, snap)
		if err != nil {
			res.Status = StatusFailed
			res.ErrorMessage = err.Error()
			return res, err
		}
		for _, ord := range orders {
			if err := e.place(ord, symbol, price, ts, res); err != nil {
				res.Status = StatusFailed
				res.ErrorMessage = err.Error()
				return res, err
			}
		}

		e.Account.Core.RecordSnapshot(ts, prices)
	}

	e.finalize(res)

	if e.OutputPath != "" {
		if err := WriteReport(e.OutputPath, res); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (e *Engine) place(ord Order, symbol portfolio.Symbol, price decimal.Decimal, ts time.Time, res *Result) error {
	amount := decimal.NewFromFloat(ord.Amount)
	leverage := decimal.NewFromFloat(ord.Leverage)
	if leverage.Sign() <= 0 {
		leverage = decimal.NewFromInt(1)
	}
	res.OrdersSent++

	var (
		executed bool
		err      error
	)
	switch ord.Side {
	case SideBuy:
		_, executed, err = e.Account.Trading.Buy(symbol, amount, price, leverage, ts)
	case SideSell:
		_, executed, err = e.Account.Trading.Sell(symbol, amount, price, leverage, ts)
	default:
		return fmt.Errorf("backtest: unknown order side %q", ord.Side)
	}
	if err != nil {
		// An order the account cannot afford is a normal simulation outcome,
		// not a run failure.
		var insufficient *portfolio.InsufficientFundsError
		if errors.As(err, &insufficient) {
			res.Rejected++
			logx.Infof("backtest: order rejected: %v", insufficient)
			return nil
		}
		return err
	}
	if !executed {
		res.Rejected++
		return nil
	}
	res.Executed++
	return nil
}

func (e *Engine) finalize(res *Result) {
	res.Trades = e.Account.Core.Trades()
	res.History = e.Account.Core.History()

	equity := make([]float64, 0, len(res.History)+1)
	equity = append(equity, res.Config.InitialCapital)
	for _, s := range res.History {
		equity = append(equity, s.PortfolioValue.InexactFloat64())
	}

	realized := e.Account.Core.RealizedPnL().InexactFloat64()
	unrealized := 0.0
	finalValue := res.Config.InitialCapital
	if n := len(res.History); n > 0 {
		last := res.History[n-1]
		unrealized = last.UnrealizedPnL.InexactFloat64()
		finalValue = last.PortfolioValue.InexactFloat64()
	}

	wins, closes := 0, 0
	for _, tr := range res.Trades {
		if tr.PnL.IsZero() && tr.MarginUsed.Sign() > 0 {
			continue // pure open
		}
		closes++
		if tr.PnL.Sign() > 0 {
			wins++
		}
	}
	winRate := 0.0
	if closes > 0 {
		winRate = float64(wins) / float64(closes)
	}

	res.Metrics = RunMetrics{
		RealizedPnL:    realized,
		UnrealizedPnL:  unrealized,
		TotalPnL:       realized + unrealized,
		FinalValue:     finalValue,
		WinRate:        winRate,
		ClosedTrades:   closes,
		MaxDrawdownPct: maxDrawdownPct(equity),
		Sharpe:         sharpe(equity),
	}
}
