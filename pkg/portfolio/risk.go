package portfolio

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// Risk scans open positions for liquidation and executes closes against the
// ledger. All mutating paths run under the Core lock.
type Risk struct {
	core   *Core
	limits orderLimits
}

// NewRisk wraps a ledger with the closing and liquidation logic.
func NewRisk(core *Core, cfg *Config) *Risk {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Risk{core: core, limits: newOrderLimits(cfg)}
}

// CheckLiquidation returns the symbols whose positions are at liquidation risk
// at the supplied prices, sorted for deterministic iteration. Positions with
// no price entry are skipped, not flagged.
func (r *Risk) CheckLiquidation(prices PriceMap, maintenanceMarginRate decimal.Decimal) []Symbol {
	r.core.mu.Lock()
	defer r.core.mu.Unlock()

	var flagged []Symbol
	for sym, p := range r.core.positions {
		price, ok := prices[sym]
		if !ok {
			continue
		}
		if p.IsLiquidationRisk(price, maintenanceMarginRate) {
			flagged = append(flagged, sym)
		}
	}
	sort.Slice(flagged, func(i, j int) bool { return flagged[i] < flagged[j] })
	return flagged
}

// ClosePositionAtPrice fully closes the position for a symbol at the given
// price with an explicit fee, crediting released margin plus realized PnL and
// returning the realized amount.
func (r *Risk) ClosePositionAtPrice(symbol Symbol, closePrice, fee decimal.Decimal, ts time.Time) (decimal.Decimal, error) {
	if closePrice.Sign() <= 0 {
		return decimal.Zero, invalidf("close_price", "must be positive, got %s", closePrice)
	}
	if fee.Sign() < 0 {
		return decimal.Zero, invalidf("fee", "must be non-negative, got %s", fee)
	}

	r.core.mu.Lock()
	defer r.core.mu.Unlock()

	p, ok := r.core.positions[symbol]
	if !ok {
		return decimal.Zero, &PositionNotFoundError{Symbol: symbol}
	}
	realized := p.UnrealizedPnL(closePrice).Sub(fee)
	if err := r.settleLocked(p, closeOutcome{
		Quantity:       p.Size,
		Realized:       realized,
		ReleasedMargin: p.MarginUsed,
		Fee:            fee,
		Full:           true,
	}, closePrice, closeAction(p.Type), ts); err != nil {
		return decimal.Zero, err
	}
	return realized, nil
}

// ClosePosition closes percentage ∈ (0, 100] of the position at the given
// price, charging the configured taker fee on the closed notional. It returns
// false without error when the symbol has no open position.
func (r *Risk) ClosePosition(symbol Symbol, currentPrice, percentage decimal.Decimal, ts time.Time) (bool, error) {
	if currentPrice.Sign() <= 0 {
		return false, invalidf("current_price", "must be positive, got %s", currentPrice)
	}
	if percentage.Sign() <= 0 || percentage.GreaterThan(oneHundred) {
		return false, invalidf("percentage", "must be in (0, 100], got %s", percentage)
	}

	r.core.mu.Lock()
	defer r.core.mu.Unlock()

	p, ok := r.core.positions[symbol]
	if !ok {
		return false, nil
	}
	closeQty := p.Size.Mul(percentage).Div(oneHundred)
	out := r.limits.settleClose(p, closeQty, currentPrice)
	if err := r.settleLocked(p, out, currentPrice, closeAction(p.Type), ts); err != nil {
		return false, err
	}
	return true, nil
}

// Liquidate force-closes the position at the given mark price and records a
// liquidation trade. The returned LiquidationError is the informational signal
// for the caller; the close has already been applied.
func (r *Risk) Liquidate(symbol Symbol, markPrice decimal.Decimal, ts time.Time) (*LiquidationError, error) {
	if markPrice.Sign() <= 0 {
		return nil, invalidf("mark_price", "must be positive, got %s", markPrice)
	}

	r.core.mu.Lock()
	defer r.core.mu.Unlock()

	p, ok := r.core.positions[symbol]
	if !ok {
		return nil, &PositionNotFoundError{Symbol: symbol}
	}
	out := r.limits.settleClose(p, p.Size, markPrice)
	if err := r.settleLocked(p, out, markPrice, ActionLiquidation, ts); err != nil {
		return nil, err
	}
	return &LiquidationError{
		Symbol: symbol,
		Loss:   out.Realized,
		Reason: "maintenance margin exhausted at mark price " + markPrice.String(),
	}, nil
}

// settleLocked applies a computed close against the ledger: cash is credited
// with released margin plus realized PnL, the position is shrunk or removed,
// and the closing trade is recorded. A close that would push cash negative
// fails before mutating.
func (r *Risk) settleLocked(p *Position, out closeOutcome, price decimal.Decimal, action TradeAction, ts time.Time) error {
	credit := out.ReleasedMargin.Add(out.Realized)
	newCash := r.core.cash.Add(credit)
	if newCash.Sign() < 0 {
		return &InsufficientFundsError{
			Op:        "close " + string(p.Type) + " " + string(p.Symbol),
			Required:  credit.Neg(),
			Available: r.core.cash,
		}
	}
	trade, err := NewTrade(ts, p.Symbol, action, out.Quantity, price, p.Leverage, out.Fee, p.Type, out.Realized, decimal.Zero)
	if err != nil {
		return err
	}
	r.core.cash = newCash
	if out.Full {
		delete(r.core.positions, p.Symbol)
	} else {
		shrink(p, out)
	}
	r.core.recordTradeLocked(trade)
	return nil
}

// closeAction maps a position side to the order action that closes it.
func closeAction(t PositionType) TradeAction {
	if t == Long {
		return ActionSell
	}
	return ActionBuy
}
