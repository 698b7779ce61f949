package portfolio

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trading orchestrates buy and sell orders against the ledger. Each symbol is
// in one of three states (no position, long, short) and an order either opens,
// grows, or closes exposure depending on that state.
//
// The second return distinguishes policy from error: mode rules such as a spot
// short attempt or a spot over-sell reject the order with executed=false and a
// nil error, while invariant violations return a typed error. Either way a
// failed order leaves the ledger untouched.
type Trading struct {
	core   *Core
	risk   *Risk
	limits orderLimits
}

// NewTrading wires the order state machine over a ledger and its risk module.
func NewTrading(core *Core, risk *Risk, cfg *Config) *Trading {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Trading{core: core, risk: risk, limits: newOrderLimits(cfg)}
}

// Buy opens a long, adds to an existing long, or covers an existing short.
func (t *Trading) Buy(symbol Symbol, amount, price, leverage decimal.Decimal, ts time.Time) (*Trade, bool, error) {
	if err := t.limits.validateOrder(symbol, amount, price, leverage); err != nil {
		return nil, false, err
	}
	notional := amount.Mul(price)
	marginNeeded := notional.Div(leverage)
	openFee := t.limits.fee(notional)

	t.core.mu.Lock()
	defer t.core.mu.Unlock()

	p, exists := t.core.positions[symbol]
	if !exists {
		return t.openLocked(symbol, Long, amount, price, leverage, marginNeeded, openFee, ts)
	}
	if p.Type == Short {
		// Buying against a short covers it, up to the open size.
		out := t.limits.settleClose(p, amount, price)
		if err := t.risk.settleLocked(p, out, price, ActionBuy, ts); err != nil {
			return nil, false, err
		}
		return t.lastTradeLocked(), true, nil
	}
	return t.growLocked(p, ActionBuy, amount, price, marginNeeded, openFee, ts)
}

// Sell closes or reduces an existing long, adds to an existing short, or opens
// a new short. Shorting and over-selling are mode policy: in spot mode both
// are rejected with executed=false rather than an error.
func (t *Trading) Sell(symbol Symbol, amount, price, leverage decimal.Decimal, ts time.Time) (*Trade, bool, error) {
	if err := t.limits.validateOrder(symbol, amount, price, leverage); err != nil {
		return nil, false, err
	}
	notional := amount.Mul(price)
	marginNeeded := notional.Div(leverage)
	openFee := t.limits.fee(notional)

	t.core.mu.Lock()
	defer t.core.mu.Unlock()

	p, exists := t.core.positions[symbol]
	if !exists {
		if !t.limits.mode.AllowsShort() {
			return nil, false, nil
		}
		return t.openLocked(symbol, Short, amount, price, leverage, marginNeeded, openFee, ts)
	}
	if p.Type == Long {
		if t.limits.mode == ModeSpot && amount.GreaterThan(p.Size) {
			// Cannot sell more than is held in spot mode.
			return nil, false, nil
		}
		out := t.limits.settleClose(p, amount, price)
		if err := t.risk.settleLocked(p, out, price, ActionSell, ts); err != nil {
			return nil, false, err
		}
		return t.lastTradeLocked(), true, nil
	}
	if !t.limits.mode.AllowsShort() {
		return nil, false, nil
	}
	return t.growLocked(p, ActionSell, amount, price, marginNeeded, openFee, ts)
}

// openLocked creates a fresh position and its opening trade. Cash decreases by
// exactly the committed margin; the taker fee is carried on the trade record
// and settles against PnL on the closing side.
func (t *Trading) openLocked(symbol Symbol, typ PositionType, amount, price, leverage, margin, fee decimal.Decimal, ts time.Time) (*Trade, bool, error) {
	pos, err := NewPosition(symbol, amount, price, leverage, margin, typ, ts)
	if err != nil {
		return nil, false, err
	}
	action := ActionBuy
	if typ == Short {
		action = ActionSell
	}
	trade, err := NewTrade(ts, symbol, action, amount, price, leverage, fee, typ, decimal.Zero, margin)
	if err != nil {
		return nil, false, err
	}
	if err := t.core.addPositionLocked(pos); err != nil {
		return nil, false, err
	}
	t.core.recordTradeLocked(trade)
	return trade, true, nil
}

// growLocked averages an addition into a same-side position.
func (t *Trading) growLocked(p *Position, action TradeAction, amount, price, margin, fee decimal.Decimal, ts time.Time) (*Trade, bool, error) {
	if margin.GreaterThan(t.core.cash) {
		return nil, false, &InsufficientFundsError{
			Op:        "add to " + string(p.Type) + " " + string(p.Symbol),
			Required:  margin,
			Available: t.core.cash,
		}
	}
	trade, err := NewTrade(ts, p.Symbol, action, amount, price, p.Leverage, fee, p.Type, decimal.Zero, margin)
	if err != nil {
		return nil, false, err
	}
	mergeInto(p, amount, price, margin)
	t.core.cash = t.core.cash.Sub(margin)
	t.core.recordTradeLocked(trade)
	return trade, true, nil
}

// lastTradeLocked returns a copy of the most recently recorded trade. Close
// paths record through the risk settlement helper, so the caller fetches the
// resulting record here.
func (t *Trading) lastTradeLocked() *Trade {
	entries := t.core.trades.entries
	if len(entries) == 0 {
		return nil
	}
	last := *entries[len(entries)-1]
	return &last
}
