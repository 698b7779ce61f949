package portfolio

import (
	"github.com/shopspring/decimal"
)

// The helpers in this file are pure: they validate inputs or compute
// fee/merge/split arithmetic over a single Position and hold no shared state.
// All mutation happens in the callers under the Core lock.

// orderLimits bundles the per-order validation tunables.
type orderLimits struct {
	mode     TradingMode
	symbols  map[Symbol]struct{}
	minSize  decimal.Decimal
	maxSize  decimal.Decimal
	feeRate  decimal.Decimal
	mmRate   decimal.Decimal
	mcThresh decimal.Decimal
}

func newOrderLimits(cfg *Config) orderLimits {
	return orderLimits{
		mode:     cfg.TradingMode(),
		symbols:  cfg.SymbolSet(),
		minSize:  decimal.NewFromFloat(cfg.MinTradeSize),
		maxSize:  decimal.NewFromFloat(cfg.MaxTradeSize),
		feeRate:  decimal.NewFromFloat(cfg.TakerFeeRate),
		mmRate:   decimal.NewFromFloat(cfg.MaintenanceMarginRate),
		mcThresh: decimal.NewFromFloat(cfg.MarginCallThreshold),
	}
}

// validateOrder rejects malformed order input before any state is touched.
func (l orderLimits) validateOrder(symbol Symbol, amount, price, leverage decimal.Decimal) error {
	if _, ok := l.symbols[symbol]; !ok {
		return invalidf("symbol", "%q is not a supported trading pair", symbol)
	}
	if amount.Sign() <= 0 {
		return invalidf("amount", "must be positive, got %s", amount)
	}
	if amount.LessThan(l.minSize) || amount.GreaterThan(l.maxSize) {
		return invalidf("amount", "%s outside trade size bounds [%s, %s]", amount, l.minSize, l.maxSize)
	}
	if price.Sign() <= 0 {
		return invalidf("price", "must be positive, got %s", price)
	}
	if leverage.Sign() <= 0 {
		return invalidf("leverage", "must be positive, got %s", leverage)
	}
	if leverage.LessThan(l.mode.MinLeverage()) || leverage.GreaterThan(l.mode.MaxLeverage()) {
		return &InvalidLeverageError{
			Mode:      l.mode,
			Requested: leverage,
			Min:       l.mode.MinLeverage(),
			Max:       l.mode.MaxLeverage(),
		}
	}
	return nil
}

// fee applies the flat taker rate to a notional value.
func (l orderLimits) fee(notional decimal.Decimal) decimal.Decimal {
	return notional.Mul(l.feeRate)
}

// mergeInto folds an addition at the given price into an existing same-side
// position, recomputing the size-weighted average entry. The committed margin
// grows by the margin of the addition; the caller debits cash by the same
// amount.
func mergeInto(p *Position, amount, price, margin decimal.Decimal) {
	newSize := p.Size.Add(amount)
	weighted := p.Size.Mul(p.EntryPrice).Add(amount.Mul(price))
	p.EntryPrice = weighted.Div(newSize)
	p.Size = newSize
	p.MarginUsed = p.MarginUsed.Add(margin)
}

// closeOutcome is the settlement math for closing all or part of a position.
type closeOutcome struct {
	Quantity       decimal.Decimal // quantity actually closed
	Realized       decimal.Decimal // PnL locked in, net of fee
	ReleasedMargin decimal.Decimal // margin returned to cash
	Fee            decimal.Decimal
	Full           bool
}

// settleClose computes the pro-rata settlement for closing closeQty units at
// price. Requests at or beyond the open size settle the whole position; the
// excess is not flipped into an opposite exposure. Nothing is mutated here.
func (l orderLimits) settleClose(p *Position, closeQty, price decimal.Decimal) closeOutcome {
	if closeQty.GreaterThanOrEqual(p.Size) {
		closeQty = p.Size
	}
	fee := l.fee(closeQty.Mul(price))
	full := closeQty.Equal(p.Size)
	if full {
		return closeOutcome{
			Quantity:       closeQty,
			Realized:       p.UnrealizedPnL(price).Sub(fee),
			ReleasedMargin: p.MarginUsed,
			Fee:            fee,
			Full:           true,
		}
	}
	fraction := closeQty.Div(p.Size)
	return closeOutcome{
		Quantity:       closeQty,
		Realized:       p.UnrealizedPnL(price).Mul(fraction).Sub(fee),
		ReleasedMargin: p.MarginUsed.Mul(fraction),
		Fee:            fee,
		Full:           false,
	}
}

// shrink reduces size and committed margin after a partial close.
func shrink(p *Position, out closeOutcome) {
	p.Size = p.Size.Sub(out.Quantity)
	p.MarginUsed = p.MarginUsed.Sub(out.ReleasedMargin)
}
