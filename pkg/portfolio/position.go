package portfolio

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is one open exposure to a symbol. Size is an absolute quantity;
// direction lives in Type. A Position is owned exclusively by the Core's
// position map and is never handed out as a mutable reference.
type Position struct {
	Symbol     Symbol          `json:"symbol"`
	Size       decimal.Decimal `json:"size"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	Leverage   decimal.Decimal `json:"leverage"`
	OpenedAt   time.Time       `json:"opened_at"`
	Type       PositionType    `json:"position_type"`
	MarginUsed decimal.Decimal `json:"margin_used"`
}

// NewPosition validates the numeric invariants and returns the record.
// Violations are rejected, never clamped.
func NewPosition(symbol Symbol, size, entryPrice, leverage, marginUsed decimal.Decimal, typ PositionType, openedAt time.Time) (*Position, error) {
	if size.Sign() <= 0 {
		return nil, invalidf("size", "must be positive, got %s", size)
	}
	if entryPrice.Sign() <= 0 {
		return nil, invalidf("entry_price", "must be positive, got %s", entryPrice)
	}
	if leverage.Sign() <= 0 {
		return nil, invalidf("leverage", "must be positive, got %s", leverage)
	}
	if marginUsed.Sign() < 0 {
		return nil, invalidf("margin_used", "must be non-negative, got %s", marginUsed)
	}
	if typ != Long && typ != Short {
		return nil, invalidf("position_type", "must be long or short, got %q", typ)
	}
	return &Position{
		Symbol:     symbol,
		Size:       size,
		EntryPrice: entryPrice,
		Leverage:   leverage,
		OpenedAt:   openedAt,
		Type:       typ,
		MarginUsed: marginUsed,
	}, nil
}

// UnrealizedPnL marks the position to the given price.
func (p *Position) UnrealizedPnL(price decimal.Decimal) decimal.Decimal {
	if p.Size.IsZero() {
		return decimal.Zero
	}
	if p.Type == Long {
		return price.Sub(p.EntryPrice).Mul(p.Size)
	}
	return p.EntryPrice.Sub(price).Mul(p.Size)
}

// PositionValue is the notional market value of the exposure at a price.
func (p *Position) PositionValue(price decimal.Decimal) decimal.Decimal {
	return p.Size.Mul(price)
}

// IsLiquidationRisk reports whether losses at the given price exhaust the
// margin buffer left after the maintenance requirement. The maintenance
// requirement is computed against the entry-price notional, so the threshold
// is a fixed closed form rather than a moving target.
func (p *Position) IsLiquidationRisk(price, maintenanceMarginRate decimal.Decimal) bool {
	unrealized := p.UnrealizedPnL(price)
	entryNotional := p.Size.Mul(p.EntryPrice)
	maintenanceMargin := entryNotional.Mul(maintenanceMarginRate)
	availableMargin := p.MarginUsed.Sub(maintenanceMargin)
	return unrealized.LessThanOrEqual(availableMargin.Neg())
}

// clone returns a copy for handing out to callers.
func (p *Position) clone() Position { return *p }
