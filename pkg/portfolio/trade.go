package portfolio

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is the immutable record of one executed order. PnL is the realized
// profit attributed to this fill (zero for pure opens); MarginUsed is the
// margin newly committed by it (zero for pure closes).
type Trade struct {
	Timestamp  time.Time       `json:"timestamp"`
	Symbol     Symbol          `json:"symbol"`
	Action     TradeAction     `json:"action"`
	Quantity   decimal.Decimal `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Leverage   decimal.Decimal `json:"leverage"`
	Fee        decimal.Decimal `json:"fee"`
	Type       PositionType    `json:"position_type"`
	PnL        decimal.Decimal `json:"pnl"`
	MarginUsed decimal.Decimal `json:"margin_used"`
}

// NewTrade validates the numeric invariants at construction. A Trade is never
// mutated after it is appended to history.
func NewTrade(ts time.Time, symbol Symbol, action TradeAction, quantity, price, leverage, fee decimal.Decimal, typ PositionType, pnl, marginUsed decimal.Decimal) (*Trade, error) {
	if quantity.Sign() <= 0 {
		return nil, invalidf("quantity", "must be positive, got %s", quantity)
	}
	if price.Sign() <= 0 {
		return nil, invalidf("price", "must be positive, got %s", price)
	}
	if leverage.Sign() <= 0 {
		return nil, invalidf("leverage", "must be positive, got %s", leverage)
	}
	if fee.Sign() < 0 {
		return nil, invalidf("fee", "must be non-negative, got %s", fee)
	}
	if marginUsed.Sign() < 0 {
		return nil, invalidf("margin_used", "must be non-negative, got %s", marginUsed)
	}
	return &Trade{
		Timestamp:  ts,
		Symbol:     symbol,
		Action:     action,
		Quantity:   quantity,
		Price:      price,
		Leverage:   leverage,
		Fee:        fee,
		Type:       typ,
		PnL:        pnl,
		MarginUsed: marginUsed,
	}, nil
}
