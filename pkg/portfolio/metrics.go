package portfolio

import (
	"github.com/shopspring/decimal"
)

// Metrics derives valuations and margin ratios from a Core. It never mutates
// ledger state; every call reads a consistent view under the Core lock.
type Metrics struct {
	core *Core
}

// NewMetrics wraps a ledger for read-only valuation.
func NewMetrics(core *Core) *Metrics {
	return &Metrics{core: core}
}

// PortfolioValue applies the mode-dependent valuation model. Positions whose
// symbol is missing from the price map contribute nothing.
func (m *Metrics) PortfolioValue(prices PriceMap) decimal.Decimal {
	m.core.mu.Lock()
	defer m.core.mu.Unlock()
	return m.core.valueLocked(prices)
}

// MarginRatio returns equity (cash plus unrealized PnL, regardless of mode)
// over used margin. With no margin in use there is no risk to measure; the
// second return is true and the ratio is meaningless.
func (m *Metrics) MarginRatio(prices PriceMap) (ratio decimal.Decimal, infinite bool) {
	m.core.mu.Lock()
	defer m.core.mu.Unlock()
	used := m.core.usedMarginLocked()
	if used.IsZero() {
		return decimal.Zero, true
	}
	equity := m.core.cash.Add(m.core.unrealizedLocked(prices))
	return equity.Div(used), false
}

// IsMarginCall reports whether the margin ratio has fallen to or below the
// threshold. An infinite ratio (no open positions) is never a margin call.
func (m *Metrics) IsMarginCall(prices PriceMap, threshold decimal.Decimal) bool {
	ratio, infinite := m.MarginRatio(prices)
	if infinite {
		return false
	}
	return ratio.LessThanOrEqual(threshold)
}

// CapitalMarginRatio is the no-price reporting variant: used margin relative
// to initial capital, zero for spot. It measures allocation, not risk, and is
// deliberately distinct from MarginRatio.
func (m *Metrics) CapitalMarginRatio() decimal.Decimal {
	m.core.mu.Lock()
	defer m.core.mu.Unlock()
	return m.core.capitalMarginRatioLocked()
}

// UnrealizedPnL marks all open positions to the supplied prices.
func (m *Metrics) UnrealizedPnL(prices PriceMap) decimal.Decimal {
	m.core.mu.Lock()
	defer m.core.mu.Unlock()
	return m.core.unrealizedLocked(prices)
}
