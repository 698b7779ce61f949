package portfolio

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is one valuation record appended after each simulation step.
type Snapshot struct {
	Timestamp      time.Time       `json:"timestamp"`
	PortfolioValue decimal.Decimal `json:"portfolio_value"`
	Cash           decimal.Decimal `json:"cash"`
	UnrealizedPnL  decimal.Decimal `json:"unrealized_pnl"`
	RealizedPnL    decimal.Decimal `json:"realized_pnl"`
	MarginUsed     decimal.Decimal `json:"margin_used"`
	PositionCount  int             `json:"position_count"`
	LeverageRatio  decimal.Decimal `json:"leverage_ratio"`
}

// tradeLog is a bounded append-only trade history. When capacity is exceeded
// the oldest entry is evicted, so sums over the log cover only the retained
// window.
type tradeLog struct {
	cap     int
	entries []*Trade
}

func newTradeLog(capacity int) *tradeLog {
	return &tradeLog{cap: capacity}
}

func (l *tradeLog) append(t *Trade) {
	l.entries = append(l.entries, t)
	if len(l.entries) > l.cap {
		excess := len(l.entries) - l.cap
		l.entries = append(l.entries[:0:0], l.entries[excess:]...)
	}
}

func (l *tradeLog) len() int { return len(l.entries) }

// realizedSum totals PnL over the retained entries only.
func (l *tradeLog) realizedSum() decimal.Decimal {
	sum := decimal.Zero
	for _, t := range l.entries {
		sum = sum.Add(t.PnL)
	}
	return sum
}

func (l *tradeLog) snapshot() []Trade {
	out := make([]Trade, len(l.entries))
	for i, t := range l.entries {
		out[i] = *t
	}
	return out
}

// snapshotLog is the bounded valuation history. Exceeding max does not evict
// one entry at a time: the buffer is trimmed down to the retain count plus the
// new entry, dropping the oldest excess while preserving order.
type snapshotLog struct {
	max     int
	retain  int
	entries []Snapshot
}

func newSnapshotLog(max, retain int) *snapshotLog {
	return &snapshotLog{max: max, retain: retain}
}

func (l *snapshotLog) append(s Snapshot) {
	l.entries = append(l.entries, s)
	if len(l.entries) > l.max {
		keep := l.retain + 1
		if keep > len(l.entries) {
			keep = len(l.entries)
		}
		l.entries = append(l.entries[:0:0], l.entries[len(l.entries)-keep:]...)
	}
}

func (l *snapshotLog) len() int { return len(l.entries) }

func (l *snapshotLog) snapshot() []Snapshot {
	out := make([]Snapshot, len(l.entries))
	copy(out, l.entries)
	return out
}
