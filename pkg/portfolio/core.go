package portfolio

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// PriceMap supplies the latest mark price per symbol for a simulation step.
type PriceMap map[Symbol]decimal.Decimal

// Core owns the mutable ledger state of one simulated account: cash, the open
// position map and the bounded trade and valuation histories. Every run owns
// its own Core with its own lock; there is no process-wide portfolio state.
//
// Mutating sequences run under mu. The exported mutators take the lock
// themselves; the *Locked variants compose under a caller-held lock, the same
// split the paper-exchange provider uses.
type Core struct {
	mu sync.Mutex

	mode           TradingMode
	initialCapital decimal.Decimal
	cash           decimal.Decimal
	maxPositions   int

	positions map[Symbol]*Position
	trades    *tradeLog
	history   *snapshotLog
}

// NewCore builds a ledger from validated configuration with cash equal to the
// initial capital.
func NewCore(cfg *Config) (*Core, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	capital := decimal.NewFromFloat(cfg.InitialCapital)
	return &Core{
		mode:           cfg.TradingMode(),
		initialCapital: capital,
		cash:           capital,
		maxPositions:   cfg.MaxPositions,
		positions:      make(map[Symbol]*Position),
		trades:         newTradeLog(cfg.MaxTradesHistory),
		history:        newSnapshotLog(cfg.MaxPortfolioHistory, cfg.HistoryRetain),
	}, nil
}

// Mode returns the trading mode the ledger was created with.
func (c *Core) Mode() TradingMode { return c.mode }

// InitialCapital returns the fixed starting balance.
func (c *Core) InitialCapital() decimal.Decimal { return c.initialCapital }

// Cash returns the current free balance.
func (c *Core) Cash() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cash
}

// PositionCount returns the number of open positions.
func (c *Core) PositionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.positions)
}

// Position returns a copy of the open position for a symbol, if any.
func (c *Core) Position(symbol Symbol) (Position, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return p.clone(), true
}

// Positions returns copies of all open positions keyed by symbol.
func (c *Core) Positions() map[Symbol]Position {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[Symbol]Position, len(c.positions))
	for sym, p := range c.positions {
		out[sym] = p.clone()
	}
	return out
}

// Trades returns copies of the retained trade history, oldest first.
func (c *Core) Trades() []Trade {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trades.snapshot()
}

// History returns copies of the retained valuation snapshots, oldest first.
func (c *Core) History() []Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.snapshot()
}

// AddPosition validates and inserts a new position, debiting its margin from
// cash. It fails without mutating when the position map is full, when an
// invariant is violated, or when the margin exceeds available cash.
func (c *Core) AddPosition(p *Position) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addPositionLocked(p)
}

func (c *Core) addPositionLocked(p *Position) error {
	if p == nil {
		return invalidf("position", "must not be nil")
	}
	if len(c.positions) >= c.maxPositions {
		return invalidf("positions", "limit of %d open positions reached", c.maxPositions)
	}
	if p.Size.Sign() <= 0 {
		return invalidf("size", "must be positive, got %s", p.Size)
	}
	if p.EntryPrice.Sign() <= 0 {
		return invalidf("entry_price", "must be positive, got %s", p.EntryPrice)
	}
	if p.Leverage.Sign() <= 0 {
		return invalidf("leverage", "must be positive, got %s", p.Leverage)
	}
	if p.MarginUsed.Sign() < 0 {
		return invalidf("margin_used", "must be non-negative, got %s", p.MarginUsed)
	}
	if p.MarginUsed.GreaterThan(c.cash) {
		return &InsufficientFundsError{
			Op:        "open " + string(p.Type) + " " + string(p.Symbol),
			Required:  p.MarginUsed,
			Available: c.cash,
		}
	}
	c.positions[p.Symbol] = p
	c.cash = c.cash.Sub(p.MarginUsed)
	return nil
}

// RemovePosition pops and returns the position for a symbol. Cash is not
// adjusted; callers credit released margin and realized PnL themselves.
func (c *Core) RemovePosition(symbol Symbol) (*Position, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removePositionLocked(symbol)
}

func (c *Core) removePositionLocked(symbol Symbol) (*Position, error) {
	p, ok := c.positions[symbol]
	if !ok {
		return nil, &PositionNotFoundError{Symbol: symbol}
	}
	delete(c.positions, symbol)
	return p, nil
}

// UsedMargin sums the margin committed across all open positions.
func (c *Core) UsedMargin() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usedMarginLocked()
}

func (c *Core) usedMarginLocked() decimal.Decimal {
	sum := decimal.Zero
	for _, p := range c.positions {
		sum = sum.Add(p.MarginUsed)
	}
	return sum
}

// RealizedPnL sums PnL over the trades still retained in the bounded history.
// Once the trade buffer overflows, evicted trades drop out of this sum, so for
// long runs it is an approximation of lifetime realized PnL, not a running
// total.
func (c *Core) RealizedPnL() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trades.realizedSum()
}

func (c *Core) recordTradeLocked(t *Trade) {
	c.trades.append(t)
}

func (c *Core) unrealizedLocked(prices PriceMap) decimal.Decimal {
	sum := decimal.Zero
	for sym, p := range c.positions {
		price, ok := prices[sym]
		if !ok {
			continue
		}
		sum = sum.Add(p.UnrealizedPnL(price))
	}
	return sum
}

// valueLocked applies the mode-dependent valuation: futures positions carry no
// asset value of their own (equity = cash + unrealized PnL), while spot and
// margin positions are valued as owned assets.
func (c *Core) valueLocked(prices PriceMap) decimal.Decimal {
	if c.mode == ModeFutures {
		return c.cash.Add(c.unrealizedLocked(prices))
	}
	value := c.cash
	for sym, p := range c.positions {
		price, ok := prices[sym]
		if !ok {
			continue
		}
		value = value.Add(p.PositionValue(price))
	}
	return value
}

// capitalMarginRatioLocked is the capital-relative usage ratio reported in
// snapshots: zero for spot, otherwise used margin over initial capital.
func (c *Core) capitalMarginRatioLocked() decimal.Decimal {
	if c.mode == ModeSpot {
		return decimal.Zero
	}
	if c.initialCapital.IsZero() {
		return decimal.Zero
	}
	return c.usedMarginLocked().Div(c.initialCapital)
}

// RecordSnapshot appends a valuation snapshot for the step, trimming the
// history buffer when it exceeds its capacity.
func (c *Core) RecordSnapshot(ts time.Time, prices PriceMap) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{
		Timestamp:      ts,
		PortfolioValue: c.valueLocked(prices),
		Cash:           c.cash,
		UnrealizedPnL:  c.unrealizedLocked(prices),
		RealizedPnL:    c.trades.realizedSum(),
		MarginUsed:     c.usedMarginLocked(),
		PositionCount:  len(c.positions),
		LeverageRatio:  c.capitalMarginRatioLocked(),
	}
	c.history.append(snap)
	return snap
}
