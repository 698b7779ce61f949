package portfolio

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// TradingMode selects the valuation and margin rules applied to a ledger.
type TradingMode string

const (
	ModeSpot    TradingMode = "spot"
	ModeMargin  TradingMode = "margin"
	ModeFutures TradingMode = "futures"
)

// leverageBounds holds the inclusive leverage range permitted for a mode.
type leverageBounds struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// modeTable keys mode behaviour off the enum value instead of dispatching
// through an interface; the set of modes is closed.
var modeTable = map[TradingMode]struct {
	bounds      leverageBounds
	allowsShort bool
}{
	ModeSpot:    {leverageBounds{decimal.NewFromInt(1), decimal.NewFromInt(1)}, false},
	ModeMargin:  {leverageBounds{decimal.NewFromInt(1), decimal.NewFromInt(10)}, true},
	ModeFutures: {leverageBounds{decimal.NewFromInt(1), decimal.NewFromInt(125)}, true},
}

// ParseTradingMode normalises a mode string from configuration.
func ParseTradingMode(s string) (TradingMode, error) {
	m := TradingMode(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := modeTable[m]; !ok {
		return "", fmt.Errorf("portfolio: unknown trading mode %q", s)
	}
	return m, nil
}

func (m TradingMode) String() string { return string(m) }

// MinLeverage returns the lowest leverage allowed in this mode.
func (m TradingMode) MinLeverage() decimal.Decimal { return modeTable[m].bounds.Min }

// MaxLeverage returns the highest leverage allowed in this mode.
func (m TradingMode) MaxLeverage() decimal.Decimal { return modeTable[m].bounds.Max }

// AllowsShort reports whether short exposure may be opened in this mode.
func (m TradingMode) AllowsShort() bool { return modeTable[m].allowsShort }

// PositionType is the direction of an open exposure.
type PositionType string

const (
	Long  PositionType = "long"
	Short PositionType = "short"
)

// Opposite returns the other direction.
func (t PositionType) Opposite() PositionType {
	if t == Long {
		return Short
	}
	return Long
}

func (t PositionType) String() string { return string(t) }

// TradeAction describes what an executed order did.
type TradeAction string

const (
	ActionBuy         TradeAction = "buy"
	ActionSell        TradeAction = "sell"
	ActionLiquidation TradeAction = "liquidation"
)

func (a TradeAction) String() string { return string(a) }

// Symbol identifies a supported trading pair.
type Symbol string

func (s Symbol) String() string { return string(s) }

// CanonicalSymbol trims and upper-cases a raw pair identifier.
func CanonicalSymbol(raw string) Symbol {
	return Symbol(strings.ToUpper(strings.TrimSpace(raw)))
}
