package portfolio

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ValidationError reports malformed or out-of-range input. It is returned
// before any ledger state is touched, so a failed operation never leaves a
// partial write behind.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("portfolio: invalid %s: %s", e.Field, e.Reason)
}

func invalidf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// InsufficientFundsError carries the exact shortfall so callers can report it.
type InsufficientFundsError struct {
	Op        string
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("portfolio: insufficient funds for %s: required %s, available %s",
		e.Op, e.Required.String(), e.Available.String())
}

// PositionNotFoundError is returned when an operation targets a symbol with no
// open position.
type PositionNotFoundError struct {
	Symbol Symbol
}

func (e *PositionNotFoundError) Error() string {
	return fmt.Sprintf("portfolio: no open position for %s", e.Symbol)
}

// InvalidLeverageError is returned when the requested leverage falls outside
// the range permitted by the trading mode.
type InvalidLeverageError struct {
	Mode      TradingMode
	Requested decimal.Decimal
	Min       decimal.Decimal
	Max       decimal.Decimal
}

func (e *InvalidLeverageError) Error() string {
	return fmt.Sprintf("portfolio: leverage %s outside [%s, %s] for %s mode",
		e.Requested.String(), e.Min.String(), e.Max.String(), e.Mode)
}

// LiquidationError signals that a position was forcibly closed. It is
// informational: the close has already happened when it is surfaced.
type LiquidationError struct {
	Symbol Symbol
	Loss   decimal.Decimal
	Reason string
}

func (e *LiquidationError) Error() string {
	return fmt.Sprintf("portfolio: %s liquidated with loss %s: %s",
		e.Symbol, e.Loss.String(), e.Reason)
}
