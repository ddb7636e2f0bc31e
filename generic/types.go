/*
Package generic provides the domain-agnostic primitives of the VIP engine.

PURPOSE:
  Dates, windows, money and errors shared by the vip and rewards packages.
  Nothing in here knows what a client or a combo is.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: a decimal amount; order values, goals and rewards
  - Percent helpers used for progress bars

DESIGN PRINCIPLES:
  1. Precision: money uses decimal.Decimal, never float64
  2. Dates are days: see time.go
  3. Errors are centralized: see errors.go

USAGE:
  spent := generic.NewMoney(80)
  goal := generic.MustParseMoney("100.00")
  pct := generic.ProgressPct(spent, goal) // 80

SEE ALSO:
  - period.go: week/month windows
  - errors.go: error taxonomy
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY
// =============================================================================

type Money = decimal.Decimal

var (
	hundred = decimal.NewFromInt(100)
)

func NewMoney(value float64) Money {
	return decimal.NewFromFloat(value)
}

func NewMoneyFromInt(value int64) Money {
	return decimal.NewFromInt(value)
}

// ParseMoney parses a decimal string such as "42.50".
func ParseMoney(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustParseMoney parses s and panics on a malformed amount. Intended for
// literals in presets and tests.
func MustParseMoney(s string) Money {
	return decimal.RequireFromString(s)
}

// =============================================================================
// PROGRESS
// =============================================================================

// ProgressPct returns value/goal as a percentage clamped to [0, 100] and
// rounded to two decimals. A zero goal counts as met as soon as value is
// positive.
func ProgressPct(value, goal Money) decimal.Decimal {
	if !value.IsPositive() {
		return decimal.Zero
	}
	if !goal.IsPositive() {
		return hundred
	}
	pct := value.Div(goal).Mul(hundred)
	if pct.GreaterThan(hundred) {
		return hundred
	}
	return pct.Round(2)
}

// CountProgressPct is ProgressPct for integer counters.
func CountProgressPct(count, goal int) decimal.Decimal {
	return ProgressPct(decimal.NewFromInt(int64(count)), decimal.NewFromInt(int64(goal)))
}
