/*
Package generic provides the primitives shared by the absence engine.

PURPOSE:
  This package contains domain-agnostic types used by every other package:
  quantities with a unit, calendar days, accounting periods, the holiday
  calendar and the error taxonomy. Nothing here knows about absence codes
  or groups.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A quantity with a unit (e.g., 1.5 units, 432 minutes)
  - Unit: units (whole/half working days) or minutes

DESIGN PRINCIPLES:
  1. Immutability: every arithmetic operation returns a new Amount
  2. Precision: uses decimal.Decimal to avoid floating-point drift when
     half days and percentage-scaled limits are summed over a year

USAGE:
  used := generic.NewAmountFromInt(3, generic.UnitUnits)
  half := generic.NewAmount(0.5, generic.UnitUnits)
  total := used.Add(half) // 3.5 units

SEE ALSO:
  - time.go: TimePoint (calendar day)
  - period.go: Period and calendar splitting
  - errors.go: sentinel and structured errors
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitUnits   Unit = "units"
	UnitMinutes Unit = "minutes"
)

func NewAmount(value float64, unit Unit) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Unit: unit}
}

func NewAmountFromInt(value int, unit Unit) Amount {
	return Amount{Value: decimal.NewFromInt(int64(value)), Unit: unit}
}

func NewAmountFromDecimal(value decimal.Decimal, unit Unit) Amount {
	return Amount{Value: value, Unit: unit}
}

// ZeroAmount returns an empty amount of the given unit.
func ZeroAmount(unit Unit) Amount {
	return Amount{Value: decimal.Zero, Unit: unit}
}

func (a Amount) Zero() Amount                 { return Amount{Value: decimal.Zero, Unit: a.Unit} }
func (a Amount) Add(b Amount) Amount          { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount          { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) Mul(s decimal.Decimal) Amount { return Amount{Value: a.Value.Mul(s), Unit: a.Unit} }
func (a Amount) Neg() Amount                  { return Amount{Value: a.Value.Neg(), Unit: a.Unit} }
func (a Amount) IsNegative() bool             { return a.Value.IsNegative() }
func (a Amount) IsZero() bool                 { return a.Value.IsZero() }
func (a Amount) IsPositive() bool             { return a.Value.IsPositive() }
func (a Amount) GreaterThan(b Amount) bool    { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool       { return a.Value.LessThan(b.Value) }
func (a Amount) Equal(b Amount) bool          { return a.Value.Equal(b.Value) }

func (a Amount) Min(b Amount) Amount {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Floor returns the amount truncated to a multiple of step (e.g. 0.5 units).
func (a Amount) Floor(step decimal.Decimal) Amount {
	if step.IsZero() {
		return a
	}
	return Amount{Value: a.Value.Div(step).Floor().Mul(step), Unit: a.Unit}
}

// RoundTo rounds to the nearest multiple of step, halves rounding up.
func (a Amount) RoundTo(step decimal.Decimal) Amount {
	if step.IsZero() {
		return a
	}
	return Amount{Value: a.Value.Div(step).Round(0).Mul(step), Unit: a.Unit}
}

// Minutes returns the value as whole minutes. Only meaningful for UnitMinutes.
func (a Amount) Minutes() int {
	return int(a.Value.Round(0).IntPart())
}

func (a Amount) String() string {
	return a.Value.String() + " " + string(a.Unit)
}
