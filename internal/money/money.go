// Package money holds the fixed-point rules shared by every payroll amount.
package money

import (
	"errors"

	"github.com/shopspring/decimal"
)

const (
	// AmountScale is the number of fractional digits kept for currency amounts.
	AmountScale int32 = 2
	// RateScale is the number of fractional digits kept for quantities and rates.
	RateScale int32 = 4
)

// ErrAmountRequired is returned when neither an explicit amount nor a complete
// quantity/rate pair is supplied.
var ErrAmountRequired = errors.New("money: amount or quantity and rate required")

// Round rounds d to two decimals. Ties go away from zero (half-up).
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(AmountScale)
}

// RoundRate rounds a quantity or rate to four decimals.
func RoundRate(d decimal.Decimal) decimal.Decimal {
	return d.Round(RateScale)
}

// RoundNull applies RoundRate to a nullable value.
func RoundNull(d decimal.NullDecimal) decimal.NullDecimal {
	if !d.Valid {
		return d
	}
	return decimal.NewNullDecimal(RoundRate(d.Decimal))
}

// Effective resolves the amount of a pay fact once. An explicit amount wins;
// otherwise quantity*rate is multiplied exactly and then rounded.
func Effective(amount, quantity, rate decimal.NullDecimal) (decimal.Decimal, error) {
	if amount.Valid {
		return Round(amount.Decimal), nil
	}
	if quantity.Valid && rate.Valid {
		return Round(quantity.Decimal.Mul(rate.Decimal)), nil
	}
	return decimal.Zero, ErrAmountRequired
}

// WithinBound reports whether |d| <= limit. A non-positive limit disables the check.
func WithinBound(d, limit decimal.Decimal) bool {
	if !limit.IsPositive() {
		return true
	}
	return d.Abs().LessThanOrEqual(limit)
}

// Format renders d with exactly two decimals, e.g. "275.00".
func Format(d decimal.Decimal) string {
	return Round(d).StringFixed(AmountScale)
}
