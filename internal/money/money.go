// Package money holds the fixed-point helpers used for every monetary and
// weight computation. Rounding is always explicit: Round2 for amounts, Round3
// for weights, both half away from zero (half-up for the non-negative values
// the engine deals with).
package money

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	AmountPlaces = 2
	WeightPlaces = 3

	// DateLayout is the yyyy-MM-dd layout used in exports.
	DateLayout = "2006-01-02"
)

var hundred = decimal.NewFromInt(100)

// Round2 rounds an amount to 2 decimals.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(AmountPlaces)
}

// Round3 rounds a weight to 3 decimals.
func Round3(d decimal.Decimal) decimal.Decimal {
	return d.Round(WeightPlaces)
}

// Percent returns value * rate / 100 without rounding.
func Percent(value, rate decimal.Decimal) decimal.Decimal {
	return value.Mul(rate).Div(hundred)
}

// Clamp bounds d to [lo, hi].
func Clamp(d, lo, hi decimal.Decimal) decimal.Decimal {
	if d.LessThan(lo) {
		return lo
	}
	if d.GreaterThan(hi) {
		return hi
	}
	return d
}

// FormatAmount renders an optional amount with exactly 2 decimals, or "" when absent.
func FormatAmount(n decimal.NullDecimal) string {
	if !n.Valid {
		return ""
	}
	return n.Decimal.StringFixed(AmountPlaces)
}

// FormatWeight renders an optional weight or quantity with exactly 3 decimals, or "" when absent.
func FormatWeight(n decimal.NullDecimal) string {
	if !n.Valid {
		return ""
	}
	return n.Decimal.StringFixed(WeightPlaces)
}

// FormatDate re-renders a date as yyyy-MM-dd. Values that do not parse are
// returned unchanged; the exporter is not the place to reject them.
func FormatDate(s string) string {
	if s == "" {
		return ""
	}
	t, err := ParseDate(s)
	if err != nil {
		return s
	}
	return t.Format(DateLayout)
}

// ParseDate parses a strict calendar-valid yyyy-MM-dd date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}
