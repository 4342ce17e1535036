// Package money holds the cent-precision arithmetic used by the funding
// ledger. Every helper rounds its result half-up to two decimal places so
// that sums never drift.
package money

import "github.com/shopspring/decimal"

// Places is the number of decimal places kept for monetary values.
const Places = 2

func init() {
	// API responses report amounts as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// Zero is the zero amount.
var Zero = decimal.Zero

// Round rounds v half-up on the cent.
func Round(v decimal.Decimal) decimal.Decimal {
	return v.Round(Places)
}

// FromFloat converts a float amount, rounding to the cent.
func FromFloat(f float64) decimal.Decimal {
	return Round(decimal.NewFromFloat(f))
}

// MustParse parses a decimal string and panics on malformed input. It is
// meant for constants and tests.
func MustParse(s string) decimal.Decimal {
	return Round(decimal.RequireFromString(s))
}

// Add returns a+b rounded.
func Add(a, b decimal.Decimal) decimal.Decimal {
	return Round(a.Add(b))
}

// Sub returns a-b rounded.
func Sub(a, b decimal.Decimal) decimal.Decimal {
	return Round(a.Sub(b))
}

// Min returns the smaller of a and b, rounded.
func Min(a, b decimal.Decimal) decimal.Decimal {
	return Round(decimal.Min(a, b))
}

// NonNegative clamps v at zero.
func NonNegative(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return Zero
	}
	return Round(v)
}

// Sum adds all values, rounding after each step.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := Zero
	for _, v := range values {
		total = Add(total, v)
	}
	return total
}
