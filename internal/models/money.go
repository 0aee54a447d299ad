package models

import (
	"github.com/shopspring/decimal"
)

// All monetary values are stored and summed as int64 cents so that
// aggregation never accumulates floating-point drift. decimal.Decimal is
// used only at the boundaries: parsing request amounts, epsilon comparison,
// and display conversion.

// CentsFromDecimal converts a decimal amount to cents. Amounts with more
// than two fractional digits are rejected with ErrValidation.
func CentsFromDecimal(d decimal.Decimal) (int64, error) {
	shifted := d.Shift(2)
	if !shifted.IsInteger() {
		return 0, ValidationErrorf("amount %s has more than two decimal places", d.String())
	}
	return shifted.IntPart(), nil
}

// DecimalFromCents converts cents back to a two-decimal amount.
func DecimalFromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

// ParseAmount parses a decimal string (e.g. "1030.45" or "-42.50") into cents.
func ParseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ValidationErrorf("invalid amount %q", s)
	}
	return CentsFromDecimal(d)
}

// FormatCents renders cents as a fixed two-decimal string for API responses.
func FormatCents(c int64) string {
	return DecimalFromCents(c).StringFixed(2)
}
