package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Stored amounts are always integer minor currency units (cents).
// Decimal strings only appear at the API boundary; conversion goes
// through shopspring/decimal so repeated round trips never drift.

// ParseAmountMinor converts a major-unit decimal string ("25.00") into
// minor units (2500). It rejects non-positive amounts and amounts with
// sub-cent precision.
func ParseAmountMinor(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, &ErrValidation{Field: "amount", Message: fmt.Sprintf("invalid amount %q", s)}
	}
	minor := d.Shift(2)
	if !minor.IsInteger() {
		return 0, &ErrValidation{Field: "amount", Message: "amount has sub-cent precision"}
	}
	if !minor.IsPositive() {
		return 0, &ErrValidation{Field: "amount", Message: "must be positive"}
	}
	if !minor.BigInt().IsInt64() {
		return 0, &ErrValidation{Field: "amount", Message: "amount out of range"}
	}
	return minor.IntPart(), nil
}

// FormatMinor renders minor units as a major-unit decimal string:
// 2500 -> "25.00".
func FormatMinor(minor int64) string {
	return decimal.NewFromInt(minor).Shift(-2).StringFixed(2)
}
