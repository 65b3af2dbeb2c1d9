package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ToCents converts a decimal amount string ("10.00", "0.835") to integer cents.
// Halves round away from zero. An empty string is zero.
func ToCents(amount string) (int64, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	return d.Mul(hundred).Round(0).IntPart(), nil
}

// FormatCents renders cents as a two-decimal string
func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
