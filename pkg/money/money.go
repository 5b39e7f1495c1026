// Package money converts between rupee amounts and integer paise.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Paise is an amount in the smallest currency unit.
type Paise = int64

// ParseRupees parses a rupee amount such as "49.50" into paise. Amounts with
// more than two decimal places are rejected rather than rounded.
func ParseRupees(value string) (Paise, error) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return 0, fmt.Errorf("amount is required")
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	if amount.IsNegative() {
		return 0, fmt.Errorf("amount %q must not be negative", value)
	}
	paise := amount.Shift(2)
	if !paise.Equal(paise.Truncate(0)) {
		return 0, fmt.Errorf("amount %q has sub-paise precision", value)
	}
	return paise.IntPart(), nil
}

// FromRupees converts a whole-rupee amount.
func FromRupees(rupees int64) Paise {
	return rupees * 100
}

// Format renders paise as a rupee string with two decimals.
func Format(p Paise) string {
	return decimal.NewFromInt(p).Shift(-2).StringFixed(2)
}

// LineTotal multiplies a unit price by quantity.
func LineTotal(price Paise, quantity int) Paise {
	return price * int64(quantity)
}
