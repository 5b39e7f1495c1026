package checkout

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/kirana-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/kirana-backend/pkg/errors"
)

// Totals is the priced outcome of a cart, in paise.
type Totals struct {
	Subtotal       int64 `json:"subtotal"`
	DeliveryCharge int64 `json:"delivery_charge"`
	Total          int64 `json:"total"`
}

// ComputeTotals charges delivery only when the subtotal is strictly below
// the free delivery threshold.
func ComputeTotals(subtotal, deliveryCharge, threshold int64) Totals {
	charge := int64(0)
	if subtotal < threshold {
		charge = deliveryCharge
	}
	return Totals{
		Subtotal:       subtotal,
		DeliveryCharge: charge,
		Total:          subtotal + charge,
	}
}

// ItemViolationDetail describes a cart line that cannot be ordered.
type ItemViolationDetail struct {
	SKU    string `json:"sku"`
	Reason string `json:"reason"`
}

// ValidateItems rejects an empty cart and lines that could not have been
// written by the cart store (zero quantity, negative price, blank sku).
func ValidateItems(items []models.CartItem) error {
	if len(items) == 0 {
		return pkgerrors.New(pkgerrors.CodePrecondition, "cart is empty")
	}
	var violations []ItemViolationDetail
	for _, item := range items {
		switch {
		case strings.TrimSpace(item.SKU) == "":
			violations = append(violations, ItemViolationDetail{SKU: item.SKU, Reason: "missing sku"})
		case item.Quantity < 1:
			violations = append(violations, ItemViolationDetail{SKU: item.SKU, Reason: "quantity below one"})
		case item.Price < 0:
			violations = append(violations, ItemViolationDetail{SKU: item.SKU, Reason: "negative price"})
		}
	}
	if len(violations) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodePrecondition, fmt.Sprintf("cart has %d invalid item(s)", len(violations))).WithDetails(map[string]any{
		"violations": violations,
	})
}

// Subtotal sums price times quantity over items.
func Subtotal(items []models.CartItem) int64 {
	var total int64
	for _, item := range items {
		total += item.Price * int64(item.Quantity)
	}
	return total
}
