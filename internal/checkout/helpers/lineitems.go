package helpers

import (
	"time"

	"github.com/angelmondragon/kirana-backend/pkg/db/models"
	"github.com/angelmondragon/kirana-backend/pkg/types"
)

// BuildLineItems snapshots cart lines onto an order, keeping cart order.
// Lines without an add time are stamped with placedAt.
func BuildLineItems(items []models.CartItem, placedAt time.Time) []models.OrderLineItem {
	lines := make([]models.OrderLineItem, 0, len(items))
	for i, item := range items {
		lines = append(lines, models.OrderLineItem{
			ProductID:   item.ProductID,
			SKU:         item.SKU,
			Name:        orEmpty(item.Name),
			Category:    orEmpty(item.Category),
			Subcategory: orEmpty(item.Subcategory),
			ImageURL:    item.ImageURL,
			UnitPrice:   item.Price,
			Quantity:    item.Quantity,
			LineTotal:   item.Price * int64(item.Quantity),
			Position:    i,
			AddedAt:     addedAt(item, placedAt),
		})
	}
	return lines
}

// ItemCount is the number of units across lines.
func ItemCount(items []models.CartItem) int {
	n := 0
	for _, item := range items {
		n += item.Quantity
	}
	return n
}

// CoverImage picks the first line image for the order card.
func CoverImage(items []models.CartItem) string {
	for _, item := range items {
		if item.ImageURL != "" {
			return item.ImageURL
		}
	}
	return ""
}

func orEmpty(text types.LocalizedText) types.LocalizedText {
	if text == nil {
		return types.LocalizedText{}
	}
	return text
}

func addedAt(item models.CartItem, placedAt time.Time) time.Time {
	if item.CreatedAt.IsZero() {
		return placedAt
	}
	return item.CreatedAt
}
