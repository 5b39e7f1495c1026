package cart

import (
	"github.com/angelmondragon/kirana-backend/pkg/db/models"
	"github.com/angelmondragon/kirana-backend/pkg/money"
)

// recomputeTotal sets the cart total from its lines. It is the only place
// total_price is derived.
func recomputeTotal(c *models.Cart) {
	var total int64
	for _, item := range c.Items {
		total += money.LineTotal(item.Price, item.Quantity)
	}
	c.TotalPrice = total
}

func indexOf(items []models.CartItem, sku string) int {
	for i := range items {
		if items[i].SKU == sku {
			return i
		}
	}
	return -1
}

func snapshotOf(p models.Product) models.CartItem {
	id := p.ID
	return models.CartItem{
		SKU:         p.SKU,
		ProductID:   &id,
		Name:        p.Name,
		Price:       p.Price,
		Category:    p.Category,
		Subcategory: p.Subcategory,
		ImageURL:    p.ImageURL,
		Quantity:    1,
	}
}
