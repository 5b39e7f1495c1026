package cart

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/kirana-backend/pkg/db/models"
	"github.com/angelmondragon/kirana-backend/pkg/enums"
)

// Cart is the service view of a customer's cart. Empty is set when no cart
// row exists; Items is then an empty slice.
type Cart struct {
	CustomerID   uuid.UUID
	Items        []models.CartItem
	TotalPrice   int64
	Status       enums.CartStatus
	ReminderSent bool
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Empty        bool
}

// ItemCount sums quantities across items.
func (c Cart) ItemCount() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

// Item returns the line for sku.
func (c Cart) Item(sku string) (models.CartItem, bool) {
	for _, item := range c.Items {
		if item.SKU == sku {
			return item, true
		}
	}
	return models.CartItem{}, false
}

func emptyCart(customerID uuid.UUID) *Cart {
	return &Cart{
		CustomerID: customerID,
		Items:      []models.CartItem{},
		Status:     enums.CartStatusPending,
		Empty:      true,
	}
}

func fromModel(m *models.Cart) *Cart {
	items := make([]models.CartItem, len(m.Items))
	copy(items, m.Items)
	return &Cart{
		CustomerID:   m.CustomerID,
		Items:        items,
		TotalPrice:   m.TotalPrice,
		Status:       m.Status,
		ReminderSent: m.ReminderSent,
		Version:      m.Version,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
		Empty:        len(items) == 0,
	}
}

// CartItemDTO is a cart line resolved to one locale.
type CartItemDTO struct {
	SKU         string     `json:"sku"`
	ProductID   *uuid.UUID `json:"product_id,omitempty"`
	Name        string     `json:"name"`
	Price       int64      `json:"price"`
	Category    string     `json:"category"`
	Subcategory string     `json:"subcategory"`
	ImageURL    string     `json:"image_url,omitempty"`
	Quantity    int        `json:"quantity"`
	LineTotal   int64      `json:"line_total"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CartDTO is the API shape of a cart.
type CartDTO struct {
	CustomerID uuid.UUID        `json:"customer_id"`
	Items      []CartItemDTO    `json:"items"`
	TotalPrice int64            `json:"total_price"`
	ItemCount  int              `json:"item_count"`
	Status     enums.CartStatus `json:"status"`
	Version    int64            `json:"version"`
	UpdatedAt  *time.Time       `json:"updated_at,omitempty"`
	Empty      bool             `json:"empty"`
}

// Localize resolves every localized field for locale.
func (c Cart) Localize(locale enums.Locale) CartDTO {
	items := make([]CartItemDTO, 0, len(c.Items))
	for _, item := range c.Items {
		items = append(items, CartItemDTO{
			SKU:         item.SKU,
			ProductID:   item.ProductID,
			Name:        item.Name.Resolve(locale),
			Price:       item.Price,
			Category:    item.Category.Resolve(locale),
			Subcategory: item.Subcategory.Resolve(locale),
			ImageURL:    item.ImageURL,
			Quantity:    item.Quantity,
			LineTotal:   item.Price * int64(item.Quantity),
			UpdatedAt:   item.UpdatedAt,
		})
	}
	dto := CartDTO{
		CustomerID: c.CustomerID,
		Items:      items,
		TotalPrice: c.TotalPrice,
		ItemCount:  c.ItemCount(),
		Status:     c.Status,
		Version:    c.Version,
		Empty:      c.Empty,
	}
	if !c.UpdatedAt.IsZero() {
		updated := c.UpdatedAt
		dto.UpdatedAt = &updated
	}
	return dto
}
