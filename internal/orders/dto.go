package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/kirana-backend/pkg/db/models"
	"github.com/angelmondragon/kirana-backend/pkg/enums"
	"github.com/angelmondragon/kirana-backend/pkg/types"
)

// LineItemDTO is an order line resolved to one locale.
type LineItemDTO struct {
	SKU         string `json:"sku"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
	ImageURL    string `json:"image_url,omitempty"`
	UnitPrice   int64  `json:"unit_price"`
	Quantity    int    `json:"quantity"`
	LineTotal   int64  `json:"line_total"`
}

// OrderDTO is the API shape of an order.
type OrderDTO struct {
	ID             uuid.UUID             `json:"id"`
	CustomerName   string                `json:"customer_name"`
	Status         enums.OrderStatus     `json:"status"`
	StatusLabel    string                `json:"status_label"`
	PlacedAt       time.Time             `json:"placed_at"`
	Address        types.AddressSnapshot `json:"address"`
	ImageURL       string                `json:"image_url,omitempty"`
	Subtotal       int64                 `json:"subtotal"`
	DeliveryCharge int64                 `json:"delivery_charge"`
	TotalPrice     int64                 `json:"total_price"`
	ItemCount      int                   `json:"item_count"`
	Items          []LineItemDTO         `json:"items"`
}

// OrderPage is one page of a customer's order history.
type OrderPage struct {
	Items      []OrderDTO `json:"items"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// ToDTO resolves the stored order for locale. The status label prefers the
// label frozen on the order and falls back to the current enum labels.
func ToDTO(o models.Order, locale enums.Locale) OrderDTO {
	label := o.StatusLabels.Resolve(locale)
	if label == "" {
		label = o.Status.Label(locale)
	}
	items := make([]LineItemDTO, 0, len(o.LineItems))
	count := 0
	for _, li := range o.LineItems {
		count += li.Quantity
		items = append(items, LineItemDTO{
			SKU:         li.SKU,
			Name:        li.Name.Resolve(locale),
			Category:    li.Category.Resolve(locale),
			Subcategory: li.Subcategory.Resolve(locale),
			ImageURL:    li.ImageURL,
			UnitPrice:   li.UnitPrice,
			Quantity:    li.Quantity,
			LineTotal:   li.LineTotal,
		})
	}
	return OrderDTO{
		ID:             o.ID,
		CustomerName:   o.CustomerName,
		Status:         o.Status,
		StatusLabel:    label,
		PlacedAt:       o.PlacedAt,
		Address:        o.Address,
		ImageURL:       o.ImageURL,
		Subtotal:       o.Subtotal,
		DeliveryCharge: o.DeliveryCharge,
		TotalPrice:     o.TotalPrice,
		ItemCount:      count,
		Items:          items,
	}
}
