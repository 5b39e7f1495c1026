package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/kirana-backend/pkg/types"
)

// CartItem snapshots a product at add time; it lives inside Cart.Items.
type CartItem struct {
	SKU         string              `json:"sku"`
	ProductID   *uuid.UUID          `json:"product_id,omitempty"`
	Name        types.LocalizedText `json:"name"`
	Price       int64               `json:"price"`
	Category    types.LocalizedText `json:"category,omitempty"`
	Subcategory types.LocalizedText `json:"subcategory,omitempty"`
	ImageURL    string              `json:"image_url,omitempty"`
	Quantity    int                 `json:"quantity"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}
