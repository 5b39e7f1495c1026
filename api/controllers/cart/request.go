package cart

import (
	"strings"

	"github.com/google/uuid"
)

// addItemRequest names the product by id or by SKU. The id wins when both
// are present.
type addItemRequest struct {
	ProductID *uuid.UUID `json:"product_id,omitempty"`
	SKU       string     `json:"sku,omitempty" validate:"required_without=ProductID,max=64"`
}

func (r addItemRequest) sku() string {
	if r.ProductID != nil {
		return ""
	}
	return strings.TrimSpace(r.SKU)
}
