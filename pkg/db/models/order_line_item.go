package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/kirana-backend/pkg/types"
)

// OrderLineItem is the snapshot of one cart item on an order.
type OrderLineItem struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID   *uuid.UUID          `gorm:"column:product_id;type:uuid"`
	SKU         string              `gorm:"column:sku;not null"`
	Name        types.LocalizedText `gorm:"column:name;type:jsonb;not null"`
	Category    types.LocalizedText `gorm:"column:category;type:jsonb;not null"`
	Subcategory types.LocalizedText `gorm:"column:subcategory;type:jsonb;not null"`
	ImageURL    string              `gorm:"column:image_url;not null;default:''"`
	UnitPrice   int64               `gorm:"column:unit_price;not null"`
	Quantity    int                 `gorm:"column:quantity;not null"`
	LineTotal   int64               `gorm:"column:line_total;not null"`
	Position    int                 `gorm:"column:position;not null;default:0"`
	AddedAt     time.Time           `gorm:"column:added_at;not null"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (l *OrderLineItem) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}
