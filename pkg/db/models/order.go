package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/kirana-backend/pkg/enums"
	"github.com/angelmondragon/kirana-backend/pkg/types"
)

// Order is immutable once created. Amounts are in paise.
type Order struct {
	ID             uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID     uuid.UUID             `gorm:"column:customer_id;type:uuid;not null;index"`
	CustomerName   string                `gorm:"column:customer_name;not null"`
	Status         enums.OrderStatus     `gorm:"column:status;not null;default:'Processing'"`
	StatusLabels   types.LocalizedText   `gorm:"column:status_labels;type:jsonb;not null"`
	Address        types.AddressSnapshot `gorm:"column:address;type:jsonb;not null"`
	ImageURL       string                `gorm:"column:image_url;not null;default:''"`
	Subtotal       int64                 `gorm:"column:subtotal;not null"`
	DeliveryCharge int64                 `gorm:"column:delivery_charge;not null;default:0"`
	TotalPrice     int64                 `gorm:"column:total_price;not null"`
	IdempotencyKey string                `gorm:"column:idempotency_key;not null;uniqueIndex"`
	CartVersion    int64                 `gorm:"column:cart_version;not null"`
	LineItems      []OrderLineItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	PlacedAt       time.Time             `gorm:"column:placed_at;not null"`
	CreatedAt      time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}
