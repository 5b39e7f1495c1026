package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/kirana-backend/pkg/enums"
)

// Cart is the single in-progress cart of a customer. The customer id is the
// primary key and Items is written as a whole on every mutation.
type Cart struct {
	CustomerID   uuid.UUID        `gorm:"column:customer_id;type:uuid;primaryKey"`
	Items        []CartItem       `gorm:"column:items;type:jsonb;serializer:json;not null"`
	TotalPrice   int64            `gorm:"column:total_price;not null;default:0"`
	Status       enums.CartStatus `gorm:"column:status;not null;default:'pending'"`
	ReminderSent bool             `gorm:"column:reminder_sent;not null;default:false"`
	Version      int64            `gorm:"column:version;not null;default:1"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt    time.Time        `gorm:"column:updated_at;autoUpdateTime:false"`
}
