package models

import "time"

// CartRule is the singleton delivery-fee configuration (id = 1).
type CartRule struct {
	ID                    int       `gorm:"column:id;primaryKey"`
	DeliveryCharge        int64     `gorm:"column:delivery_charge;not null"`
	FreeDeliveryThreshold int64     `gorm:"column:free_delivery_threshold;not null"`
	UpdatedAt             time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
