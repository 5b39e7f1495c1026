package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/kirana-backend/pkg/types"
)

// DailyOffer highlights a discounted product for a time window.
type DailyOffer struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	ProductID       uuid.UUID           `gorm:"column:product_id;type:uuid;not null"`
	Title           types.LocalizedText `gorm:"column:title;type:jsonb;not null"`
	DiscountPercent int                 `gorm:"column:discount_percent;not null;default:0"`
	StartsAt        *time.Time          `gorm:"column:starts_at"`
	EndsAt          *time.Time          `gorm:"column:ends_at"`
	Position        int                 `gorm:"column:position;not null;default:0"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (d *DailyOffer) BeforeCreate(*gorm.DB) error {
	ensureID(&d.ID)
	return nil
}

// ActiveAt reports whether the offer window contains t.
func (d DailyOffer) ActiveAt(t time.Time) bool {
	if d.StartsAt != nil && t.Before(*d.StartsAt) {
		return false
	}
	if d.EndsAt != nil && !t.Before(*d.EndsAt) {
		return false
	}
	return true
}
