package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/kirana-backend/pkg/enums"
)

// Customer is a phone-verified shopper.
type Customer struct {
	ID              uuid.UUID    `gorm:"column:id;type:uuid;primaryKey"`
	Phone           string       `gorm:"column:phone;not null;uniqueIndex"`
	Name            *string      `gorm:"column:name"`
	PreferredLocale enums.Locale `gorm:"column:preferred_locale;not null;default:'en'"`
	LastLoginAt     *time.Time   `gorm:"column:last_login_at"`
	CreatedAt       time.Time    `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time    `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Customer) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
