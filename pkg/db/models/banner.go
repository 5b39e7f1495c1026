package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/kirana-backend/pkg/types"
)

// Banner is a promotional tile linking to a set of products.
type Banner struct {
	ID         uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Title      types.LocalizedText `gorm:"column:title;type:jsonb;not null"`
	ImageURL   string              `gorm:"column:image_url;not null"`
	ProductIDs []string            `gorm:"column:product_ids;type:jsonb;serializer:json"`
	Position   int                 `gorm:"column:position;not null;default:0"`
	IsActive   bool                `gorm:"column:is_active;not null;default:true"`
	CreatedAt  time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (b *Banner) BeforeCreate(*gorm.DB) error {
	ensureID(&b.ID)
	return nil
}
