package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/kirana-backend/pkg/types"
)

// Category groups products on the home screen.
type Category struct {
	ID        uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Slug      string              `gorm:"column:slug;not null;uniqueIndex"`
	Name      types.LocalizedText `gorm:"column:name;type:jsonb;not null"`
	ImageURL  string              `gorm:"column:image_url;not null;default:''"`
	Position  int                 `gorm:"column:position;not null;default:0"`
	CreatedAt time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (c *Category) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
