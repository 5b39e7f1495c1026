package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/kirana-backend/pkg/types"
)

// Product is a catalog listing. Prices are in paise.
type Product struct {
	ID           uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	SKU          string              `gorm:"column:sku;not null;uniqueIndex"`
	Name         types.LocalizedText `gorm:"column:name;type:jsonb;not null"`
	Price        int64               `gorm:"column:price;not null"`
	MRP          *int64              `gorm:"column:mrp"`
	CategorySlug string              `gorm:"column:category_slug;not null;index"`
	Category     types.LocalizedText `gorm:"column:category;type:jsonb;not null"`
	Subcategory  types.LocalizedText `gorm:"column:subcategory;type:jsonb;not null"`
	ImageURL     string              `gorm:"column:image_url;not null;default:''"`
	IsPromoted   bool                `gorm:"column:is_promoted;not null;default:false"`
	IsActive     bool                `gorm:"column:is_active;not null;default:true"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
