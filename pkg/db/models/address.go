package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/kirana-backend/pkg/types"
)

// Address is a saved delivery address of a customer.
type Address struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID uuid.UUID `gorm:"column:customer_id;type:uuid;not null;index"`
	Name       string    `gorm:"column:name;not null"`
	House      string    `gorm:"column:house;not null"`
	Street     string    `gorm:"column:street;not null"`
	Landmark   *string   `gorm:"column:landmark"`
	IsDefault  bool      `gorm:"column:is_default;not null;default:false"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (a *Address) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}

// Snapshot freezes the address for an order.
func (a Address) Snapshot() types.AddressSnapshot {
	return types.AddressSnapshot{
		AddressID: a.ID.String(),
		Name:      a.Name,
		House:     a.House,
		Street:    a.Street,
		Landmark:  a.Landmark,
	}
}
