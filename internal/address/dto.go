package address

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/kirana-backend/pkg/db/models"
)

// AddressInput is the create/update form.
type AddressInput struct {
	Name      string  `json:"name" validate:"required,max=120"`
	House     string  `json:"house" validate:"required,max=120"`
	Street    string  `json:"street" validate:"required,max=200"`
	Landmark  *string `json:"landmark,omitempty" validate:"omitempty,max=200"`
	IsDefault bool    `json:"is_default"`
}

type AddressDTO struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	House     string    `json:"house"`
	Street    string    `json:"street"`
	Landmark  *string   `json:"landmark,omitempty"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toDTO(m models.Address) AddressDTO {
	return AddressDTO{
		ID:        m.ID,
		Name:      m.Name,
		House:     m.House,
		Street:    m.Street,
		Landmark:  m.Landmark,
		IsDefault: m.IsDefault,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
