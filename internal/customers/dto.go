package customers

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/kirana-backend/pkg/db/models"
	"github.com/angelmondragon/kirana-backend/pkg/enums"
)

// CustomerDTO is the profile returned to the app.
type CustomerDTO struct {
	ID              uuid.UUID    `json:"id"`
	Phone           string       `json:"phone"`
	Name            *string      `json:"name,omitempty"`
	PreferredLocale enums.Locale `json:"preferred_locale"`
	LastLoginAt     *time.Time   `json:"last_login_at,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
}

func FromModel(c *models.Customer) *CustomerDTO {
	if c == nil {
		return nil
	}
	return &CustomerDTO{
		ID:              c.ID,
		Phone:           c.Phone,
		Name:            c.Name,
		PreferredLocale: c.PreferredLocale,
		LastLoginAt:     c.LastLoginAt,
		CreatedAt:       c.CreatedAt,
	}
}
