package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/kirana-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	CustomerID uuid.UUID
	Role       enums.Role
	Locale     enums.Locale
	JTI        string
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	CustomerID uuid.UUID    `json:"customer_id"`
	Role       enums.Role   `json:"role"`
	Locale     enums.Locale `json:"locale,omitempty"`
	jwt.RegisteredClaims
}
