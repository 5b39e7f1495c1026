package auth

import (
	"time"

	"github.com/angelmondragon/kirana-backend/internal/customers"
	"github.com/angelmondragon/kirana-backend/pkg/enums"
)

// OTPRequest asks for a login code to be sent to phone.
type OTPRequest struct {
	Phone string `json:"phone" validate:"required,min=10,max=16"`
}

// OTPRequestResponse tells the app how long the code stays valid.
type OTPRequestResponse struct {
	Phone     string `json:"phone"`
	ExpiresIn int    `json:"expires_in_seconds"`
}

// OTPVerifyRequest exchanges a code for an access token.
type OTPVerifyRequest struct {
	Phone string `json:"phone" validate:"required,min=10,max=16"`
	Code  string `json:"code" validate:"required,numeric,min=4,max=8"`
}

// LoginResponse contains the access token and the customer profile.
type LoginResponse struct {
	AccessToken string                 `json:"access_token"`
	ExpiresAt   time.Time              `json:"expires_at"`
	IsNew       bool                   `json:"is_new"`
	Customer    *customers.CustomerDTO `json:"customer"`
}

// UpdateLocaleRequest switches the customer's display language.
type UpdateLocaleRequest struct {
	Locale string `json:"locale" validate:"required,oneof=en hi EN HI"`
}

// UpdateProfileRequest sets the name used on orders.
type UpdateProfileRequest struct {
	Name *string `json:"name" validate:"omitempty,max=120"`
}

// Session identifies the token being logged out.
type Session struct {
	TokenID   string
	ExpiresAt time.Time
	Locale    enums.Locale
}
