package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/kirana-backend/pkg/config"
	"github.com/angelmondragon/kirana-backend/pkg/enums"
)

var jwtSigningMethod = jwt.SigningMethodHS256

var ErrAdminSecretMissing = errors.New("admin jwt secret is not configured")

// MintAccessToken issues a signed JWT for the provided payload using the configured TTL.
// Admin tokens are signed with the admin secret.
func MintAccessToken(cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) (string, error) {
	if cfg.Issuer == "" {
		return "", fmt.Errorf("jwt issuer is required")
	}
	if cfg.ExpirationMinutes <= 0 {
		return "", fmt.Errorf("jwt expiration minutes must be positive")
	}
	if !payload.Role.IsValid() {
		return "", fmt.Errorf("invalid role %q", payload.Role)
	}
	if payload.Role == enums.RoleCustomer && payload.CustomerID == uuid.Nil {
		return "", fmt.Errorf("customer id is required")
	}
	secret, err := secretFor(cfg, payload.Role)
	if err != nil {
		return "", err
	}

	jti := strings.TrimSpace(payload.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}

	claims := AccessTokenClaims{
		CustomerID: payload.CustomerID,
		Role:       payload.Role,
		Locale:     payload.Locale,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   payload.CustomerID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.Expiration())),
			ID:        jti,
		},
	}

	signed, err := jwt.NewWithClaims(jwtSigningMethod, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// ParseAccessToken validates a customer JWT and returns typed claims.
func ParseAccessToken(cfg config.JWTConfig, tokenString string) (*AccessTokenClaims, error) {
	return parse(cfg, tokenString, enums.RoleCustomer)
}

// ParseAdminToken validates a token signed with the admin secret.
func ParseAdminToken(cfg config.JWTConfig, tokenString string) (*AccessTokenClaims, error) {
	return parse(cfg, tokenString, enums.RoleAdmin)
}

func parse(cfg config.JWTConfig, tokenString string, role enums.Role) (*AccessTokenClaims, error) {
	secret, err := secretFor(cfg, role)
	if err != nil {
		return nil, err
	}

	claims := &AccessTokenClaims{}
	_, err = jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwtSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return secret, nil
		},
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
	)
	if err != nil {
		return nil, err
	}
	if claims.Role != role {
		return nil, fmt.Errorf("unexpected role %q", claims.Role)
	}
	return claims, nil
}

func secretFor(cfg config.JWTConfig, role enums.Role) ([]byte, error) {
	if role == enums.RoleAdmin {
		if cfg.AdminSecret == "" {
			return nil, ErrAdminSecretMissing
		}
		return []byte(cfg.AdminSecret), nil
	}
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	return []byte(cfg.Secret), nil
}
