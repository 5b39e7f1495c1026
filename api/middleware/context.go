package middleware

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/kirana-backend/pkg/enums"
)

type contextKey string

const (
	ctxCustomerID contextKey = "customer_id"
	ctxRole       contextKey = "actor_role"
	ctxTokenID    contextKey = "token_id"
	ctxTokenExp   contextKey = "token_expires_at"
	ctxLocale     contextKey = "locale"
)

// CustomerIDFromContext returns the authenticated customer, if any.
func CustomerIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	id, ok := ctx.Value(ctxCustomerID).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

// TokenFromContext returns the jti and expiry of the bearer token.
func TokenFromContext(ctx context.Context) (string, time.Time) {
	if ctx == nil {
		return "", time.Time{}
	}
	id, _ := ctx.Value(ctxTokenID).(string)
	exp, _ := ctx.Value(ctxTokenExp).(time.Time)
	return id, exp
}

// LocaleFromContext returns the request locale, falling back to def.
func LocaleFromContext(ctx context.Context, def enums.Locale) enums.Locale {
	if ctx != nil {
		if v, ok := ctx.Value(ctxLocale).(enums.Locale); ok && v.IsValid() {
			return v
		}
	}
	return def
}

// WithCustomerID injects the customer identifier into the context.
func WithCustomerID(ctx context.Context, id uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxCustomerID, id)
}

// WithLocale injects the locale the response should be rendered in.
func WithLocale(ctx context.Context, locale enums.Locale) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxLocale, locale)
}
