package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/kirana-backend/api/responses"
	pkgAuth "github.com/angelmondragon/kirana-backend/pkg/auth"
	"github.com/angelmondragon/kirana-backend/pkg/auth/session"
	"github.com/angelmondragon/kirana-backend/pkg/config"
	"github.com/angelmondragon/kirana-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kirana-backend/pkg/errors"
	"github.com/angelmondragon/kirana-backend/pkg/logger"
)

type tokenParser func(cfg config.JWTConfig, token string) (*pkgAuth.AccessTokenClaims, error)

// Auth validates a customer bearer token, rejects revoked tokens and seeds
// the request context with the claims.
func Auth(cfg config.JWTConfig, revocations session.Checker, logg *logger.Logger) func(http.Handler) http.Handler {
	return authenticate(cfg, pkgAuth.ParseAccessToken, revocations, logg)
}

// AdminAuth accepts only tokens signed with the admin secret.
func AdminAuth(cfg config.JWTConfig, revocations session.Checker, logg *logger.Logger) func(http.Handler) http.Handler {
	return authenticate(cfg, pkgAuth.ParseAdminToken, revocations, logg)
}

func authenticate(cfg config.JWTConfig, parse tokenParser, revocations session.Checker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := parse(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}
			if claims.ID == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing token id"))
				return
			}

			if revocations != nil {
				revoked, err := revocations.IsRevoked(r.Context(), claims.ID)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check token revocation"))
					return
				}
				if revoked {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "token revoked"))
					return
				}
			}

			ctx := context.WithValue(r.Context(), ctxRole, string(claims.Role))
			ctx = context.WithValue(ctx, ctxTokenID, claims.ID)
			if claims.ExpiresAt != nil {
				ctx = context.WithValue(ctx, ctxTokenExp, claims.ExpiresAt.Time)
			}
			fields := map[string]any{"actor_role": string(claims.Role)}
			if claims.Role == enums.RoleCustomer {
				ctx = WithCustomerID(ctx, claims.CustomerID)
				fields["customer_id"] = claims.CustomerID.String()
			}
			// An explicit request locale set earlier in the chain wins over the token.
			if _, ok := ctx.Value(ctxLocale).(enums.Locale); !ok && claims.Locale.IsValid() {
				ctx = WithLocale(ctx, claims.Locale)
			}
			if logg != nil {
				ctx = logg.WithFields(ctx, fields)
			}
			noteActor(ctx, claims.Role, claims.CustomerID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	token := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return token
}
