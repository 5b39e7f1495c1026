package middleware

import (
	"net/http"
	"slices"

	"github.com/angelmondragon/kirana-backend/api/responses"
	"github.com/angelmondragon/kirana-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kirana-backend/pkg/errors"
	"github.com/angelmondragon/kirana-backend/pkg/logger"
)

// RequireRole admits requests whose token carries one of roles. Customer
// routes additionally need a customer id on the token.
func RequireRole(logg *logger.Logger, roles ...enums.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := enums.Role(RoleFromContext(r.Context()))
			if !slices.Contains(roles, role) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role not allowed").
					WithDetails(map[string]any{"role": string(role)}))
				return
			}
			if role == enums.RoleCustomer {
				if _, ok := CustomerIDFromContext(r.Context()); !ok {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer session required"))
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
