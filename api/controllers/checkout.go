package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/kirana-backend/api/middleware"
	"github.com/angelmondragon/kirana-backend/api/responses"
	"github.com/angelmondragon/kirana-backend/api/validators"
	checkoutsvc "github.com/angelmondragon/kirana-backend/internal/checkout"
	"github.com/angelmondragon/kirana-backend/internal/orders"
	pkgcheckout "github.com/angelmondragon/kirana-backend/pkg/checkout"
	pkgerrors "github.com/angelmondragon/kirana-backend/pkg/errors"
	"github.com/angelmondragon/kirana-backend/pkg/logger"
)

type checkoutRequest struct {
	AddressID    *uuid.UUID `json:"address_id,omitempty"`
	CustomerName string     `json:"customer_name,omitempty" validate:"max=120"`
}

type checkoutResponse struct {
	Order       orders.OrderDTO     `json:"order"`
	Totals      pkgcheckout.Totals  `json:"totals"`
	Replayed    bool                `json:"replayed"`
	CartCleared bool                `json:"cart_cleared"`
	Trail       []checkoutsvc.State `json:"trail,omitempty"`
}

// Checkout places an order from the customer's cart. A repeated
// Idempotency-Key returns the order placed by the first request.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		customerID, err := customerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		idempotencyKey, err := validators.ParseIdempotencyKey(r.Header.Get(middleware.IdempotencyHeader))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body checkoutRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		result, err := svc.Checkout(r.Context(), customerID, checkoutsvc.Input{
			AddressID:      body.AddressID,
			CustomerName:   strings.TrimSpace(body.CustomerName),
			IdempotencyKey: idempotencyKey,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if result.Order == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout returned no order"))
			return
		}

		status := http.StatusCreated
		if result.Replayed {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, checkoutResponse{
			Order:       orders.ToDTO(*result.Order, requestLocale(r)),
			Totals:      result.Totals,
			Replayed:    result.Replayed,
			CartCleared: result.CartCleared,
			Trail:       result.Trail,
		})
	}
}
