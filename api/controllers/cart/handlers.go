package cart

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/kirana-backend/api/middleware"
	"github.com/angelmondragon/kirana-backend/api/responses"
	"github.com/angelmondragon/kirana-backend/api/validators"
	cartsvc "github.com/angelmondragon/kirana-backend/internal/cart"
	"github.com/angelmondragon/kirana-backend/pkg/db/models"
	"github.com/angelmondragon/kirana-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kirana-backend/pkg/errors"
	"github.com/angelmondragon/kirana-backend/pkg/logger"
)

const skuParam = "sku"

// ProductResolver looks a product up by id or SKU before it is added.
type ProductResolver interface {
	ResolveProduct(ctx context.Context, id *uuid.UUID, sku string) (*models.Product, error)
}

// CartFetch returns the customer's cart. A customer without a cart gets an
// empty one.
func CartFetch(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, ok := customer(w, r, logg)
		if !ok {
			return
		}

		record, err := svc.GetCart(r.Context(), customerID)
		writeCart(w, r, logg, record, err)
	}
}

// CartAddItem adds one unit of a catalog product.
func CartAddItem(svc cartsvc.Service, products ProductResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if products == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}
		customerID, ok := customer(w, r, logg)
		if !ok {
			return
		}

		var payload addItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := products.ResolveProduct(r.Context(), payload.ProductID, payload.sku())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.AddItem(r.Context(), customerID, *product)
		writeCart(w, r, logg, record, err)
	}
}

func CartIncrementItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return skuMutation(svc, cartsvc.Service.IncrementItem, logg)
}

// CartDecrementItem removes one unit. The line goes away at zero.
func CartDecrementItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return skuMutation(svc, cartsvc.Service.DecrementItem, logg)
}

func CartRemoveItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return skuMutation(svc, cartsvc.Service.RemoveItem, logg)
}

// CartClear deletes the whole cart.
func CartClear(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, ok := customer(w, r, logg)
		if !ok {
			return
		}
		if err := svc.ClearCart(r.Context(), customerID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type skuOp func(svc cartsvc.Service, ctx context.Context, customerID uuid.UUID, sku string) (*cartsvc.Cart, error)

func skuMutation(svc cartsvc.Service, op skuOp, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		customerID, ok := customer(w, r, logg)
		if !ok {
			return
		}
		sku, err := validators.ParseSKUParam(r, skuParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := op(svc, r.Context(), customerID, sku)
		writeCart(w, r, logg, record, err)
	}
}

func customer(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (uuid.UUID, bool) {
	id, ok := middleware.CustomerIDFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer context missing"))
		return uuid.Nil, false
	}
	return id, true
}

func writeCart(w http.ResponseWriter, r *http.Request, logg *logger.Logger, record *cartsvc.Cart, err error) {
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	if record == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart missing from response"))
		return
	}
	responses.WriteSuccess(w, record.Localize(middleware.LocaleFromContext(r.Context(), enums.DefaultLocale)))
}
