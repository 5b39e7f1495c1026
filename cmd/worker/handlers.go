package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/kirana-backend/pkg/enums"
	"github.com/angelmondragon/kirana-backend/pkg/logger"
	"github.com/angelmondragon/kirana-backend/pkg/notify"
	"github.com/angelmondragon/kirana-backend/pkg/outbox/payloads"
)

type cartReconciler interface {
	Reconcile(ctx context.Context, customerID uuid.UUID, version int64) (bool, error)
}

type handlers struct {
	logg       *logger.Logger
	reconciler cartReconciler
}

// newRouter wires the worker's reactions. Change notifications with no
// server-side work are logged so client fan-out can be traced per customer.
func newRouter(logg *logger.Logger, reconciler cartReconciler) *notify.Router {
	h := &handlers{logg: logg, reconciler: reconciler}
	router := notify.NewRouter()
	router.Handle(enums.EventCartReconcileRequired, h.reconcileCart)
	for _, eventType := range []enums.OutboxEventType{
		enums.EventCartUpdated,
		enums.EventCartDeleted,
		enums.EventCartReminderDue,
		enums.EventOrderPlaced,
		enums.EventAddressChanged,
		enums.EventLocaleChanged,
	} {
		router.Handle(eventType, h.trace)
	}
	return router
}

func (h *handlers) reconcileCart(ctx context.Context, event notify.Event) error {
	payload, ok := event.Payload.(*payloads.CartReconcileRequiredEvent)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	removed, err := h.reconciler.Reconcile(ctx, payload.CustomerID, payload.CartVersion)
	if err != nil {
		return fmt.Errorf("reconcile cart %s: %w", payload.CustomerID, err)
	}
	logCtx := h.logg.WithFields(ctx, map[string]any{
		"customer_id":  payload.CustomerID.String(),
		"order_id":     payload.OrderID.String(),
		"cart_version": payload.CartVersion,
		"removed":      removed,
	})
	h.logg.Info(logCtx, "cart reconciled after checkout")
	return nil
}

func (h *handlers) trace(ctx context.Context, event notify.Event) error {
	fields := map[string]any{
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID,
		"occurred_at":    event.OccurredAt,
	}
	if id := customerOf(event.Payload); id != uuid.Nil {
		fields["customer_id"] = id.String()
	}
	h.logg.Info(h.logg.WithFields(ctx, fields), "change notification delivered")
	return nil
}

func customerOf(payload any) uuid.UUID {
	switch p := payload.(type) {
	case *payloads.CartChangedEvent:
		return p.CustomerID
	case *payloads.CartReminderDueEvent:
		return p.CustomerID
	case *payloads.OrderPlacedEvent:
		return p.CustomerID
	case *payloads.AddressChangedEvent:
		return p.CustomerID
	case *payloads.LocaleChangedEvent:
		return p.CustomerID
	}
	return uuid.Nil
}
