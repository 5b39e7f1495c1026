package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/kirana-backend/pkg/db/models"
	"github.com/angelmondragon/kirana-backend/pkg/enums"
	"github.com/angelmondragon/kirana-backend/pkg/outbox"
	"github.com/angelmondragon/kirana-backend/pkg/outbox/payloads"
)

// ReasonReconciled tags cart.deleted events raised by the reconciler.
const ReasonReconciled = "reconciled"

// Reconciler removes carts that a placed order already consumed. It is driven
// by cart.reconcile_required notifications and by the periodic sweep.
type Reconciler struct {
	tx     txRunner
	carts  CartRepository
	outbox outbox.Emitter
	emit   bool
}

func NewReconciler(carts CartRepository, tx txRunner, publisher outbox.Emitter, emit bool) (*Reconciler, error) {
	if carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emit && publisher == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &Reconciler{tx: tx, carts: carts, outbox: publisher, emit: emit}, nil
}

// Reconcile deletes the customer's cart only while it is still at version.
// A cart edited after the order is kept and false is returned.
func (r *Reconciler) Reconcile(ctx context.Context, customerID uuid.UUID, version int64) (bool, error) {
	removed := false
	err := r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := r.carts.WithTx(tx)
		current, err := repo.FindByCustomer(ctx, customerID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if current.Version != version {
			return nil
		}
		ok, err := repo.DeleteVersioned(ctx, customerID, version)
		if err != nil || !ok {
			return err
		}
		removed = true
		if !r.emit {
			return nil
		}
		return r.outbox.Emit(ctx, tx, reconciledEvent(current))
	})
	return removed, err
}

func reconciledEvent(c *models.Cart) outbox.DomainEvent {
	count := 0
	for _, item := range c.Items {
		count += item.Quantity
	}
	return outbox.DomainEvent{
		EventType:     enums.EventCartDeleted,
		AggregateType: enums.AggregateCart,
		AggregateID:   c.CustomerID,
		Data: payloads.CartChangedEvent{
			CustomerID: c.CustomerID,
			Version:    c.Version,
			ItemCount:  count,
			TotalPrice: c.TotalPrice,
			Deleted:    true,
			Reason:     ReasonReconciled,
		},
	}
}
