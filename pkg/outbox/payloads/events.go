package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/kirana-backend/pkg/enums"
)

// CartChangedEvent is published for cart.updated and cart.deleted so clients
// can refresh their cart badge.
type CartChangedEvent struct {
	CustomerID uuid.UUID `json:"customer_id"`
	Version    int64     `json:"version"`
	ItemCount  int       `json:"item_count"`
	TotalPrice int64     `json:"total_price"`
	Deleted    bool      `json:"deleted"`
	Reason     string    `json:"reason,omitempty"`
}

// OrderPlacedEvent is emitted once per checkout.
type OrderPlacedEvent struct {
	OrderID        uuid.UUID `json:"order_id"`
	CustomerID     uuid.UUID `json:"customer_id"`
	Subtotal       int64     `json:"subtotal"`
	DeliveryCharge int64     `json:"delivery_charge"`
	TotalPrice     int64     `json:"total_price"`
	ItemCount      int       `json:"item_count"`
	IdempotencyKey string    `json:"idempotency_key"`
	PlacedAt       time.Time `json:"placed_at"`
}

// CartReconcileRequiredEvent flags a cart left behind by a checkout whose
// clearing step failed.
type CartReconcileRequiredEvent struct {
	CustomerID  uuid.UUID `json:"customer_id"`
	OrderID     uuid.UUID `json:"order_id"`
	CartVersion int64     `json:"cart_version"`
	Reason      string    `json:"reason"`
}

// CartReminderDueEvent asks the notifier to nudge an idle cart owner.
type CartReminderDueEvent struct {
	CustomerID uuid.UUID `json:"customer_id"`
	ItemCount  int       `json:"item_count"`
	TotalPrice int64     `json:"total_price"`
	IdleSince  time.Time `json:"idle_since"`
}

// AddressChangedEvent invalidates client-side address caches.
type AddressChangedEvent struct {
	CustomerID uuid.UUID `json:"customer_id"`
	AddressID  uuid.UUID `json:"address_id"`
	Action     string    `json:"action"`
}

// LocaleChangedEvent tells subscribers to re-read localized views.
type LocaleChangedEvent struct {
	CustomerID uuid.UUID    `json:"customer_id"`
	Locale     enums.Locale `json:"locale"`
}
