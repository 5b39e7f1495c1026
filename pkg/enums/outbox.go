package enums

import "fmt"

// OutboxAggregateType names the entity an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateCart     OutboxAggregateType = "cart"
	AggregateOrder    OutboxAggregateType = "order"
	AggregateCustomer OutboxAggregateType = "customer"
	AggregateAddress  OutboxAggregateType = "address"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateCart,
	AggregateOrder,
	AggregateCustomer,
	AggregateAddress,
}

// IsValid reports whether the value is a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType is the change notification emitted by a write.
type OutboxEventType string

const (
	EventCartUpdated           OutboxEventType = "cart.updated"
	EventCartDeleted           OutboxEventType = "cart.deleted"
	EventCartReconcileRequired OutboxEventType = "cart.reconcile_required"
	EventCartReminderDue       OutboxEventType = "cart.reminder_due"
	EventOrderPlaced           OutboxEventType = "order.placed"
	EventAddressChanged        OutboxEventType = "address.changed"
	EventLocaleChanged         OutboxEventType = "customer.locale_changed"
)

var validEventTypes = []OutboxEventType{
	EventCartUpdated,
	EventCartDeleted,
	EventCartReconcileRequired,
	EventCartReminderDue,
	EventOrderPlaced,
	EventAddressChanged,
	EventLocaleChanged,
}

// String implements fmt.Stringer.
func (e OutboxEventType) String() string {
	return string(e)
}

// IsValid reports whether the value is a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// eventAggregates pins every event type to the aggregate whose id becomes
// the ordering key. Cart and customer events are keyed by customer id.
var eventAggregates = map[OutboxEventType]OutboxAggregateType{
	EventCartUpdated:           AggregateCart,
	EventCartDeleted:           AggregateCart,
	EventCartReconcileRequired: AggregateCart,
	EventCartReminderDue:       AggregateCart,
	EventOrderPlaced:           AggregateOrder,
	EventAddressChanged:        AggregateAddress,
	EventLocaleChanged:         AggregateCustomer,
}

// Aggregate returns the aggregate type the event is emitted for, or "" for
// an unknown event type.
func (e OutboxEventType) Aggregate() OutboxAggregateType {
	return eventAggregates[e]
}
