// Package notify delivers committed change notifications to in-process
// handlers. Events originate in the outbox and arrive through Pub/Sub
// subscriptions, so every delivery is at-least-once and handlers are guarded
// by a per-consumer processed marker.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/kirana-backend/pkg/enums"
	"github.com/angelmondragon/kirana-backend/pkg/outbox"
)

// Event is a decoded change notification.
type Event struct {
	ID            uuid.UUID
	Type          enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   string
	Version       int
	OccurredAt    time.Time
	Actor         *outbox.ActorRef
	// Payload is the typed body registered for Type, e.g. *payloads.CartChangedEvent.
	Payload any
}

// Handler reacts to one event. A non-nil error asks for redelivery.
type Handler func(ctx context.Context, event Event) error

// Subscriber streams events to handler until ctx is canceled.
type Subscriber interface {
	Subscribe(ctx context.Context, handler Handler) error
}
