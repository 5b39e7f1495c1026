// Package idempotency deduplicates Pub/Sub redeliveries of outbox events per
// consumer. An event is first claimed under a short lease and only marked
// done once its handler succeeds, so a worker that dies mid-handler does not
// swallow the event.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/kirana-backend/pkg/enums"
	"github.com/angelmondragon/kirana-backend/pkg/redis"
)

const (
	DefaultLease = 2 * time.Minute

	// Snapshots are superseded quickly and reminders are one-shot; neither
	// needs the month-long memory orders get.
	snapshotRetention = 24 * time.Hour
	reminderRetention = 72 * time.Hour

	markClaimed = "claimed"
	markDone    = "done"
)

// Outcome is the result of a claim attempt.
type Outcome int

const (
	// Claimed: the caller owns the event and must Complete or Release it.
	Claimed Outcome = iota
	// Duplicate: a previous delivery was handled; ack without handling.
	Duplicate
	// InFlight: another delivery holds the lease; nack so it comes back.
	InFlight
)

func (o Outcome) String() string {
	switch o {
	case Claimed:
		return "claimed"
	case Duplicate:
		return "duplicate"
	case InFlight:
		return "in_flight"
	}
	return "unknown"
}

// Manager keeps per-consumer markers under
// `<ns>:idempotency:evt:<consumer>:<event_id>`.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	lease time.Duration
}

// NewManager builds a manager. ttl is how long order and reconcile events
// are remembered; other event types keep shorter markers capped at ttl.
func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{store: store, ttl: ttl, lease: DefaultLease}, nil
}

// Claim takes the lease for eventID.
func (m *Manager) Claim(ctx context.Context, consumer string, eventID uuid.UUID) (Outcome, error) {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return InFlight, err
	}
	set, err := m.store.SetNX(ctx, key, markClaimed, m.lease)
	if err != nil {
		return InFlight, err
	}
	if set {
		return Claimed, nil
	}
	mark, err := m.store.Get(ctx, key)
	switch {
	case errors.Is(err, redis.ErrNil):
		// lease expired between SetNX and Get
		return InFlight, nil
	case err != nil:
		return InFlight, err
	case mark == markDone:
		return Duplicate, nil
	}
	return InFlight, nil
}

// Complete turns a claim into a done marker kept for the event type's
// retention.
func (m *Manager) Complete(ctx context.Context, consumer string, eventType enums.OutboxEventType, eventID uuid.UUID) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, key, markDone, m.retention(eventType))
}

// Release drops a claim so a failed handler can be redelivered.
func (m *Manager) Release(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) retention(eventType enums.OutboxEventType) time.Duration {
	var keep time.Duration
	switch eventType {
	case enums.EventOrderPlaced, enums.EventCartReconcileRequired:
		return m.ttl
	case enums.EventCartReminderDue:
		keep = reminderRetention
	default:
		keep = snapshotRetention
	}
	if m.ttl > 0 && m.ttl < keep {
		return m.ttl
	}
	return keep
}

func (m *Manager) key(consumer string, eventID uuid.UUID) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return m.store.IdempotencyKey(fmt.Sprintf("evt:%s", consumer), eventID.String()), nil
}
