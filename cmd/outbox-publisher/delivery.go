package main

import (
	"time"

	"github.com/angelmondragon/kirana-backend/pkg/db/models"
	"github.com/angelmondragon/kirana-backend/pkg/enums"
)

// deliveryClass decides how hard the publisher works for an event type.
type deliveryClass string

const (
	// Orders and reconcile flags feed fulfilment and repair. They get the
	// longest retry budget.
	classCritical deliveryClass = "critical"
	// Snapshots carry the full current state of their aggregate: cart.deleted
	// after cart.updated, or a second locale change, replaces what came before.
	classSnapshot deliveryClass = "snapshot"
	// Reminders are nudges. Late is worse than never.
	classReminder deliveryClass = "reminder"
)

const (
	criticalAttemptFactor = 3
	reminderAttempts      = 3
	reminderTTL           = 12 * time.Hour
)

type deliveryPolicy struct {
	class    deliveryClass
	attempts int
	// expireAfter is measured from the row's created_at. Zero never expires.
	expireAfter time.Duration
}

func classify(eventType enums.OutboxEventType) deliveryClass {
	switch eventType {
	case enums.EventOrderPlaced, enums.EventCartReconcileRequired:
		return classCritical
	case enums.EventCartReminderDue:
		return classReminder
	default:
		return classSnapshot
	}
}

func policyFor(eventType enums.OutboxEventType, maxAttempts int) deliveryPolicy {
	switch classify(eventType) {
	case classCritical:
		return deliveryPolicy{class: classCritical, attempts: maxAttempts * criticalAttemptFactor}
	case classReminder:
		return deliveryPolicy{
			class:       classReminder,
			attempts:    min(reminderAttempts, maxAttempts),
			expireAfter: reminderTTL,
		}
	default:
		return deliveryPolicy{class: classSnapshot, attempts: maxAttempts}
	}
}

// fetchCeiling is the largest attempt budget of any class. Rows at or above
// it are out of the queue for good.
func fetchCeiling(maxAttempts int) int {
	return maxAttempts * criticalAttemptFactor
}

// orderingKey serializes delivery per aggregate: a customer's cart events
// reach subscribers in the order they were written.
func orderingKey(event models.OutboxEvent) string {
	return string(event.AggregateType) + ":" + event.AggregateID.String()
}

type plannedEvent struct {
	event      models.OutboxEvent
	policy     deliveryPolicy
	key        string
	superseded bool
}

// planBatch attaches a policy to each fetched row and flags snapshots that a
// later snapshot of the same aggregate in the batch already covers. Rows
// keep their created_at order.
func planBatch(events []models.OutboxEvent, maxAttempts int) []plannedEvent {
	planned := make([]plannedEvent, len(events))
	latest := make(map[string]bool)
	for i := len(events) - 1; i >= 0; i-- {
		event := events[i]
		p := plannedEvent{
			event:  event,
			policy: policyFor(event.EventType, maxAttempts),
			key:    orderingKey(event),
		}
		if p.policy.class == classSnapshot {
			p.superseded = latest[p.key]
			latest[p.key] = true
		}
		planned[i] = p
	}
	return planned
}

func (p plannedEvent) expired(now time.Time) bool {
	if p.policy.expireAfter <= 0 || p.event.CreatedAt.IsZero() {
		return false
	}
	return now.Sub(p.event.CreatedAt) > p.policy.expireAfter
}
