package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/kirana-backend/pkg/enums"
	"github.com/angelmondragon/kirana-backend/pkg/redis"
)

type entry struct {
	value string
	ttl   time.Duration
}

// memoryStore mimics the SETNX/GET/SET/DEL subset of the redis client.
type memoryStore struct {
	data   map[string]entry
	setErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]entry{}}
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	e, ok := m.data[key]
	if !ok {
		return "", redis.ErrNil
	}
	return e.value, nil
}

func (m *memoryStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	m.data[key] = entry{value: value.(string), ttl: ttl}
	return nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if m.setErr != nil {
		return false, m.setErr
	}
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = entry{value: value.(string), ttl: ttl}
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "kr:idempotency:" + scope + ":" + id
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func TestClaimLifecycle(t *testing.T) {
	store := newMemoryStore()
	manager, err := NewManager(store, 720*time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx := context.Background()
	eventID := uuid.New()
	key := "kr:idempotency:evt:cart-notifier:" + eventID.String()

	outcome, err := manager.Claim(ctx, "cart-notifier", eventID)
	if err != nil || outcome != Claimed {
		t.Fatalf("first claim: %v %v", outcome, err)
	}
	if store.data[key].ttl != DefaultLease {
		t.Fatalf("claim should hold a lease, got ttl %v", store.data[key].ttl)
	}
	if outcome, _ := manager.Claim(ctx, "cart-notifier", eventID); outcome != InFlight {
		t.Fatalf("second claim while leased: got %v", outcome)
	}
	if outcome, _ := manager.Claim(ctx, "order-notifier", eventID); outcome != Claimed {
		t.Fatalf("other consumers claim independently, got %v", outcome)
	}

	if err := manager.Complete(ctx, "cart-notifier", enums.EventOrderPlaced, eventID); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if outcome, _ := manager.Claim(ctx, "cart-notifier", eventID); outcome != Duplicate {
		t.Fatalf("claim after completion: got %v", outcome)
	}
	if store.data[key].ttl != 720*time.Hour {
		t.Fatalf("orders keep the configured ttl, got %v", store.data[key].ttl)
	}
}

func TestReleaseAllowsRedelivery(t *testing.T) {
	store := newMemoryStore()
	manager, _ := NewManager(store, time.Hour)
	ctx := context.Background()
	eventID := uuid.New()

	if _, err := manager.Claim(ctx, "cart-notifier", eventID); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if err := manager.Release(ctx, "cart-notifier", eventID); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if outcome, _ := manager.Claim(ctx, "cart-notifier", eventID); outcome != Claimed {
		t.Fatalf("released event should be claimable, got %v", outcome)
	}
}

func TestRetentionFollowsEventType(t *testing.T) {
	manager, _ := NewManager(newMemoryStore(), 720*time.Hour)
	cases := map[enums.OutboxEventType]time.Duration{
		enums.EventOrderPlaced:           720 * time.Hour,
		enums.EventCartReconcileRequired: 720 * time.Hour,
		enums.EventCartReminderDue:       reminderRetention,
		enums.EventCartUpdated:           snapshotRetention,
		enums.EventLocaleChanged:         snapshotRetention,
	}
	for eventType, want := range cases {
		if got := manager.retention(eventType); got != want {
			t.Fatalf("%s: retention %v want %v", eventType, got, want)
		}
	}

	short, _ := NewManager(newMemoryStore(), time.Hour)
	if got := short.retention(enums.EventCartReminderDue); got != time.Hour {
		t.Fatalf("retention is capped by the configured ttl, got %v", got)
	}
}

func TestClaimErrors(t *testing.T) {
	store := newMemoryStore()
	store.setErr = errors.New("redis down")
	manager, _ := NewManager(store, time.Hour)
	ctx := context.Background()

	if _, err := manager.Claim(ctx, "cart-notifier", uuid.New()); err == nil {
		t.Fatal("expected store error")
	}
	if _, err := manager.Claim(ctx, "", uuid.New()); err == nil {
		t.Fatal("expected consumer name error")
	}
	if _, err := manager.Claim(ctx, "cart-notifier", uuid.Nil); err == nil {
		t.Fatal("expected event id error")
	}
}

func TestNewManagerValidation(t *testing.T) {
	if _, err := NewManager(nil, time.Hour); err == nil {
		t.Fatal("expected nil store error")
	}
	if _, err := NewManager(newMemoryStore(), -time.Second); err == nil {
		t.Fatal("expected negative ttl error")
	}
}
