package session

import (
	"context"
	"sync"
	"testing"
	"time"
)

type mockStore struct {
	mu   sync.Mutex
	data map[string]time.Duration
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string]time.Duration)}
}

func (m *mockStore) Set(_ context.Context, key string, _ any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = ttl
	return nil
}

func (m *mockStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok, nil
}

type prefixKeyer struct{}

func (prefixKeyer) RevokedTokenKey(id string) string { return "kr:revoked:" + id }

func TestRevokeThenCheck(t *testing.T) {
	store := newMockStore()
	r := &Revocations{store: store, keyer: prefixKeyer{}}
	ctx := context.Background()

	if err := r.Revoke(ctx, "jti-1", time.Now().Add(10*time.Minute)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	revoked, err := r.IsRevoked(ctx, "jti-1")
	if err != nil || !revoked {
		t.Fatalf("expected revoked, got %v %v", revoked, err)
	}
	if ttl := store.data["kr:revoked:jti-1"]; ttl <= 0 || ttl > 10*time.Minute {
		t.Fatalf("unexpected ttl %s", ttl)
	}

	revoked, err = r.IsRevoked(ctx, "jti-2")
	if err != nil || revoked {
		t.Fatalf("unrelated token should not be revoked")
	}
}

func TestRevokeExpiredTokenIsNoop(t *testing.T) {
	store := newMockStore()
	r := &Revocations{store: store, keyer: prefixKeyer{}}
	if err := r.Revoke(context.Background(), "old", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if len(store.data) != 0 {
		t.Fatalf("expired tokens should not be stored")
	}
}

func TestRevokeRequiresID(t *testing.T) {
	r := &Revocations{store: newMockStore(), keyer: prefixKeyer{}}
	if err := r.Revoke(context.Background(), " ", time.Now().Add(time.Minute)); err == nil {
		t.Fatal("expected error")
	}
}
