package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/kirana-backend/pkg/db"
	"github.com/angelmondragon/kirana-backend/pkg/db/models"
	"github.com/angelmondragon/kirana-backend/pkg/enums"
	"github.com/angelmondragon/kirana-backend/pkg/outbox"
)

func TestReconcilerDeletesOnlyMatchingVersion(t *testing.T) {
	h := newHarness(t, defaultCartConfig(), nil)
	ctx := context.Background()

	_, err := h.svc.AddItem(ctx, h.cid, testProduct("A", 100))
	require.NoError(t, err)
	current, err := h.svc.GetCart(ctx, h.cid)
	require.NoError(t, err)

	reconciler, err := NewReconciler(NewRepository(h.conn), db.FromGorm(h.conn), outbox.NewService(outbox.NewRepository(h.conn), nil), true)
	require.NoError(t, err)

	removed, err := reconciler.Reconcile(ctx, h.cid, current.Version+1)
	require.NoError(t, err)
	require.False(t, removed, "a newer cart must survive")
	require.Equal(t, int64(1), h.cartRows(t))

	removed, err = reconciler.Reconcile(ctx, h.cid, current.Version)
	require.NoError(t, err)
	require.True(t, removed)
	require.Equal(t, int64(0), h.cartRows(t))

	var event models.OutboxEvent
	require.NoError(t, h.conn.Where("event_type = ?", enums.EventCartDeleted).Order("created_at DESC").First(&event).Error)
	require.Contains(t, string(event.Payload), ReasonReconciled)
}

func TestReconcilerMissingCartIsNoop(t *testing.T) {
	h := newHarness(t, defaultCartConfig(), nil)
	reconciler, err := NewReconciler(NewRepository(h.conn), db.FromGorm(h.conn), nil, false)
	require.NoError(t, err)

	removed, err := reconciler.Reconcile(context.Background(), uuid.New(), 1)
	require.NoError(t, err)
	require.False(t, removed)
}

func TestNewReconcilerRequiresEmitterWhenEmitting(t *testing.T) {
	h := newHarness(t, defaultCartConfig(), nil)
	_, err := NewReconciler(NewRepository(h.conn), db.FromGorm(h.conn), nil, true)
	require.Error(t, err)
}
