package cron

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/kirana-backend/internal/cart"
	"github.com/angelmondragon/kirana-backend/pkg/db"
	"github.com/angelmondragon/kirana-backend/pkg/db/dbtest"
	"github.com/angelmondragon/kirana-backend/pkg/db/models"
	"github.com/angelmondragon/kirana-backend/pkg/enums"
	"github.com/angelmondragon/kirana-backend/pkg/logger"
	"github.com/angelmondragon/kirana-backend/pkg/outbox"
	"github.com/angelmondragon/kirana-backend/pkg/types"
)

func seedCart(t *testing.T, conn *gorm.DB, customerID uuid.UUID, version int64, updatedAt time.Time) {
	t.Helper()
	require.NoError(t, conn.Create(&models.Cart{
		CustomerID: customerID,
		Items:      []models.CartItem{{SKU: "A", Name: types.NewLocalizedText("A", ""), Price: 100, Quantity: 2}},
		TotalPrice: 200,
		Status:     enums.CartStatusPending,
		Version:    version,
		CreatedAt:  updatedAt,
		UpdatedAt:  updatedAt,
	}).Error)
}

func seedOrderFor(t *testing.T, conn *gorm.DB, customerID uuid.UUID, cartVersion int64, placedAt time.Time) {
	t.Helper()
	require.NoError(t, conn.Create(&models.Order{
		CustomerID:     customerID,
		CustomerName:   "Asha",
		Status:         enums.OrderStatusProcessing,
		StatusLabels:   types.LocalizedText{},
		Address:        types.AddressSnapshot{Name: "Asha", House: "1", Street: "Main"},
		Subtotal:       200,
		TotalPrice:     200,
		IdempotencyKey: uuid.NewString(),
		CartVersion:    cartVersion,
		PlacedAt:       placedAt,
	}).Error)
}

func countEvents(t *testing.T, conn *gorm.DB, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}

func TestCartReconcileDeletesSupersededCarts(t *testing.T) {
	conn := dbtest.Open(t)
	base := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	stale := uuid.New()
	seedCart(t, conn, stale, 3, base)
	seedOrderFor(t, conn, stale, 3, base.Add(time.Second))

	edited := uuid.New()
	seedCart(t, conn, edited, 5, base.Add(time.Hour))
	seedOrderFor(t, conn, edited, 4, base)

	untouched := uuid.New()
	seedCart(t, conn, untouched, 1, base)

	job, err := NewCartReconcileJob(CartReconcileJobParams{
		Logger:     logger.Nop(),
		DB:         db.FromGorm(conn),
		Carts:      cart.NewRepository(conn),
		Outbox:     outbox.NewService(outbox.NewRepository(conn), nil),
		EmitEvents: true,
	})
	require.NoError(t, err)
	require.NoError(t, job.Run(context.Background()))

	var remaining []models.Cart
	require.NoError(t, conn.Order("customer_id").Find(&remaining).Error)
	ids := map[uuid.UUID]bool{}
	for _, c := range remaining {
		ids[c.CustomerID] = true
	}
	require.False(t, ids[stale])
	require.True(t, ids[edited])
	require.True(t, ids[untouched])
	require.Equal(t, int64(1), countEvents(t, conn, enums.EventCartDeleted))
}

func TestAbandonedCartJobRemindsOnce(t *testing.T) {
	conn := dbtest.Open(t)
	now := time.Date(2026, 9, 3, 12, 0, 0, 0, time.UTC)

	idle := uuid.New()
	seedCart(t, conn, idle, 2, now.Add(-48*time.Hour))
	fresh := uuid.New()
	seedCart(t, conn, fresh, 1, now.Add(-time.Hour))

	jobIface, err := NewAbandonedCartJob(AbandonedCartJobParams{
		Logger: logger.Nop(),
		DB:     db.FromGorm(conn),
		Carts:  cart.NewRepository(conn),
		Outbox: outbox.NewService(outbox.NewRepository(conn), nil),
		After:  24 * time.Hour,
	})
	require.NoError(t, err)
	job := jobIface.(*abandonedCartJob)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, int64(1), countEvents(t, conn, enums.EventCartReminderDue))

	var reminded models.Cart
	require.NoError(t, conn.Where("customer_id = ?", idle).First(&reminded).Error)
	require.True(t, reminded.ReminderSent)
	require.Equal(t, int64(2), reminded.Version)
}

func TestAbandonedCartJobSkipsEmptyCarts(t *testing.T) {
	conn := dbtest.Open(t)
	now := time.Date(2026, 9, 3, 12, 0, 0, 0, time.UTC)

	emptied := uuid.New()
	require.NoError(t, conn.Create(&models.Cart{
		CustomerID: emptied,
		Items:      []models.CartItem{},
		Status:     enums.CartStatusPending,
		Version:    3,
		CreatedAt:  now.Add(-72 * time.Hour),
		UpdatedAt:  now.Add(-48 * time.Hour),
	}).Error)

	jobIface, err := NewAbandonedCartJob(AbandonedCartJobParams{
		Logger: logger.Nop(),
		DB:     db.FromGorm(conn),
		Carts:  cart.NewRepository(conn),
		Outbox: outbox.NewService(outbox.NewRepository(conn), nil),
		After:  24 * time.Hour,
	})
	require.NoError(t, err)
	job := jobIface.(*abandonedCartJob)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	require.Zero(t, countEvents(t, conn, enums.EventCartReminderDue))

	ok, err := job.remind(context.Background(), &models.Cart{CustomerID: emptied, Version: 3})
	require.NoError(t, err)
	require.False(t, ok, "a cart without items is never reminded")

	var row models.Cart
	require.NoError(t, conn.Where("customer_id = ?", emptied).First(&row).Error)
	require.False(t, row.ReminderSent)
}
