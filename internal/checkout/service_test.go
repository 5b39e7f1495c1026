package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/kirana-backend/internal/cart"
	"github.com/angelmondragon/kirana-backend/internal/catalog"
	"github.com/angelmondragon/kirana-backend/internal/orders"
	"github.com/angelmondragon/kirana-backend/pkg/config"
	"github.com/angelmondragon/kirana-backend/pkg/db"
	"github.com/angelmondragon/kirana-backend/pkg/db/dbtest"
	"github.com/angelmondragon/kirana-backend/pkg/db/models"
	"github.com/angelmondragon/kirana-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kirana-backend/pkg/errors"
	"github.com/angelmondragon/kirana-backend/pkg/metrics"
	"github.com/angelmondragon/kirana-backend/pkg/outbox"
	"github.com/angelmondragon/kirana-backend/pkg/types"
)

type stubRules struct {
	rules catalog.CartRules
}

func (s stubRules) GetCartRules(context.Context) (catalog.CartRules, error) {
	return s.rules, nil
}

// staleCartRepo loses every conditional delete, as if the customer changed
// the cart right after it was read.
type staleCartRepo struct {
	cart.CartRepository
}

func (r staleCartRepo) WithTx(tx *gorm.DB) cart.CartRepository {
	return staleCartRepo{CartRepository: r.CartRepository.WithTx(tx)}
}

func (staleCartRepo) DeleteVersioned(context.Context, uuid.UUID, int64) (bool, error) {
	return false, nil
}

type fixture struct {
	conn     *gorm.DB
	carts    cart.Service
	checkout Service
	metrics  *metrics.CartMetrics
	cid      uuid.UUID
}

func newFixture(t *testing.T, atomic bool, wrap func(cart.CartRepository) cart.CartRepository, opts ...func(*Options)) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	client := db.FromGorm(conn)
	emitter := outbox.NewService(outbox.NewRepository(conn), nil)
	eventing := config.EventingConfig{PublishCartEvents: true}
	cm := metrics.NewCartMetrics(prometheus.NewRegistry())

	cartSvc, err := cart.NewService(cart.NewRepository(conn), client, config.CartConfig{MaxRetries: 2, DeleteOnEmptyDecrement: true}, eventing, cart.Options{Outbox: emitter})
	require.NoError(t, err)

	options := Options{Metrics: cm}
	for _, opt := range opts {
		opt(&options)
	}

	var cartRepo cart.CartRepository = cart.NewRepository(conn)
	if wrap != nil {
		cartRepo = wrap(cartRepo)
	}
	svc, err := NewService(
		client,
		NewRepository(conn),
		cartRepo,
		orders.NewRepository(conn),
		stubRules{rules: catalog.CartRules{DeliveryCharge: 4000, FreeDeliveryThreshold: 300000}},
		emitter,
		config.CheckoutConfig{Atomic: atomic, DefaultCustomerName: "Customer"},
		eventing,
		options,
	)
	require.NoError(t, err)
	return &fixture{conn: conn, carts: cartSvc, checkout: svc, metrics: cm, cid: uuid.New()}
}

func (f *fixture) seedAddress(t *testing.T, name string, isDefault bool) *models.Address {
	t.Helper()
	address := &models.Address{CustomerID: f.cid, Name: name, House: "12B", Street: "Station Road", IsDefault: isDefault}
	require.NoError(t, f.conn.Create(address).Error)
	return address
}

func (f *fixture) add(t *testing.T, sku string, price int64) {
	t.Helper()
	_, err := f.carts.AddItem(context.Background(), f.cid, models.Product{
		ID:    uuid.New(),
		SKU:   sku,
		Name:  types.NewLocalizedText(sku, ""),
		Price: price,
	})
	require.NoError(t, err)
}

func (f *fixture) count(t *testing.T, model any, where ...any) int64 {
	t.Helper()
	var n int64
	q := f.conn.Model(model)
	if len(where) > 0 {
		q = q.Where(where[0], where[1:]...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

func TestCheckoutChargesDeliveryBelowThreshold(t *testing.T) {
	f := newFixture(t, true, nil)
	f.seedAddress(t, "Ravi", true)
	f.add(t, "ATTA", 250000)

	res, err := f.checkout.Checkout(context.Background(), f.cid, Input{})
	require.NoError(t, err)
	require.Equal(t, int64(250000), res.Order.Subtotal)
	require.Equal(t, int64(4000), res.Order.DeliveryCharge)
	require.Equal(t, int64(254000), res.Order.TotalPrice)
	require.Equal(t, enums.OrderStatusProcessing, res.Order.Status)
	require.True(t, res.CartCleared)
	require.Equal(t, []State{StateIdle, StateValidatingCart, StateComputingTotal, StatePersistingOrder, StateClearingCart, StateDone}, res.Trail)

	require.Zero(t, f.count(t, &models.Cart{}, "customer_id = ?", f.cid))
	require.Equal(t, int64(1), f.count(t, &models.OrderLineItem{}, "order_id = ?", res.Order.ID))
	require.Equal(t, int64(1), f.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventOrderPlaced))

	got, err := f.carts.GetCart(context.Background(), f.cid)
	require.NoError(t, err)
	require.True(t, got.Empty)
}

func TestCheckoutFreeDeliveryAboveThreshold(t *testing.T) {
	f := newFixture(t, true, nil)
	f.seedAddress(t, "Ravi", true)
	f.add(t, "RICE", 350000)

	res, err := f.checkout.Checkout(context.Background(), f.cid, Input{})
	require.NoError(t, err)
	require.Zero(t, res.Order.DeliveryCharge)
	require.Equal(t, int64(350000), res.Order.TotalPrice)
}

func TestCheckoutEmptyCartWritesNothing(t *testing.T) {
	f := newFixture(t, true, nil)
	f.seedAddress(t, "Ravi", true)

	_, err := f.checkout.Checkout(context.Background(), f.cid, Input{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodePrecondition), "got %v", err)
	require.Zero(t, f.count(t, &models.Order{}))
	require.Zero(t, f.count(t, &models.OutboxEvent{}))
}

func TestCheckoutRequiresAddress(t *testing.T) {
	f := newFixture(t, true, nil)
	f.add(t, "ATTA", 1000)

	_, err := f.checkout.Checkout(context.Background(), f.cid, Input{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodePrecondition), "got %v", err)
	require.Equal(t, int64(1), f.count(t, &models.Cart{}, "customer_id = ?", f.cid))
	require.Zero(t, f.count(t, &models.Order{}))

	other := uuid.New()
	_, err = f.checkout.Checkout(context.Background(), f.cid, Input{AddressID: &other})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodePrecondition), "got %v", err)
}

func TestCheckoutReplaysClientKey(t *testing.T) {
	f := newFixture(t, true, nil)
	f.seedAddress(t, "Ravi", true)
	f.add(t, "ATTA", 1000)
	ctx := context.Background()

	first, err := f.checkout.Checkout(ctx, f.cid, Input{IdempotencyKey: "tap-1"})
	require.NoError(t, err)
	second, err := f.checkout.Checkout(ctx, f.cid, Input{IdempotencyKey: "tap-1"})
	require.NoError(t, err)

	require.True(t, second.Replayed)
	require.Equal(t, first.Order.ID, second.Order.ID)
	require.Equal(t, []State{StateIdle, StateDone}, second.Trail)
	require.Equal(t, int64(1), f.count(t, &models.Order{}))
	require.Equal(t, ClientKey(f.cid, "tap-1"), first.Order.IdempotencyKey)
}

func TestCheckoutConflictRollsBack(t *testing.T) {
	f := newFixture(t, true, func(r cart.CartRepository) cart.CartRepository { return staleCartRepo{r} })
	f.seedAddress(t, "Ravi", true)
	f.add(t, "ATTA", 1000)

	_, err := f.checkout.Checkout(context.Background(), f.cid, Input{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)
	require.Zero(t, f.count(t, &models.Order{}))
	require.Zero(t, f.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventOrderPlaced))
	require.Equal(t, int64(1), f.count(t, &models.Cart{}, "customer_id = ?", f.cid))
}

func TestSplitCheckoutQueuesReconcile(t *testing.T) {
	f := newFixture(t, false, func(r cart.CartRepository) cart.CartRepository { return staleCartRepo{r} })
	f.seedAddress(t, "Ravi", true)
	f.add(t, "ATTA", 1000)
	ctx := context.Background()

	res, err := f.checkout.Checkout(ctx, f.cid, Input{})
	require.NoError(t, err)
	require.False(t, res.CartCleared)
	require.Equal(t, int64(1), f.count(t, &models.Order{}))
	require.Equal(t, int64(1), f.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventCartReconcileRequired))
	require.Equal(t, int64(1), f.count(t, &models.Cart{}, "customer_id = ?", f.cid))

	again, err := f.checkout.Checkout(ctx, f.cid, Input{})
	require.NoError(t, err)
	require.True(t, again.Replayed)
	require.Equal(t, res.Order.ID, again.Order.ID)
	require.Equal(t, int64(1), f.count(t, &models.Order{}))
}

func TestSplitCheckoutClearsCart(t *testing.T) {
	f := newFixture(t, false, nil)
	f.seedAddress(t, "Ravi", true)
	f.add(t, "ATTA", 1000)

	res, err := f.checkout.Checkout(context.Background(), f.cid, Input{})
	require.NoError(t, err)
	require.True(t, res.CartCleared)
	require.Zero(t, f.count(t, &models.Cart{}, "customer_id = ?", f.cid))
	require.Zero(t, f.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventCartReconcileRequired))
}

func TestCheckoutCustomerNamePrecedence(t *testing.T) {
	f := newFixture(t, true, nil)
	address := f.seedAddress(t, "Address Name", false)
	ctx := context.Background()

	f.add(t, "A", 100)
	res, err := f.checkout.Checkout(ctx, f.cid, Input{AddressID: &address.ID, CustomerName: "  Typed Name "})
	require.NoError(t, err)
	require.Equal(t, "Typed Name", res.Order.CustomerName)
	require.Equal(t, address.ID.String(), res.Order.Address.AddressID)

	f.add(t, "B", 100)
	res, err = f.checkout.Checkout(ctx, f.cid, Input{})
	require.NoError(t, err)
	require.Equal(t, "Address Name", res.Order.CustomerName)

	profile := "Profile Name"
	require.NoError(t, f.conn.Create(&models.Customer{ID: f.cid, Phone: "+919876543210", Name: &profile}).Error)
	f.add(t, "C", 100)
	res, err = f.checkout.Checkout(ctx, f.cid, Input{})
	require.NoError(t, err)
	require.Equal(t, "Profile Name", res.Order.CustomerName)
}

func TestCheckoutRequiresCustomer(t *testing.T) {
	f := newFixture(t, true, nil)
	_, err := f.checkout.Checkout(context.Background(), uuid.Nil, Input{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized), "got %v", err)
}

func TestDerivedKeyTracksVersion(t *testing.T) {
	t.Parallel()
	at := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	c := &models.Cart{CustomerID: uuid.New(), Version: 3, UpdatedAt: at}
	key := DerivedKey(c)
	require.Equal(t, key, DerivedKey(&models.Cart{CustomerID: c.CustomerID, Version: 3, UpdatedAt: at}))
	require.NotEqual(t, key, DerivedKey(&models.Cart{CustomerID: c.CustomerID, Version: 4, UpdatedAt: at}))
	require.NotEqual(t, ClientKey(uuid.New(), "k"), ClientKey(uuid.New(), "k"))
}

func TestCheckoutStampsLinesWithCheckoutClock(t *testing.T) {
	placed := time.Date(2026, 9, 4, 19, 15, 0, 0, time.UTC)
	f := newFixture(t, true, nil, func(o *Options) {
		o.Now = func() time.Time { return placed }
	})
	f.seedAddress(t, "Ravi", true)
	require.NoError(t, f.conn.Create(&models.Cart{
		CustomerID: f.cid,
		Items:      []models.CartItem{{SKU: "DAL", Name: types.NewLocalizedText("Dal", ""), Price: 12000, Quantity: 1}},
		TotalPrice: 12000,
		Status:     enums.CartStatusPending,
		Version:    1,
		UpdatedAt:  placed.Add(-time.Hour),
	}).Error)

	res, err := f.checkout.Checkout(context.Background(), f.cid, Input{})
	require.NoError(t, err)
	require.True(t, res.Order.PlacedAt.Equal(placed))
	require.Len(t, res.Order.LineItems, 1)
	require.True(t, res.Order.LineItems[0].AddedAt.Equal(placed), "line without add time takes the checkout time")
}
