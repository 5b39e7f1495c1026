package checkout

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/kirana-backend/internal/cart"
	"github.com/angelmondragon/kirana-backend/internal/catalog"
	"github.com/angelmondragon/kirana-backend/internal/checkout/helpers"
	"github.com/angelmondragon/kirana-backend/internal/orders"
	pkgcheckout "github.com/angelmondragon/kirana-backend/pkg/checkout"
	"github.com/angelmondragon/kirana-backend/pkg/config"
	"github.com/angelmondragon/kirana-backend/pkg/db"
	"github.com/angelmondragon/kirana-backend/pkg/db/models"
	"github.com/angelmondragon/kirana-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kirana-backend/pkg/errors"
	"github.com/angelmondragon/kirana-backend/pkg/logger"
	"github.com/angelmondragon/kirana-backend/pkg/metrics"
	"github.com/angelmondragon/kirana-backend/pkg/outbox"
	"github.com/angelmondragon/kirana-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/kirana-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type rulesSource interface {
	GetCartRules(ctx context.Context) (catalog.CartRules, error)
}

// Service turns a customer's cart into an order.
type Service interface {
	Checkout(ctx context.Context, customerID uuid.UUID, input Input) (*Result, error)
}

// Input carries the optional checkout form fields.
type Input struct {
	AddressID      *uuid.UUID
	CustomerName   string
	IdempotencyKey string
}

// Result is the outcome of a checkout. CartCleared is false on replays and
// when a split checkout left the cart for reconciliation.
type Result struct {
	Order       *models.Order
	Totals      pkgcheckout.Totals
	Trail       []State
	Replayed    bool
	CartCleared bool
}

// Options carries the optional collaborators of the service.
type Options struct {
	Metrics *metrics.CartMetrics
	Logger  *logger.Logger
	Now     func() time.Time
}

type service struct {
	tx        txRunner
	repo      Repository
	carts     cart.CartRepository
	orders    orders.Repository
	rules     rulesSource
	outbox    outbox.Emitter
	cfg       config.CheckoutConfig
	cartEvent bool
	metrics   *metrics.CartMetrics
	logg      *logger.Logger
	now       func() time.Time
}

var errCartChanged = errors.New("cart changed during checkout")

// NewService builds the checkout service.
func NewService(
	tx txRunner,
	repo Repository,
	carts cart.CartRepository,
	ordersRepo orders.Repository,
	rules rulesSource,
	publisher outbox.Emitter,
	cfg config.CheckoutConfig,
	eventing config.EventingConfig,
	opts Options,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("checkout repository required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if rules == nil {
		return nil, fmt.Errorf("cart rules source required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	s := &service{
		tx:        tx,
		repo:      repo,
		carts:     carts,
		orders:    ordersRepo,
		rules:     rules,
		outbox:    publisher,
		cfg:       cfg,
		cartEvent: eventing.PublishCartEvents,
		metrics:   opts.Metrics,
		logg:      opts.Logger,
		now:       opts.Now,
	}
	if s.logg == nil {
		s.logg = logger.Nop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

func (s *service) Checkout(ctx context.Context, customerID uuid.UUID, input Input) (*Result, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer is not authenticated")
	}
	started := s.now()
	ctx = s.logg.WithCustomerID(ctx, customerID.String())
	m := newMachine(s.logg)

	res, err := s.run(ctx, m, customerID, input)
	if err != nil {
		m.fail(ctx, err)
		s.metrics.ObserveCheckout("failed", string(m.failed), s.now().Sub(started))
		return nil, err
	}
	res.Trail = m.Trail()

	outcome := "placed"
	switch {
	case res.Replayed:
		outcome = "replayed"
	case !res.CartCleared:
		outcome = "placed_uncleared"
	}
	s.metrics.ObserveCheckout(outcome, "none", s.now().Sub(started))
	return res, nil
}

func (s *service) run(ctx context.Context, m *machine, customerID uuid.UUID, input Input) (*Result, error) {
	clientKey := strings.TrimSpace(input.IdempotencyKey)
	if clientKey != "" {
		existing, err := s.findExisting(ctx, ClientKey(customerID, clientKey))
		if err != nil {
			return nil, err
		}
		if existing != nil {
			if _, err := m.advance(ctx, StateDone); err != nil {
				return nil, err
			}
			return replayOf(existing), nil
		}
	}

	ctx, err := m.advance(ctx, StateValidatingCart)
	if err != nil {
		return nil, err
	}
	current, err := s.carts.FindByCustomer(ctx, customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodePrecondition, "cart is empty")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if err := pkgcheckout.ValidateItems(current.Items); err != nil {
		return nil, err
	}

	key := DerivedKey(current)
	if clientKey != "" {
		key = ClientKey(customerID, clientKey)
	} else {
		existing, err := s.findExisting(ctx, key)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			if _, err := m.advance(ctx, StateDone); err != nil {
				return nil, err
			}
			return replayOf(existing), nil
		}
	}

	address, err := s.resolveAddress(ctx, customerID, input.AddressID)
	if err != nil {
		return nil, err
	}
	name, err := s.resolveName(ctx, customerID, input.CustomerName, address)
	if err != nil {
		return nil, err
	}

	ctx, err = m.advance(ctx, StateComputingTotal)
	if err != nil {
		return nil, err
	}
	rules, err := s.rules.GetCartRules(ctx)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart rules")
	}
	totals := pkgcheckout.ComputeTotals(pkgcheckout.Subtotal(current.Items), rules.DeliveryCharge, rules.FreeDeliveryThreshold)

	placedAt := s.now().UTC()
	order := &models.Order{
		CustomerID:     customerID,
		CustomerName:   name,
		Status:         enums.OrderStatusProcessing,
		StatusLabels:   types.LocalizedText(enums.OrderStatusProcessing.Labels()),
		Address:        address.Snapshot(),
		ImageURL:       helpers.CoverImage(current.Items),
		Subtotal:       totals.Subtotal,
		DeliveryCharge: totals.DeliveryCharge,
		TotalPrice:     totals.Total,
		IdempotencyKey: key,
		CartVersion:    current.Version,
		LineItems:      helpers.BuildLineItems(current.Items, placedAt),
		PlacedAt:       placedAt,
	}

	ctx, err = m.advance(ctx, StatePersistingOrder)
	if err != nil {
		return nil, err
	}
	if s.cfg.Atomic {
		return s.placeAtomic(ctx, m, current, order, totals)
	}
	return s.placeSplit(ctx, m, current, order, totals)
}

// placeAtomic inserts the order and deletes the cart in one transaction. A
// cart that moved past the version that was read rolls everything back.
func (s *service) placeAtomic(ctx context.Context, m *machine, current *models.Cart, order *models.Order, totals pkgcheckout.Totals) (*Result, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}
		if err := s.emitOrderPlaced(ctx, tx, order); err != nil {
			return err
		}
		clearCtx, err := m.advance(ctx, StateClearingCart)
		if err != nil {
			return err
		}
		ok, err := s.carts.WithTx(tx).DeleteVersioned(clearCtx, current.CustomerID, current.Version)
		if err != nil {
			return err
		}
		if !ok {
			return errCartChanged
		}
		return s.emitCartDeleted(clearCtx, tx, current)
	})
	if err != nil {
		if replay, ok := s.replayDuplicate(ctx, m, order.IdempotencyKey, err); ok {
			return replay, nil
		}
		if errors.Is(err, errCartChanged) {
			s.metrics.IncConflict("checkout")
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "cart changed during checkout, please review it and retry").
				WithDetails(map[string]any{"cart_version": current.Version})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order")
	}
	if _, err := m.advance(ctx, StateDone); err != nil {
		return nil, err
	}
	return &Result{Order: order, Totals: totals, CartCleared: true}, nil
}

// placeSplit commits the order first and clears the cart in a second
// transaction. A failed clear leaves the order standing and queues a
// reconcile event.
func (s *service) placeSplit(ctx context.Context, m *machine, current *models.Cart, order *models.Order, totals pkgcheckout.Totals) (*Result, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}
		return s.emitOrderPlaced(ctx, tx, order)
	})
	if err != nil {
		if replay, ok := s.replayDuplicate(ctx, m, order.IdempotencyKey, err); ok {
			return replay, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order")
	}

	ctx, err = m.advance(ctx, StateClearingCart)
	if err != nil {
		return nil, err
	}
	cleared, clearErr := s.clearCart(ctx, current)
	if !cleared {
		reason := "cart_changed"
		if clearErr != nil {
			reason = "clear_failed"
		}
		warnCtx := s.logg.WithFields(ctx, map[string]any{"order_id": order.ID.String(), "reason": reason})
		if clearErr != nil {
			warnCtx = s.logg.WithField(warnCtx, "error", clearErr.Error())
		}
		s.logg.Warn(warnCtx, "order placed but cart was not cleared")
		if err := s.emitReconcile(ctx, current, order, reason); err != nil {
			s.logg.Error(warnCtx, "queue cart reconcile event", err)
		}
	}

	if _, err := m.advance(ctx, StateDone); err != nil {
		return nil, err
	}
	return &Result{Order: order, Totals: totals, CartCleared: cleared}, nil
}

func (s *service) clearCart(ctx context.Context, current *models.Cart) (bool, error) {
	cleared := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := s.carts.WithTx(tx).DeleteVersioned(ctx, current.CustomerID, current.Version)
		if err != nil || !ok {
			return err
		}
		cleared = true
		return s.emitCartDeleted(ctx, tx, current)
	})
	if err != nil {
		return false, err
	}
	return cleared, nil
}

// replayDuplicate handles a concurrent checkout that won the insert race for
// the same key.
func (s *service) replayDuplicate(ctx context.Context, m *machine, key string, err error) (*Result, bool) {
	if !db.IsUniqueViolation(err, "") {
		return nil, false
	}
	existing, findErr := s.findExisting(ctx, key)
	if findErr != nil || existing == nil {
		return nil, false
	}
	if _, err := m.advance(ctx, StateDone); err != nil {
		return nil, false
	}
	return replayOf(existing), true
}

func (s *service) findExisting(ctx context.Context, key string) (*models.Order, error) {
	existing, err := s.orders.FindByIdempotencyKey(ctx, key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup order by idempotency key")
	}
	return existing, nil
}

func (s *service) resolveAddress(ctx context.Context, customerID uuid.UUID, addressID *uuid.UUID) (*models.Address, error) {
	var (
		address *models.Address
		err     error
	)
	if addressID != nil && *addressID != uuid.Nil {
		address, err = s.repo.FindAddress(ctx, customerID, *addressID)
	} else {
		address, err = s.repo.FindDefaultAddress(ctx, customerID)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodePrecondition, "a delivery address is required")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load address")
	}
	return address, nil
}

// resolveName prefers the submitted name, then the profile, then the
// address, then the configured default.
func (s *service) resolveName(ctx context.Context, customerID uuid.UUID, submitted string, address *models.Address) (string, error) {
	if name := strings.TrimSpace(submitted); name != "" {
		return name, nil
	}
	customer, err := s.repo.FindCustomer(ctx, customerID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
	}
	if customer != nil && customer.Name != nil {
		if name := strings.TrimSpace(*customer.Name); name != "" {
			return name, nil
		}
	}
	if address != nil {
		if name := strings.TrimSpace(address.Name); name != "" {
			return name, nil
		}
	}
	if name := strings.TrimSpace(s.cfg.DefaultCustomerName); name != "" {
		return name, nil
	}
	return "", pkgerrors.New(pkgerrors.CodePrecondition, "customer name is required")
}

func (s *service) emitOrderPlaced(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	count := 0
	for _, line := range order.LineItems {
		count += line.Quantity
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderPlaced,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{CustomerID: order.CustomerID, Role: string(enums.RoleCustomer)},
		Data: payloads.OrderPlacedEvent{
			OrderID:        order.ID,
			CustomerID:     order.CustomerID,
			Subtotal:       order.Subtotal,
			DeliveryCharge: order.DeliveryCharge,
			TotalPrice:     order.TotalPrice,
			ItemCount:      count,
			IdempotencyKey: order.IdempotencyKey,
			PlacedAt:       order.PlacedAt,
		},
	})
}

func (s *service) emitCartDeleted(ctx context.Context, tx *gorm.DB, c *models.Cart) error {
	if !s.cartEvent {
		return nil
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventCartDeleted,
		AggregateType: enums.AggregateCart,
		AggregateID:   c.CustomerID,
		Actor:         &outbox.ActorRef{CustomerID: c.CustomerID, Role: string(enums.RoleCustomer)},
		Data: payloads.CartChangedEvent{
			CustomerID: c.CustomerID,
			Version:    c.Version,
			ItemCount:  helpers.ItemCount(c.Items),
			TotalPrice: c.TotalPrice,
			Deleted:    true,
			Reason:     "checked_out",
		},
	})
}

func (s *service) emitReconcile(ctx context.Context, c *models.Cart, order *models.Order, reason string) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCartReconcileRequired,
			AggregateType: enums.AggregateCart,
			AggregateID:   c.CustomerID,
			Data: payloads.CartReconcileRequiredEvent{
				CustomerID:  c.CustomerID,
				OrderID:     order.ID,
				CartVersion: c.Version,
				Reason:      reason,
			},
		})
	})
}

func replayOf(order *models.Order) *Result {
	return &Result{
		Order: order,
		Totals: pkgcheckout.Totals{
			Subtotal:       order.Subtotal,
			DeliveryCharge: order.DeliveryCharge,
			Total:          order.TotalPrice,
		},
		Replayed: true,
	}
}

// ClientKey namespaces a client supplied Idempotency-Key by customer.
func ClientKey(customerID uuid.UUID, key string) string {
	return "c:" + digest(customerID.String()+":"+strings.TrimSpace(key))
}

// DerivedKey identifies one observed state of a cart. Any mutation bumps the
// version, so a changed cart yields a new key.
func DerivedKey(c *models.Cart) string {
	return "cart:" + digest(fmt.Sprintf("%s:%d:%d", c.CustomerID, c.Version, c.UpdatedAt.UTC().UnixNano()))
}

func digest(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
