package cart

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/kirana-backend/pkg/config"
	"github.com/angelmondragon/kirana-backend/pkg/db"
	"github.com/angelmondragon/kirana-backend/pkg/db/models"
	"github.com/angelmondragon/kirana-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kirana-backend/pkg/errors"
	"github.com/angelmondragon/kirana-backend/pkg/logger"
	"github.com/angelmondragon/kirana-backend/pkg/metrics"
	"github.com/angelmondragon/kirana-backend/pkg/outbox"
	"github.com/angelmondragon/kirana-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the single writer of customer carts.
type Service interface {
	AddItem(ctx context.Context, customerID uuid.UUID, product models.Product) (*Cart, error)
	IncrementItem(ctx context.Context, customerID uuid.UUID, sku string) (*Cart, error)
	DecrementItem(ctx context.Context, customerID uuid.UUID, sku string) (*Cart, error)
	RemoveItem(ctx context.Context, customerID uuid.UUID, sku string) (*Cart, error)
	GetCart(ctx context.Context, customerID uuid.UUID) (*Cart, error)
	ClearCart(ctx context.Context, customerID uuid.UUID) error
}

// Options carries the optional collaborators of the service.
type Options struct {
	Outbox  outbox.Emitter
	Metrics *metrics.CartMetrics
	Logger  *logger.Logger
	Now     func() time.Time
	Sleep   func(time.Duration)
}

type service struct {
	repo    CartRepository
	tx      txRunner
	cfg     config.CartConfig
	emit    bool
	outbox  outbox.Emitter
	metrics *metrics.CartMetrics
	logg    *logger.Logger
	now     func() time.Time
	sleep   func(time.Duration)
}

// errVersionConflict marks an attempt that lost a race and should be retried.
var errVersionConflict = errors.New("cart version conflict")

type writeKind int

const (
	writeNone writeKind = iota
	writeSave
	writeDelete
)

// mutation is the outcome of applying an operation to the loaded cart.
type mutation struct {
	kind   writeKind
	reason string
}

// applyFunc mutates cart in place. cart is nil when the customer has none.
type applyFunc func(cart *models.Cart, now time.Time) (*models.Cart, mutation, error)

func NewService(repo CartRepository, tx txRunner, cfg config.CartConfig, eventing config.EventingConfig, opts Options) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if eventing.PublishCartEvents && opts.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required when cart events are enabled")
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("cart max retries must be non-negative")
	}
	s := &service{
		repo:    repo,
		tx:      tx,
		cfg:     cfg,
		emit:    eventing.PublishCartEvents,
		outbox:  opts.Outbox,
		metrics: opts.Metrics,
		logg:    opts.Logger,
		now:     opts.Now,
		sleep:   opts.Sleep,
	}
	if s.logg == nil {
		s.logg = logger.Nop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.sleep == nil {
		s.sleep = time.Sleep
	}
	return s, nil
}

func (s *service) AddItem(ctx context.Context, customerID uuid.UUID, product models.Product) (*Cart, error) {
	if err := requireCustomer(customerID); err != nil {
		return nil, err
	}
	sku := strings.TrimSpace(product.SKU)
	if sku == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product sku is required")
	}
	if product.Price < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product price must be non-negative")
	}
	product.SKU = sku

	return s.mutate(ctx, customerID, "add_item", func(c *models.Cart, now time.Time) (*models.Cart, mutation, error) {
		if c == nil {
			c = &models.Cart{
				CustomerID: customerID,
				Items:      []models.CartItem{},
				Status:     enums.CartStatusPending,
				CreatedAt:  now,
			}
		}
		if i := indexOf(c.Items, sku); i >= 0 {
			if s.cfg.MaxQuantity > 0 && c.Items[i].Quantity >= s.cfg.MaxQuantity {
				return nil, mutation{}, quantityLimitErr(s.cfg.MaxQuantity)
			}
			c.Items[i].Quantity++
			c.Items[i].UpdatedAt = now
		} else {
			item := snapshotOf(product)
			item.CreatedAt = now
			item.UpdatedAt = now
			c.Items = append(c.Items, item)
		}
		return c, mutation{kind: writeSave, reason: "item_added"}, nil
	})
}

func (s *service) IncrementItem(ctx context.Context, customerID uuid.UUID, sku string) (*Cart, error) {
	if err := requireCustomer(customerID); err != nil {
		return nil, err
	}
	sku = strings.TrimSpace(sku)
	return s.mutate(ctx, customerID, "increment_item", func(c *models.Cart, now time.Time) (*models.Cart, mutation, error) {
		i, err := locate(c, sku)
		if err != nil {
			return nil, mutation{}, err
		}
		if s.cfg.MaxQuantity > 0 && c.Items[i].Quantity >= s.cfg.MaxQuantity {
			return nil, mutation{}, quantityLimitErr(s.cfg.MaxQuantity)
		}
		c.Items[i].Quantity++
		c.Items[i].UpdatedAt = now
		return c, mutation{kind: writeSave, reason: "item_incremented"}, nil
	})
}

// DecrementItem lowers the quantity by one. A line reaching zero is removed;
// quantity never goes below one while the line exists.
func (s *service) DecrementItem(ctx context.Context, customerID uuid.UUID, sku string) (*Cart, error) {
	if err := requireCustomer(customerID); err != nil {
		return nil, err
	}
	sku = strings.TrimSpace(sku)
	return s.mutate(ctx, customerID, "decrement_item", func(c *models.Cart, now time.Time) (*models.Cart, mutation, error) {
		i, err := locate(c, sku)
		if err != nil {
			return nil, mutation{}, err
		}
		if c.Items[i].Quantity <= 1 {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			if len(c.Items) == 0 && s.cfg.DeleteOnEmptyDecrement {
				return c, mutation{kind: writeDelete, reason: "emptied_by_decrement"}, nil
			}
			return c, mutation{kind: writeSave, reason: "item_removed"}, nil
		}
		c.Items[i].Quantity--
		c.Items[i].UpdatedAt = now
		return c, mutation{kind: writeSave, reason: "item_decremented"}, nil
	})
}

func (s *service) RemoveItem(ctx context.Context, customerID uuid.UUID, sku string) (*Cart, error) {
	if err := requireCustomer(customerID); err != nil {
		return nil, err
	}
	sku = strings.TrimSpace(sku)
	return s.mutate(ctx, customerID, "remove_item", func(c *models.Cart, now time.Time) (*models.Cart, mutation, error) {
		i, err := locate(c, sku)
		if err != nil {
			return nil, mutation{}, err
		}
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
		if len(c.Items) == 0 {
			return c, mutation{kind: writeDelete, reason: "emptied_by_remove"}, nil
		}
		return c, mutation{kind: writeSave, reason: "item_removed"}, nil
	})
}

// GetCart never reports a missing cart as an error; it returns the empty
// sentinel instead.
func (s *service) GetCart(ctx context.Context, customerID uuid.UUID) (*Cart, error) {
	if err := requireCustomer(customerID); err != nil {
		return nil, err
	}
	m, err := s.repo.FindByCustomer(ctx, customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return emptyCart(customerID), nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return fromModel(m), nil
}

// ClearCart deletes the cart unconditionally. Clearing an absent cart is a
// no-op.
func (s *service) ClearCart(ctx context.Context, customerID uuid.UUID) error {
	if err := requireCustomer(customerID); err != nil {
		return err
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		existing, err := s.repo.WithTx(tx).FindByCustomer(ctx, customerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if _, err := s.repo.WithTx(tx).Delete(ctx, customerID); err != nil {
			return err
		}
		return s.emitChange(ctx, tx, existing, true, "cleared")
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

// mutate runs read, apply and a version-conditioned write in one
// transaction, retrying when another writer changed the cart in between.
func (s *service) mutate(ctx context.Context, customerID uuid.UUID, op string, apply applyFunc) (*Cart, error) {
	ctx = s.logg.WithFields(ctx, map[string]any{"customer_id": customerID.String(), "cart_op": op})

	attempts := s.cfg.MaxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			s.sleep(s.backoff(attempt))
		}
		result, err := s.attempt(ctx, customerID, apply)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, errVersionConflict) && !db.IsTransientConflict(err) {
			if typed := pkgerrors.As(err); typed != nil {
				return nil, typed
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cart write failed")
		}
		s.metrics.IncConflict(op)
		s.logg.Debug(s.logg.WithField(ctx, "attempt", attempt+1), "cart version conflict, retrying")
	}

	s.metrics.IncRetriesExhausted()
	s.logg.Warn(ctx, "cart write gave up after repeated version conflicts")
	return nil, pkgerrors.New(pkgerrors.CodeConflict, "cart was modified concurrently, please retry").
		WithDetails(map[string]any{"attempts": attempts})
}

func (s *service) attempt(ctx context.Context, customerID uuid.UUID, apply applyFunc) (*Cart, error) {
	var result *Cart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		current, err := repo.FindByCustomer(ctx, customerID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			current = nil
		}
		exists := current != nil
		var readVersion int64
		if exists {
			readVersion = current.Version
		}

		now := s.now().UTC()
		next, m, err := apply(current, now)
		if err != nil {
			return err
		}

		switch m.kind {
		case writeNone:
			result = fromModel(next)
			return nil
		case writeDelete:
			ok, err := repo.DeleteVersioned(ctx, customerID, readVersion)
			if err != nil {
				return err
			}
			if !ok {
				return errVersionConflict
			}
			result = emptyCart(customerID)
			return s.emitChange(ctx, tx, next, true, m.reason)
		}

		recomputeTotal(next)
		next.UpdatedAt = now
		if next.Status == "" {
			next.Status = enums.CartStatusPending
		}
		next.ReminderSent = false

		if !exists {
			next.Version = 1
			if err := repo.Insert(ctx, next); err != nil {
				if db.IsUniqueViolation(err, "") {
					return errVersionConflict
				}
				return err
			}
		} else {
			next.Version = readVersion + 1
			ok, err := repo.UpdateVersioned(ctx, next, readVersion)
			if err != nil {
				return err
			}
			if !ok {
				s.logg.Debug(s.logg.WithCart(ctx, customerID.String(), readVersion), "cart moved past read version")
				return errVersionConflict
			}
		}
		result = fromModel(next)
		return s.emitChange(ctx, tx, next, false, m.reason)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) emitChange(ctx context.Context, tx *gorm.DB, c *models.Cart, deleted bool, reason string) error {
	if !s.emit || c == nil {
		return nil
	}
	eventType := enums.EventCartUpdated
	if deleted {
		eventType = enums.EventCartDeleted
	}
	itemCount := 0
	for _, item := range c.Items {
		itemCount += item.Quantity
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateCart,
		AggregateID:   c.CustomerID,
		Actor:         &outbox.ActorRef{CustomerID: c.CustomerID, Role: string(enums.RoleCustomer)},
		Data: payloads.CartChangedEvent{
			CustomerID: c.CustomerID,
			Version:    c.Version,
			ItemCount:  itemCount,
			TotalPrice: c.TotalPrice,
			Deleted:    deleted,
			Reason:     reason,
		},
	})
}

// backoff grows linearly with a random jitter of up to one base step.
func (s *service) backoff(attempt int) time.Duration {
	base := s.cfg.RetryBackoff
	if base <= 0 {
		return 0
	}
	return time.Duration(attempt)*base + time.Duration(rand.Int64N(int64(base)))
}

func locate(c *models.Cart, sku string) (int, error) {
	if c == nil {
		return -1, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}
	if sku == "" {
		return -1, pkgerrors.New(pkgerrors.CodeValidation, "sku is required")
	}
	i := indexOf(c.Items, sku)
	if i < 0 {
		return -1, pkgerrors.New(pkgerrors.CodeNotFound, "item not in cart").
			WithDetails(map[string]any{"sku": sku})
	}
	return i, nil
}

func requireCustomer(customerID uuid.UUID) error {
	if customerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "customer is not authenticated")
	}
	return nil
}

func quantityLimitErr(max int) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "item quantity limit reached").
		WithDetails(map[string]any{"max_quantity": max})
}
