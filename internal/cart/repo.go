package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/kirana-backend/pkg/db/models"
)

var writableColumns = []string{"items", "total_price", "status", "reminder_sent", "version", "updated_at"}

// Repository persists carts as a single row per customer.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) FindByCustomer(ctx context.Context, customerID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	if err := r.db.WithContext(ctx).First(&cart, "customer_id = ?", customerID).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// Insert creates the cart row. A concurrent creator surfaces as a unique
// violation on the primary key.
func (r *Repository) Insert(ctx context.Context, cart *models.Cart) error {
	return r.db.WithContext(ctx).Create(cart).Error
}

// UpdateVersioned writes cart if the stored version still equals
// expectedVersion. It reports false when another writer got there first.
func (r *Repository) UpdateVersioned(ctx context.Context, cart *models.Cart, expectedVersion int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("customer_id = ? AND version = ?", cart.CustomerID, expectedVersion).
		Select(writableColumns).
		Updates(cart)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *Repository) DeleteVersioned(ctx context.Context, customerID uuid.UUID, expectedVersion int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("customer_id = ? AND version = ?", customerID, expectedVersion).
		Delete(&models.Cart{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *Repository) Delete(ctx context.Context, customerID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Where("customer_id = ?", customerID).Delete(&models.Cart{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListIdleUnreminded returns non-empty carts untouched since idleBefore that
// have not been reminded yet, oldest first. Empty rows only exist when
// delete-on-empty decrement is off and are never reminded.
func (r *Repository) ListIdleUnreminded(ctx context.Context, idleBefore time.Time, limit int) ([]models.Cart, error) {
	var rows []models.Cart
	if err := r.db.WithContext(ctx).
		Where("reminder_sent = ? AND updated_at < ? AND total_price > 0", false, idleBefore).
		Order("updated_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkReminded sets reminder_sent without bumping the version, so a customer
// editing the cart concurrently never sees a conflict from the job.
func (r *Repository) MarkReminded(ctx context.Context, customerID uuid.UUID, version int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("customer_id = ? AND version = ? AND reminder_sent = ?", customerID, version, false).
		Update("reminder_sent", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListSupersededByOrders finds carts last written before the newest order of
// the same customer, i.e. carts a non-atomic checkout failed to clear.
func (r *Repository) ListSupersededByOrders(ctx context.Context, limit int) ([]models.Cart, error) {
	var rows []models.Cart
	if err := r.db.WithContext(ctx).
		Where("EXISTS (SELECT 1 FROM orders o WHERE o.customer_id = carts.customer_id AND o.placed_at >= carts.updated_at AND o.cart_version >= carts.version)").
		Order("updated_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
