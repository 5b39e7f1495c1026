package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/kirana-backend/pkg/db/models"
	"github.com/angelmondragon/kirana-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the order and its line items.
func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	var order models.Order
	err := r.withLines(r.db.WithContext(ctx)).
		Where("idempotency_key = ?", key).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindForCustomer scopes the lookup to the owner so ids cannot be enumerated.
func (r *repository) FindForCustomer(ctx context.Context, customerID, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.withLines(r.db.WithContext(ctx)).
		Where("id = ? AND customer_id = ?", orderID, customerID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListByCustomer returns orders newest first, limit rows after cursor.
func (r *repository) ListByCustomer(ctx context.Context, customerID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Order, error) {
	tx := r.withLines(r.db.WithContext(ctx)).Where("customer_id = ?", customerID)
	if cursor != nil {
		tx = tx.Where("(placed_at < ?) OR (placed_at = ? AND id < ?)", cursor.At, cursor.At, cursor.ID)
	}
	var rows []models.Order
	if err := tx.Order("placed_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) LatestPlacedAt(ctx context.Context, customerID uuid.UUID) (*time.Time, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Select("placed_at").
		Where("customer_id = ?", customerID).
		Order("placed_at DESC").
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order.PlacedAt, nil
}

func (r *repository) withLines(tx *gorm.DB) *gorm.DB {
	return tx.Preload("LineItems", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	})
}
