package address

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/kirana-backend/pkg/db/models"
)

// Repository persists customer delivery addresses.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// ListByCustomer returns the default address first, then newest first.
func (r *Repository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Address, error) {
	var rows []models.Address
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("is_default DESC").
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) Find(ctx context.Context, customerID, id uuid.UUID) (*models.Address, error) {
	var address models.Address
	err := r.db.WithContext(ctx).
		Where("id = ? AND customer_id = ?", id, customerID).
		First(&address).Error
	if err != nil {
		return nil, err
	}
	return &address, nil
}

func (r *Repository) Count(ctx context.Context, customerID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Address{}).Where("customer_id = ?", customerID).Count(&n).Error
	return n, err
}

func (r *Repository) Create(ctx context.Context, address *models.Address) error {
	return r.db.WithContext(ctx).Create(address).Error
}

// Update writes the editable fields; is_default is managed by SetDefault.
func (r *Repository) Update(ctx context.Context, address *models.Address) error {
	return r.db.WithContext(ctx).
		Model(&models.Address{}).
		Where("id = ? AND customer_id = ?", address.ID, address.CustomerID).
		Updates(map[string]any{
			"name":       address.Name,
			"house":      address.House,
			"street":     address.Street,
			"landmark":   address.Landmark,
			"updated_at": address.UpdatedAt,
		}).Error
}

func (r *Repository) Delete(ctx context.Context, customerID, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND customer_id = ?", id, customerID).
		Delete(&models.Address{})
	return res.RowsAffected > 0, res.Error
}

// SetDefault clears the current default before flagging id, keeping at most
// one default per customer.
func (r *Repository) SetDefault(ctx context.Context, customerID, id uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Model(&models.Address{}).
		Where("customer_id = ? AND is_default = ?", customerID, true).
		Update("is_default", false).Error
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Model(&models.Address{}).
		Where("id = ? AND customer_id = ?", id, customerID).
		Update("is_default", true).Error
}

// Newest returns the most recently created address, if any.
func (r *Repository) Newest(ctx context.Context, customerID uuid.UUID) (*models.Address, error) {
	var address models.Address
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		First(&address).Error
	if err != nil {
		return nil, err
	}
	return &address, nil
}
