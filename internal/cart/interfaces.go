package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/kirana-backend/pkg/db/models"
)

// CartRepository is the persistence surface of the cart store. Writes are
// conditioned on the version that was read.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	FindByCustomer(ctx context.Context, customerID uuid.UUID) (*models.Cart, error)
	Insert(ctx context.Context, cart *models.Cart) error
	UpdateVersioned(ctx context.Context, cart *models.Cart, expectedVersion int64) (bool, error)
	DeleteVersioned(ctx context.Context, customerID uuid.UUID, expectedVersion int64) (bool, error)
	Delete(ctx context.Context, customerID uuid.UUID) (bool, error)
	ListIdleUnreminded(ctx context.Context, idleBefore time.Time, limit int) ([]models.Cart, error)
	MarkReminded(ctx context.Context, customerID uuid.UUID, version int64) (bool, error)
	ListSupersededByOrders(ctx context.Context, limit int) ([]models.Cart, error)
}
