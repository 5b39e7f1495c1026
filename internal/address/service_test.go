package address

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/kirana-backend/pkg/db"
	"github.com/angelmondragon/kirana-backend/pkg/db/dbtest"
	"github.com/angelmondragon/kirana-backend/pkg/db/models"
	"github.com/angelmondragon/kirana-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kirana-backend/pkg/errors"
	"github.com/angelmondragon/kirana-backend/pkg/outbox"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	svc, err := NewService(NewRepository(conn), db.FromGorm(conn), outbox.NewService(outbox.NewRepository(conn), nil))
	require.NoError(t, err)
	return svc, conn
}

func input(name string) AddressInput {
	return AddressInput{Name: name, House: "4", Street: "Gandhi Nagar"}
}

func defaults(t *testing.T, conn *gorm.DB, customerID uuid.UUID) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(&models.Address{}).Where("customer_id = ? AND is_default = ?", customerID, true).Count(&n).Error)
	return n
}

func TestFirstAddressBecomesDefault(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	cid := uuid.New()

	first, err := svc.Create(ctx, cid, input("Home"))
	require.NoError(t, err)
	require.True(t, first.IsDefault)

	second, err := svc.Create(ctx, cid, input("Office"))
	require.NoError(t, err)
	require.False(t, second.IsDefault)
	require.Equal(t, int64(1), defaults(t, conn, cid))

	var events int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventAddressChanged).Count(&events).Error)
	require.Equal(t, int64(2), events)
}

func TestSetDefaultKeepsSingleDefault(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	cid := uuid.New()

	home, err := svc.Create(ctx, cid, input("Home"))
	require.NoError(t, err)
	office, err := svc.Create(ctx, cid, input("Office"))
	require.NoError(t, err)

	_, err = svc.SetDefault(ctx, cid, office.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), defaults(t, conn, cid))

	list, err := svc.List(ctx, cid)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, office.ID, list[0].ID)
	require.False(t, list[1].IsDefault)
	require.Equal(t, home.ID, list[1].ID)
}

func TestDeleteDefaultPromotesNewest(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	cid := uuid.New()

	home, err := svc.Create(ctx, cid, input("Home"))
	require.NoError(t, err)
	office, err := svc.Create(ctx, cid, input("Office"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, cid, home.ID))
	list, err := svc.List(ctx, cid)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, office.ID, list[0].ID)
	require.True(t, list[0].IsDefault)

	require.NoError(t, svc.Delete(ctx, cid, office.ID))
	require.Zero(t, defaults(t, conn, cid))
}

func TestUpdateAndOwnership(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	cid := uuid.New()

	home, err := svc.Create(ctx, cid, input("Home"))
	require.NoError(t, err)

	landmark := "  near temple "
	updated, err := svc.Update(ctx, cid, home.ID, AddressInput{Name: "Home", House: "5", Street: "Gandhi Nagar", Landmark: &landmark})
	require.NoError(t, err)
	require.Equal(t, "5", updated.House)
	require.NotNil(t, updated.Landmark)
	require.Equal(t, "near temple", *updated.Landmark)

	_, err = svc.Update(ctx, uuid.New(), home.ID, input("Other"))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)

	_, err = svc.Create(ctx, cid, AddressInput{Name: " ", House: "1", Street: "x"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)

	_, err = svc.List(ctx, uuid.Nil)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized), "got %v", err)
}
