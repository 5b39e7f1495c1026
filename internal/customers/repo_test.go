package customers

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/kirana-backend/pkg/db/dbtest"
	"github.com/angelmondragon/kirana-backend/pkg/enums"
)

func TestFindOrCreateByPhone(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()

	first, created, err := repo.FindOrCreateByPhone(ctx, "+919876543210", enums.LocaleHindi)
	require.NoError(t, err)
	require.True(t, created)
	require.NotEqual(t, uuid.Nil, first.ID)

	again, created, err := repo.FindOrCreateByPhone(ctx, "+919876543210", enums.LocaleEnglish)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, again.ID)
	require.Equal(t, enums.LocaleHindi, again.PreferredLocale)
}

func TestUpdateProfileFields(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	c, _, err := repo.FindOrCreateByPhone(ctx, "+919000000001", enums.LocaleEnglish)
	require.NoError(t, err)

	ok, err := repo.UpdateLocale(ctx, c.ID, enums.LocaleHindi)
	require.NoError(t, err)
	require.True(t, ok)

	name := "Meera"
	ok, err = repo.UpdateName(ctx, c.ID, &name)
	require.NoError(t, err)
	require.True(t, ok)

	at := time.Date(2026, 9, 2, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpdateLastLogin(ctx, c.ID, at))

	got, err := repo.FindByID(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, enums.LocaleHindi, got.PreferredLocale)
	require.Equal(t, "Meera", *got.Name)
	require.NotNil(t, got.LastLoginAt)
	require.True(t, got.LastLoginAt.Equal(at))

	ok, err = repo.UpdateLocale(ctx, uuid.New(), enums.LocaleHindi)
	require.NoError(t, err)
	require.False(t, ok)
}
