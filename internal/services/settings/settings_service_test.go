package settings

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Windi-Fikriyansyah/inspection_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/db/dbtest"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/models"
)

var admin = models.Principal{ID: uuid.New(), Role: models.RoleAdmin}

func ptr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestActiveCreatesDefaultsOnce(t *testing.T) {
	svc := NewSettingsService(dbtest.Open(t))
	ctx := context.Background()

	first, err := svc.Active(ctx)
	require.NoError(t, err)
	second, err := svc.Active(ctx)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, first.Version)
	assert.True(t, first.PlatformFeePercentage.Equal(decimal.NewFromInt(5)))

	var count int64
	require.NoError(t, svc.DB.Model(&models.AdminSettings{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUpdateInsertsNewVersion(t *testing.T) {
	svc := NewSettingsService(dbtest.Open(t))
	ctx := context.Background()

	updated, err := svc.Update(ctx, admin, UpdateInput{PlatformFeePercentage: ptr("7.5")})
	require.NoError(t, err)

	assert.Equal(t, 2, updated.Version)
	assert.True(t, updated.PlatformFeePercentage.Equal(decimal.RequireFromString("7.5")))
	// untouched fields carry over
	assert.True(t, updated.ProviderCommissionPercentage.Equal(decimal.NewFromInt(85)))

	active, err := svc.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, updated.ID, active.ID)

	history, err := svc.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.False(t, history[1].IsActive)
}

func TestUpdateRejectsOutOfBounds(t *testing.T) {
	svc := NewSettingsService(dbtest.Open(t))
	ctx := context.Background()

	_, err := svc.Update(ctx, admin, UpdateInput{ProviderCommissionPercentage: ptr("40")})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	active, err := svc.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, active.Version)
}

func TestUpdateRequiresAdmin(t *testing.T) {
	svc := NewSettingsService(dbtest.Open(t))

	_, err := svc.Update(context.Background(), models.Principal{ID: uuid.New(), Role: models.RoleProvider},
		UpdateInput{PlatformFeePercentage: ptr("1")})
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))
}

func TestUpdateMergesMethodFees(t *testing.T) {
	svc := NewSettingsService(dbtest.Open(t))

	table := models.MethodFeeTable{
		models.MethodCrypto: {Percentage: decimal.RequireFromString("2"), Fixed: decimal.RequireFromString("1")},
	}
	updated, err := svc.Update(context.Background(), admin, UpdateInput{WithdrawalFees: &table})
	require.NoError(t, err)

	fees := updated.MethodFees()
	assert.Len(t, fees, 4)
	assert.True(t, fees[models.MethodCrypto].Percentage.Equal(decimal.NewFromInt(2)))
	assert.True(t, fees[models.MethodPaypal].Percentage.Equal(decimal.RequireFromString("2.9")))
}

func TestPreviewDoesNotPersist(t *testing.T) {
	svc := NewSettingsService(dbtest.Open(t))
	ctx := context.Background()

	p, err := svc.Preview(ctx, decimal.NewFromInt(100), &UpdateInput{PlatformFeePercentage: ptr("10")})
	require.NoError(t, err)
	assert.True(t, p.Payment.PlatformFee.Equal(decimal.NewFromInt(10)))

	active, err := svc.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, active.Version)
	assert.True(t, active.PlatformFeePercentage.Equal(decimal.NewFromInt(5)))

	_, err = svc.Preview(ctx, decimal.NewFromInt(100), &UpdateInput{PlatformFeePercentage: ptr("60")})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
