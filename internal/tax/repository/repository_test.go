package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	taxdomain "github.com/smallbiznis/shopdesk/internal/tax/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&taxdomain.TaxSettings{}))
	return db
}

func newSettings(id, shopID int64) *taxdomain.TaxSettings {
	now := time.Now().UTC()
	return &taxdomain.TaxSettings{
		ID:                   snowflakeID(id),
		ShopID:               snowflakeID(shopID),
		LaborTaxRate:         decimal.RequireFromString("8.25"),
		PartsTaxRate:         decimal.Zero,
		CombinedTaxRate:      decimal.Zero,
		CalculationMethod:    taxdomain.CalculationSeparate,
		DisplayMethod:        taxdomain.DisplayExclusive,
		ApplyTaxToLabor:      true,
		ApplyTaxToParts:      true,
		TaxLabel:             "Sales Tax",
		TaxCode:              "sales-tax",
		TaxExemptCustomerIDs: datatypes.JSONSlice[string]{},
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

func TestCreateIfAbsentKeepsFirstRow(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(setupDB(t))

	created, err := repo.CreateIfAbsent(ctx, newSettings(1, 100))
	require.NoError(t, err)
	assert.True(t, created)

	second := newSettings(2, 100)
	second.TaxLabel = "VAT"
	created, err = repo.CreateIfAbsent(ctx, second)
	require.NoError(t, err)
	assert.False(t, created)

	got, err := repo.FindByShopID(ctx, 100)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, snowflakeID(1), got.ID)
	assert.Equal(t, "Sales Tax", got.TaxLabel)
	assert.True(t, decimal.RequireFromString("8.25").Equal(got.LaborTaxRate))
}

func TestFindByShopIDMissing(t *testing.T) {
	repo := NewRepository(setupDB(t))
	got, err := repo.FindByShopID(context.Background(), 404)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(setupDB(t))

	settings := newSettings(1, 100)
	_, err := repo.CreateIfAbsent(ctx, settings)
	require.NoError(t, err)

	settings.CalculationMethod = taxdomain.CalculationCombined
	settings.CombinedTaxRate = decimal.RequireFromString("5")
	settings.TaxExemptCustomerIDs = datatypes.JSONSlice[string]{"77"}
	settings.UpdatedAt = time.Now().UTC()
	require.NoError(t, repo.Update(ctx, settings))

	got, err := repo.FindByShopID(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, taxdomain.CalculationCombined, got.CalculationMethod)
	assert.True(t, decimal.NewFromInt(5).Equal(got.CombinedTaxRate))
	assert.Equal(t, []string{"77"}, []string(got.TaxExemptCustomerIDs))

	missing := newSettings(9, 999)
	assert.ErrorIs(t, repo.Update(ctx, missing), taxdomain.ErrNotFound)
}

func snowflakeID(v int64) snowflake.ID { return snowflake.ID(v) }
