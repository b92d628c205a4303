package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/shopdesk/internal/customer/domain"
	"github.com/smallbiznis/shopdesk/internal/customer/repository"
	"github.com/smallbiznis/shopdesk/internal/shopcontext"
	"github.com/smallbiznis/shopdesk/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupService(t *testing.T) domain.Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Customer{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return New(Params{DB: db, Log: zap.NewNop(), GenID: node, Repo: repository.Provide()})
}

func shopCtx(shopID int64) context.Context {
	return shopcontext.WithShopID(context.Background(), shopID)
}

func TestCreateAndGetCustomer(t *testing.T) {
	svc := setupService(t)
	ctx := shopCtx(100)
	cert := "  EX-1 "

	created, err := svc.Create(ctx, domain.CreateCustomerRequest{
		Name:                 " Ada Fleet ",
		Email:                "Fleet@Example.com",
		Phone:                "555-0100",
		LaborTaxExempt:       true,
		ExemptionCertificate: &cert,
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada Fleet", created.Name)
	assert.Equal(t, "fleet@example.com", created.Email)
	require.NotNil(t, created.ExemptionCertificate)
	assert.Equal(t, "EX-1", *created.ExemptionCertificate)

	got, err := svc.GetByID(ctx, domain.GetCustomerRequest{ID: created.ID.String()})
	require.NoError(t, err)
	assert.True(t, got.LaborTaxExempt)
	assert.False(t, got.PartsTaxExempt)
	assert.Equal(t, "EX-1", got.Certificate())

	_, err = svc.GetByID(shopCtx(200), domain.GetCustomerRequest{ID: created.ID.String()})
	assert.ErrorIs(t, err, domain.ErrNotFound, "customers are scoped to their shop")
}

func TestCreateCustomerValidation(t *testing.T) {
	svc := setupService(t)

	_, err := svc.Create(context.Background(), domain.CreateCustomerRequest{Name: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidShop)

	_, err = svc.Create(shopCtx(1), domain.CreateCustomerRequest{Name: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = svc.Create(shopCtx(1), domain.CreateCustomerRequest{Name: "Bob", Email: "bob"})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)

	_, err = svc.GetByID(shopCtx(1), domain.GetCustomerRequest{ID: "abc"})
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestListCustomersPaginates(t *testing.T) {
	svc := setupService(t)
	ctx := shopCtx(100)

	for _, name := range []string{"Alpha", "Bravo", "Charlie"} {
		_, err := svc.Create(ctx, domain.CreateCustomerRequest{Name: name})
		require.NoError(t, err)
	}
	_, err := svc.Create(shopCtx(101), domain.CreateCustomerRequest{Name: "Other shop"})
	require.NoError(t, err)

	first, err := svc.List(ctx, domain.ListCustomerRequest{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, first.Customers, 2)
	assert.True(t, first.HasMore)
	assert.Equal(t, "Charlie", first.Customers[0].Name)

	second, err := svc.List(ctx, domain.ListCustomerRequest{PageSize: 2, PageToken: first.NextPageToken})
	require.NoError(t, err)
	require.Len(t, second.Customers, 1)
	assert.False(t, second.HasMore)
	assert.Equal(t, "Alpha", second.Customers[0].Name)

	filtered, err := svc.List(ctx, domain.ListCustomerRequest{Name: "rav"})
	require.NoError(t, err)
	require.Len(t, filtered.Customers, 1)
	assert.Equal(t, "Bravo", filtered.Customers[0].Name)

	_, err = svc.List(ctx, domain.ListCustomerRequest{PageToken: "!!"})
	assert.ErrorIs(t, err, pagination.ErrInvalidPageToken)
}

func TestUpdateTaxExemption(t *testing.T) {
	svc := setupService(t)
	ctx := shopCtx(100)

	created, err := svc.Create(ctx, domain.CreateCustomerRequest{Name: "Fleet Co"})
	require.NoError(t, err)

	yes := true
	cert := "EX-9"
	updated, err := svc.UpdateTaxExemption(ctx, domain.UpdateTaxExemptionRequest{
		ID:                   created.ID.String(),
		PartsTaxExempt:       &yes,
		ExemptionCertificate: &cert,
	})
	require.NoError(t, err)
	assert.False(t, updated.LaborTaxExempt)
	assert.True(t, updated.PartsTaxExempt)

	empty := ""
	cleared, err := svc.UpdateTaxExemption(ctx, domain.UpdateTaxExemptionRequest{
		ID:                   created.ID.String(),
		ExemptionCertificate: &empty,
	})
	require.NoError(t, err)
	assert.Nil(t, cleared.ExemptionCertificate)
	assert.True(t, cleared.PartsTaxExempt, "unset fields are kept")

	got, err := svc.GetByID(ctx, domain.GetCustomerRequest{ID: created.ID.String()})
	require.NoError(t, err)
	assert.Nil(t, got.ExemptionCertificate)
	assert.True(t, got.PartsTaxExempt)

	_, err = svc.UpdateTaxExemption(ctx, domain.UpdateTaxExemptionRequest{ID: "123456"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
