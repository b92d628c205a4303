package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/shopdesk/internal/audit/domain"
	"github.com/smallbiznis/shopdesk/internal/audit/repository"
	obscontext "github.com/smallbiznis/shopdesk/internal/observability/context"
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
	require.NoError(t, db.AutoMigrate(&domain.AuditLog{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(Params{DB: db, Log: zap.NewNop(), GenID: node, Repo: repository.Provide()})
}

func actorCtx(shopID int64) context.Context {
	ctx := shopcontext.WithShopID(context.Background(), shopID)
	ctx = shopcontext.WithActor(ctx, shopcontext.Actor{UserID: "42", Role: "owner"})
	return obscontext.WithRequestID(ctx, "req-1")
}

func TestRecordMasksSensitiveMetadata(t *testing.T) {
	svc := setupService(t)
	ctx := actorCtx(100)
	target := "77"

	require.NoError(t, svc.Record(ctx, domain.ActionCustomerCreate, "customer", &target, map[string]any{
		"name":  "Fleet Co",
		"email": "fleet@example.com",
	}))

	resp, err := svc.List(ctx, domain.ListAuditLogRequest{})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)

	entry := resp.AuditLogs[0]
	assert.Equal(t, snowflake.ID(100), entry.ShopID)
	assert.Equal(t, "owner", entry.ActorRole)
	require.NotNil(t, entry.ActorID)
	assert.Equal(t, "42", *entry.ActorID)
	require.NotNil(t, entry.TargetID)
	assert.Equal(t, "77", *entry.TargetID)
	assert.Equal(t, "Fleet Co", entry.Metadata["name"])
	assert.Equal(t, "****.com", entry.Metadata["email"])
	assert.Equal(t, "req-1", entry.Metadata["request_id"])
}

func TestRecordWithoutActorIsSystem(t *testing.T) {
	svc := setupService(t)
	ctx := shopcontext.WithShopID(context.Background(), 100)

	require.NoError(t, svc.Record(ctx, domain.ActionTaxSettingsUpdate, " ", nil, nil))

	resp, err := svc.List(ctx, domain.ListAuditLogRequest{})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)
	assert.Equal(t, "system", resp.AuditLogs[0].ActorRole)
	assert.Nil(t, resp.AuditLogs[0].ActorID)
	assert.Equal(t, "unknown", resp.AuditLogs[0].TargetType)
}

func TestRecordValidation(t *testing.T) {
	svc := setupService(t)

	err := svc.Record(context.Background(), domain.ActionTaxSettingsUpdate, "tax_settings", nil, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidShop)

	err = svc.Record(actorCtx(100), "  ", "tax_settings", nil, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidAction)
}

func TestListFiltersAndPaginates(t *testing.T) {
	svc := setupService(t)
	ctx := actorCtx(100)

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Record(ctx, domain.ActionTaxSettingsUpdate, "tax_settings", nil, map[string]any{"n": i}))
	}
	require.NoError(t, svc.Record(ctx, domain.ActionWorkOrderStatusUpdate, "work_order", nil, nil))
	require.NoError(t, svc.Record(actorCtx(200), domain.ActionTaxSettingsUpdate, "tax_settings", nil, nil))

	first, err := svc.List(ctx, domain.ListAuditLogRequest{Action: domain.ActionTaxSettingsUpdate, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, first.AuditLogs, 2)
	assert.True(t, first.HasMore)
	assert.Greater(t, first.AuditLogs[0].ID, first.AuditLogs[1].ID, "newest first")

	second, err := svc.List(ctx, domain.ListAuditLogRequest{Action: domain.ActionTaxSettingsUpdate, PageSize: 2, PageToken: first.NextPageToken})
	require.NoError(t, err)
	require.Len(t, second.AuditLogs, 1)
	assert.False(t, second.HasMore)

	_, err = svc.List(ctx, domain.ListAuditLogRequest{PageToken: "%%%"})
	assert.ErrorIs(t, err, pagination.ErrInvalidPageToken)
}
