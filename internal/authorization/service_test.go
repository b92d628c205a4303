package authorization

import (
	"context"
	"testing"

	"github.com/smallbiznis/shopdesk/internal/shopcontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	enforcer, err := newEnforcer(nil)
	require.NoError(t, err)
	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer})
}

func actorCtx(userID, role string) context.Context {
	return shopcontext.WithActor(context.Background(), shopcontext.Actor{UserID: userID, Role: role})
}

func TestAuthorizeByRole(t *testing.T) {
	svc := newTestService(t)

	cases := []struct {
		name    string
		role    string
		object  string
		action  string
		allowed bool
	}{
		{"staff views settings", RoleStaff, ObjectTaxSettings, ActionTaxSettingsView, true},
		{"staff cannot edit settings", RoleStaff, ObjectTaxSettings, ActionTaxSettingsUpdate, false},
		{"staff updates work orders", RoleStaff, ObjectWorkOrder, ActionWorkOrderUpdate, true},
		{"staff cannot change exemptions", RoleStaff, ObjectCustomer, ActionCustomerUpdate, false},
		{"admin edits settings", RoleAdmin, ObjectTaxSettings, ActionTaxSettingsUpdate, true},
		{"owner changes exemptions", RoleOwner, ObjectCustomer, ActionCustomerUpdate, true},
		{"owner calculates", "OWNER", ObjectTax, ActionTaxCalculate, true},
		{"staff cannot read audit log", RoleStaff, ObjectAuditLog, ActionAuditLogView, false},
		{"admin reads audit log", RoleAdmin, ObjectAuditLog, ActionAuditLogView, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.Authorize(actorCtx("42", tc.role), "user:42", "100", tc.object, tc.action)
			if tc.allowed {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrForbidden)
		})
	}
}

func TestAuthorizeRoleChangeTakesEffect(t *testing.T) {
	svc := newTestService(t)

	require.NoError(t, svc.Authorize(actorCtx("7", RoleAdmin), "user:7", "100", ObjectTaxSettings, ActionTaxSettingsUpdate))
	err := svc.Authorize(actorCtx("7", RoleStaff), "user:7", "100", ObjectTaxSettings, ActionTaxSettingsUpdate)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAuthorizeRejectsBadInput(t *testing.T) {
	svc := newTestService(t)
	ctx := actorCtx("1", RoleOwner)

	assert.ErrorIs(t, svc.Authorize(ctx, "", "100", ObjectTax, ActionTaxCalculate), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, "user:1", " ", ObjectTax, ActionTaxCalculate), ErrInvalidShop)
	assert.ErrorIs(t, svc.Authorize(ctx, "user:1", "100", "", ActionTaxCalculate), ErrInvalidObject)
	assert.ErrorIs(t, svc.Authorize(ctx, "user:1", "100", ObjectTax, ""), ErrInvalidAction)
	assert.ErrorIs(t, svc.Authorize(ctx, "robot:1", "100", ObjectTax, ActionTaxCalculate), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, "user:2", "100", ObjectTax, ActionTaxCalculate), ErrForbidden)
	assert.ErrorIs(t, svc.Authorize(actorCtx("1", "guest"), "user:1", "100", ObjectTax, ActionTaxCalculate), ErrForbidden)
}

func TestSystemActor(t *testing.T) {
	svc := newTestService(t)
	assert.NoError(t, svc.Authorize(context.Background(), RoleSystem, "100", ObjectTaxSettings, ActionTaxSettingsUpdate))
}
