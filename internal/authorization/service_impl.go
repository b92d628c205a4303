package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/casbin/casbin/v2/persist"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/smallbiznis/shopdesk/internal/observability/logger"
	"github.com/smallbiznis/shopdesk/internal/shopcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectTaxSettings = "tax_settings"
	ObjectTax         = "tax"
	ObjectCustomer    = "customer"
	ObjectWorkOrder   = "work_order"
	ObjectAuditLog    = "audit_log"
)

const (
	ActionTaxSettingsView   = "tax_settings.view"
	ActionTaxSettingsUpdate = "tax_settings.update"
	ActionTaxCalculate      = "tax.calculate"

	ActionCustomerView   = "customer.view"
	ActionCustomerCreate = "customer.create"
	ActionCustomerUpdate = "customer.update"

	ActionWorkOrderView   = "work_order.view"
	ActionWorkOrderCreate = "work_order.create"
	ActionWorkOrderUpdate = "work_order.update"

	ActionAuditLogView = "audit_log.view"
)

const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleStaff  = "staff"
	RoleSystem = "system"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer persists policies and role links in the casbin_rule table.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	return newEnforcer(adapter)
}

// newEnforcer keeps policies in memory when adapter is nil.
func newEnforcer(adapter persist.Adapter) (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}

	var enforcer *casbin.SyncedEnforcer
	if adapter == nil {
		enforcer, err = casbin.NewSyncedEnforcer(m)
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m, adapter)
	}
	if err != nil {
		return nil, err
	}

	enforcer.EnableAutoBuildRoleLinks(true)
	if adapter != nil {
		enforcer.EnableAutoSave(true)
		if err := enforcer.LoadPolicy(); err != nil {
			return nil, err
		}
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

// Authorize accepts "system" or "user:<id>" actors. A user's role in the shop
// is the one forwarded by the gateway and carried on the request context.
func (s *ServiceImpl) Authorize(ctx context.Context, actor string, shopID string, object string, action string) error {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ErrInvalidActor
	}
	shopID = strings.TrimSpace(shopID)
	if shopID == "" {
		return ErrInvalidShop
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	roleName, err := resolveRole(ctx, actor)
	if err != nil {
		s.logDenied(ctx, actor, shopID, object, action, err)
		return err
	}

	domain := fmt.Sprintf("shop:%s", shopID)
	if err := s.ensureGrouping(actor, roleName, domain); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(actor, domain, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.logDenied(ctx, actor, shopID, object, action, ErrForbidden)
		return ErrForbidden
	}
	return nil
}

func resolveRole(ctx context.Context, actor string) (string, error) {
	if actor == RoleSystem {
		return "role:system", nil
	}
	if !strings.HasPrefix(actor, "user:") {
		return "", ErrInvalidActor
	}
	userID := strings.TrimSpace(strings.TrimPrefix(actor, "user:"))
	if userID == "" || strings.ContainsAny(userID, " :") {
		return "", ErrInvalidActor
	}

	current, ok := shopcontext.ActorFromContext(ctx)
	if !ok || current.UserID != userID {
		return "", ErrForbidden
	}
	switch role := strings.ToLower(strings.TrimSpace(current.Role)); role {
	case RoleOwner, RoleAdmin, RoleStaff:
		return "role:" + role, nil
	default:
		return "", ErrForbidden
	}
}

func (s *ServiceImpl) ensureGrouping(subject string, roleName string, domain string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject, "", domain)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 {
			continue
		}
		if rule[1] != roleName {
			params := make([]interface{}, 0, len(rule))
			for _, value := range rule {
				params = append(params, value)
			}
			_, _ = s.enforcer.RemoveGroupingPolicy(params...)
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName, domain)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName, domain)
	return err
}

func (s *ServiceImpl) logDenied(ctx context.Context, actor, shopID, object, action string, reason error) {
	logger.WithContext(ctx, s.log).Warn("authorization denied",
		zap.String("actor", actor),
		zap.String("shop_id", shopID),
		zap.String("object", object),
		zap.String("action", action),
		zap.Error(reason),
	)
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	staff := [][]string{
		{ObjectTaxSettings, ActionTaxSettingsView},
		{ObjectTax, ActionTaxCalculate},
		{ObjectCustomer, ActionCustomerView},
		{ObjectCustomer, ActionCustomerCreate},
		{ObjectWorkOrder, ActionWorkOrderView},
		{ObjectWorkOrder, ActionWorkOrderCreate},
		{ObjectWorkOrder, ActionWorkOrderUpdate},
	}
	managers := append([][]string{
		{ObjectTaxSettings, ActionTaxSettingsUpdate},
		{ObjectCustomer, ActionCustomerUpdate},
		{ObjectAuditLog, ActionAuditLogView},
	}, staff...)

	grants := map[string][][]string{
		"role:staff":  staff,
		"role:admin":  managers,
		"role:owner":  managers,
		"role:system": managers,
	}

	for role, rules := range grants {
		for _, rule := range rules {
			if _, err := enforcer.AddPolicy(role, rule[0], rule[1]); err != nil {
				return err
			}
		}
	}
	return nil
}
