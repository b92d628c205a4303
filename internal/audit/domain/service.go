package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/shopdesk/pkg/db/pagination"
)

const (
	ActionTaxSettingsUpdate       = "tax_settings.update"
	ActionCustomerCreate          = "customer.create"
	ActionCustomerExemptionUpdate = "customer.tax_exemption.update"
	ActionWorkOrderStatusUpdate   = "work_order.status.update"
)

type ListAuditLogRequest struct {
	PageToken  string
	PageSize   int32
	Action     string
	TargetType string
	TargetID   string
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

type Service interface {
	// Record writes an entry for the shop and actor on ctx.
	Record(ctx context.Context, action string, targetType string, targetID *string, metadata map[string]any) error
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

var (
	ErrInvalidShop   = errors.New("invalid_shop")
	ErrInvalidAction = errors.New("invalid_action")
)
