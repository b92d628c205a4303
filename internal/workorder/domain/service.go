package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/shopdesk/internal/tax/calculator"
	"github.com/smallbiznis/shopdesk/pkg/db/pagination"
)

// NoticeTaxSettingsUnavailable marks totals computed without tax because settings could not be loaded.
const NoticeTaxSettingsUnavailable = "tax_settings_unavailable"

type CreateWorkOrderRequest struct {
	CustomerID  string `json:"customer_id"`
	Number      string `json:"number"`
	Description string `json:"description"`
}

type ListWorkOrderRequest struct {
	PageToken  string
	PageSize   int32
	Status     string
	CustomerID string
}

type ListWorkOrderFilter struct {
	Status     Status
	CustomerID *snowflake.ID
}

type ListWorkOrderResponse struct {
	pagination.PageInfo
	WorkOrders []WorkOrder `json:"work_orders"`
}

type UpdateStatusRequest struct {
	ID     string `json:"-"`
	Status string `json:"status"`
}

// Detail is a work order with its lines, ordered for display.
type Detail struct {
	WorkOrder
	JobLines []JobLine `json:"job_lines"`
	Parts    []Part    `json:"parts"`
}

type JobLineRequest struct {
	WorkOrderID    string           `json:"-"`
	JobLineID      string           `json:"-"`
	Name           *string          `json:"name"`
	Category       *string          `json:"category"`
	EstimatedHours *decimal.Decimal `json:"estimated_hours"`
	LaborRate      *decimal.Decimal `json:"labor_rate"`
	SortOrder      *int             `json:"sort_order"`
}

type PartRequest struct {
	WorkOrderID string           `json:"-"`
	PartID      string           `json:"-"`
	JobLineID   *string          `json:"job_line_id"`
	PartNumber  *string          `json:"part_number"`
	Name        *string          `json:"name"`
	Quantity    *decimal.Decimal `json:"quantity"`
	UnitPrice   *decimal.Decimal `json:"unit_price"`
}

// Totals is the derived pricing of a work order. It is never stored.
type Totals struct {
	WorkOrderID snowflake.ID `json:"work_order_id,omitempty"`
	calculator.Result
	Notice string `json:"notice,omitempty"`
}

type Service interface {
	Create(context.Context, CreateWorkOrderRequest) (WorkOrder, error)
	Get(ctx context.Context, id string) (Detail, error)
	List(context.Context, ListWorkOrderRequest) (ListWorkOrderResponse, error)
	UpdateStatus(context.Context, UpdateStatusRequest) (WorkOrder, error)
	Totals(ctx context.Context, id string) (Totals, error)

	AddJobLine(context.Context, JobLineRequest) (JobLine, error)
	UpdateJobLine(context.Context, JobLineRequest) (JobLine, error)
	RemoveJobLine(ctx context.Context, workOrderID, jobLineID string) error

	AddPart(context.Context, PartRequest) (Part, error)
	UpdatePart(context.Context, PartRequest) (Part, error)
	RemovePart(ctx context.Context, workOrderID, partID string) error
}

var (
	ErrInvalidShop       = errors.New("invalid_shop")
	ErrInvalidID         = errors.New("invalid_id")
	ErrInvalidCustomer   = errors.New("invalid_customer")
	ErrInvalidNumber     = errors.New("invalid_number")
	ErrInvalidStatus     = errors.New("invalid_status")
	ErrInvalidTransition = errors.New("invalid_status_transition")
	ErrInvalidName       = errors.New("invalid_name")
	ErrInvalidQuantity   = errors.New("invalid_quantity")
	ErrInvalidAmount     = errors.New("invalid_amount")
	ErrInvalidJobLine    = errors.New("invalid_job_line")
	ErrDuplicateNumber   = errors.New("duplicate_number")
	ErrWorkOrderLocked   = errors.New("work_order_locked")
	ErrNotFound          = errors.New("not_found")
)
