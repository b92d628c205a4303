// Package domain contains persistence models for work orders and their lines.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Status represents the work order lifecycle.
type Status string

// QuantityScale matches the numeric(10,2) and numeric(12,2) hour, quantity and price columns.
const QuantityScale int32 = 2

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusInvoiced   Status = "invoiced"
	StatusCancelled  Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusOpen:       {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
	StatusCompleted:  {StatusInvoiced, StatusCancelled},
}

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusCompleted, StatusInvoiced, StatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransition reports whether a work order may move from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Locked reports whether job lines and parts can no longer change.
func (s Status) Locked() bool {
	return s == StatusInvoiced || s == StatusCancelled
}

type WorkOrder struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	ShopID      snowflake.ID  `gorm:"column:shop_id;not null;index;uniqueIndex:ux_work_orders_shop_number" json:"shop_id"`
	CustomerID  *snowflake.ID `gorm:"column:customer_id;index" json:"customer_id,omitempty"`
	Number      string        `gorm:"column:number;type:text;not null;uniqueIndex:ux_work_orders_shop_number" json:"number"`
	Description string        `gorm:"column:description;type:text" json:"description,omitempty"`
	Status      Status        `gorm:"column:status;type:text;not null" json:"status"`
	CreatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (WorkOrder) TableName() string { return "work_orders" }

// JobLine is a unit of labor. TotalAmount is always EstimatedHours × LaborRate rounded to cents.
type JobLine struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	ShopID         snowflake.ID    `gorm:"column:shop_id;not null;index" json:"shop_id"`
	WorkOrderID    snowflake.ID    `gorm:"column:work_order_id;not null;index" json:"work_order_id"`
	Name           string          `gorm:"column:name;type:text;not null" json:"name"`
	Category       string          `gorm:"column:category;type:text" json:"category,omitempty"`
	EstimatedHours decimal.Decimal `gorm:"column:estimated_hours;type:numeric(10,2);not null;default:0" json:"estimated_hours"`
	LaborRate      decimal.Decimal `gorm:"column:labor_rate;type:numeric(12,2);not null;default:0" json:"labor_rate"`
	TotalAmount    decimal.Decimal `gorm:"column:total_amount;type:numeric(12,2);not null;default:0" json:"total_amount"`
	SortOrder      int             `gorm:"column:sort_order;not null;default:0" json:"sort_order"`
	CreatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (JobLine) TableName() string { return "work_order_job_lines" }

// Part is material billed on a work order, optionally attached to a job line.
type Part struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	ShopID      snowflake.ID    `gorm:"column:shop_id;not null;index" json:"shop_id"`
	WorkOrderID snowflake.ID    `gorm:"column:work_order_id;not null;index" json:"work_order_id"`
	JobLineID   *snowflake.ID   `gorm:"column:job_line_id;index" json:"job_line_id,omitempty"`
	PartNumber  string          `gorm:"column:part_number;type:text" json:"part_number,omitempty"`
	Name        string          `gorm:"column:name;type:text;not null" json:"name"`
	Quantity    decimal.Decimal `gorm:"column:quantity;type:numeric(10,2);not null;default:0" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null;default:0" json:"unit_price"`
	TotalPrice  decimal.Decimal `gorm:"column:total_price;type:numeric(12,2);not null;default:0" json:"total_price"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Part) TableName() string { return "work_order_parts" }
