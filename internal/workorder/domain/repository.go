package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/shopdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	InsertWorkOrder(ctx context.Context, db *gorm.DB, order *WorkOrder) error
	FindWorkOrder(ctx context.Context, db *gorm.DB, shopID, id snowflake.ID) (*WorkOrder, error)
	ListWorkOrders(ctx context.Context, db *gorm.DB, shopID snowflake.ID, filter ListWorkOrderFilter, page pagination.Pagination) ([]*WorkOrder, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, order *WorkOrder) error

	ListJobLines(ctx context.Context, db *gorm.DB, shopID, workOrderID snowflake.ID) ([]JobLine, error)
	FindJobLine(ctx context.Context, db *gorm.DB, shopID, workOrderID, id snowflake.ID) (*JobLine, error)
	InsertJobLine(ctx context.Context, db *gorm.DB, line *JobLine) error
	UpdateJobLine(ctx context.Context, db *gorm.DB, line *JobLine) error
	DeleteJobLine(ctx context.Context, db *gorm.DB, shopID, workOrderID, id snowflake.ID) error

	ListParts(ctx context.Context, db *gorm.DB, shopID, workOrderID snowflake.ID) ([]Part, error)
	FindPart(ctx context.Context, db *gorm.DB, shopID, workOrderID, id snowflake.ID) (*Part, error)
	InsertPart(ctx context.Context, db *gorm.DB, part *Part) error
	UpdatePart(ctx context.Context, db *gorm.DB, part *Part) error
	DeletePart(ctx context.Context, db *gorm.DB, shopID, workOrderID, id snowflake.ID) error
	// DetachParts clears job_line_id on parts that referenced a removed job line.
	DetachParts(ctx context.Context, db *gorm.DB, shopID, jobLineID snowflake.ID) error
}
