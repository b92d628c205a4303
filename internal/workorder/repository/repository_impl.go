package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/shopdesk/internal/workorder/domain"
	"github.com/smallbiznis/shopdesk/pkg/db/option"
	"github.com/smallbiznis/shopdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertWorkOrder(ctx context.Context, db *gorm.DB, order *domain.WorkOrder) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO work_orders (id, shop_id, customer_id, number, description, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID,
		order.ShopID,
		order.CustomerID,
		order.Number,
		order.Description,
		order.Status,
		order.CreatedAt,
		order.UpdatedAt,
	).Error
}

func (r *repo) FindWorkOrder(ctx context.Context, db *gorm.DB, shopID, id snowflake.ID) (*domain.WorkOrder, error) {
	var order domain.WorkOrder
	err := db.WithContext(ctx).Raw(
		`SELECT id, shop_id, customer_id, number, description, status, created_at, updated_at
		 FROM work_orders WHERE shop_id = ? AND id = ?`,
		shopID,
		id,
	).Scan(&order).Error
	if err != nil {
		return nil, err
	}
	if order.ID == 0 {
		return nil, nil
	}
	return &order, nil
}

func (r *repo) ListWorkOrders(ctx context.Context, db *gorm.DB, shopID snowflake.ID, filter domain.ListWorkOrderFilter, page pagination.Pagination) ([]*domain.WorkOrder, error) {
	var orders []*domain.WorkOrder
	stmt := db.WithContext(ctx).
		Model(&domain.WorkOrder{}).
		Where("shop_id = ?", shopID)
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.CustomerID != nil {
		stmt = stmt.Where("customer_id = ?", *filter.CustomerID)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	if err := stmt.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, order *domain.WorkOrder) error {
	result := db.WithContext(ctx).Exec(
		`UPDATE work_orders SET status = ?, updated_at = ? WHERE shop_id = ? AND id = ?`,
		order.Status,
		order.UpdatedAt,
		order.ShopID,
		order.ID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repo) ListJobLines(ctx context.Context, db *gorm.DB, shopID, workOrderID snowflake.ID) ([]domain.JobLine, error) {
	var lines []domain.JobLine
	err := db.WithContext(ctx).
		Where("shop_id = ? AND work_order_id = ?", shopID, workOrderID).
		Order("sort_order asc, id asc").
		Find(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *repo) FindJobLine(ctx context.Context, db *gorm.DB, shopID, workOrderID, id snowflake.ID) (*domain.JobLine, error) {
	var line domain.JobLine
	err := db.WithContext(ctx).
		Where("shop_id = ? AND work_order_id = ? AND id = ?", shopID, workOrderID, id).
		Limit(1).
		Find(&line).Error
	if err != nil {
		return nil, err
	}
	if line.ID == 0 {
		return nil, nil
	}
	return &line, nil
}

func (r *repo) InsertJobLine(ctx context.Context, db *gorm.DB, line *domain.JobLine) error {
	return db.WithContext(ctx).Create(line).Error
}

func (r *repo) UpdateJobLine(ctx context.Context, db *gorm.DB, line *domain.JobLine) error {
	result := db.WithContext(ctx).
		Model(&domain.JobLine{}).
		Where("shop_id = ? AND work_order_id = ? AND id = ?", line.ShopID, line.WorkOrderID, line.ID).
		Updates(map[string]any{
			"name":            line.Name,
			"category":        line.Category,
			"estimated_hours": line.EstimatedHours,
			"labor_rate":      line.LaborRate,
			"total_amount":    line.TotalAmount,
			"sort_order":      line.SortOrder,
			"updated_at":      line.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repo) DeleteJobLine(ctx context.Context, db *gorm.DB, shopID, workOrderID, id snowflake.ID) error {
	result := db.WithContext(ctx).Exec(
		`DELETE FROM work_order_job_lines WHERE shop_id = ? AND work_order_id = ? AND id = ?`,
		shopID,
		workOrderID,
		id,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repo) ListParts(ctx context.Context, db *gorm.DB, shopID, workOrderID snowflake.ID) ([]domain.Part, error) {
	var parts []domain.Part
	err := db.WithContext(ctx).
		Where("shop_id = ? AND work_order_id = ?", shopID, workOrderID).
		Order("id asc").
		Find(&parts).Error
	if err != nil {
		return nil, err
	}
	return parts, nil
}

func (r *repo) FindPart(ctx context.Context, db *gorm.DB, shopID, workOrderID, id snowflake.ID) (*domain.Part, error) {
	var part domain.Part
	err := db.WithContext(ctx).
		Where("shop_id = ? AND work_order_id = ? AND id = ?", shopID, workOrderID, id).
		Limit(1).
		Find(&part).Error
	if err != nil {
		return nil, err
	}
	if part.ID == 0 {
		return nil, nil
	}
	return &part, nil
}

func (r *repo) InsertPart(ctx context.Context, db *gorm.DB, part *domain.Part) error {
	return db.WithContext(ctx).Create(part).Error
}

func (r *repo) UpdatePart(ctx context.Context, db *gorm.DB, part *domain.Part) error {
	result := db.WithContext(ctx).
		Model(&domain.Part{}).
		Where("shop_id = ? AND work_order_id = ? AND id = ?", part.ShopID, part.WorkOrderID, part.ID).
		Updates(map[string]any{
			"job_line_id": part.JobLineID,
			"part_number": part.PartNumber,
			"name":        part.Name,
			"quantity":    part.Quantity,
			"unit_price":  part.UnitPrice,
			"total_price": part.TotalPrice,
			"updated_at":  part.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repo) DeletePart(ctx context.Context, db *gorm.DB, shopID, workOrderID, id snowflake.ID) error {
	result := db.WithContext(ctx).Exec(
		`DELETE FROM work_order_parts WHERE shop_id = ? AND work_order_id = ? AND id = ?`,
		shopID,
		workOrderID,
		id,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repo) DetachParts(ctx context.Context, db *gorm.DB, shopID, jobLineID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE work_order_parts SET job_line_id = NULL WHERE shop_id = ? AND job_line_id = ?`,
		shopID,
		jobLineID,
	).Error
}
