package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/shopdesk/internal/customer/domain"
	"github.com/smallbiznis/shopdesk/pkg/db/option"
	"github.com/smallbiznis/shopdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, customer *domain.Customer) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO customers (id, shop_id, name, email, phone, labor_tax_exempt, parts_tax_exempt, exemption_certificate, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		customer.ID,
		customer.ShopID,
		customer.Name,
		customer.Email,
		customer.Phone,
		customer.LaborTaxExempt,
		customer.PartsTaxExempt,
		customer.ExemptionCertificate,
		customer.CreatedAt,
		customer.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, shopID, id snowflake.ID) (*domain.Customer, error) {
	var customer domain.Customer
	err := db.WithContext(ctx).Raw(
		`SELECT id, shop_id, name, email, phone, labor_tax_exempt, parts_tax_exempt, exemption_certificate, created_at, updated_at
		 FROM customers WHERE shop_id = ? AND id = ?`,
		shopID,
		id,
	).Scan(&customer).Error
	if err != nil {
		return nil, err
	}
	if customer.ID == 0 {
		return nil, nil
	}
	return &customer, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, shopID snowflake.ID, filter domain.ListCustomerFilter, page pagination.Pagination) ([]*domain.Customer, error) {
	var customers []*domain.Customer
	stmt := db.WithContext(ctx).
		Model(&domain.Customer{}).
		Where("shop_id = ?", shopID)
	if filter.Name != "" {
		stmt = stmt.Where("LOWER(name) LIKE ?", "%"+filter.Name+"%")
	}
	if filter.Email != "" {
		stmt = stmt.Where("LOWER(email) = ?", filter.Email)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	if err := stmt.Find(&customers).Error; err != nil {
		return nil, err
	}
	return customers, nil
}

func (r *repo) UpdateTaxExemption(ctx context.Context, db *gorm.DB, customer *domain.Customer) error {
	result := db.WithContext(ctx).Exec(
		`UPDATE customers
		 SET labor_tax_exempt = ?, parts_tax_exempt = ?, exemption_certificate = ?, updated_at = ?
		 WHERE shop_id = ? AND id = ?`,
		customer.LaborTaxExempt,
		customer.PartsTaxExempt,
		customer.ExemptionCertificate,
		customer.UpdatedAt,
		customer.ShopID,
		customer.ID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
