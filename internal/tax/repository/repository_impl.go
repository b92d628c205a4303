package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	taxdomain "github.com/smallbiznis/shopdesk/internal/tax/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) taxdomain.Repository {
	return &repository{db: db}
}

func (r *repository) FindByShopID(ctx context.Context, shopID snowflake.ID) (*taxdomain.TaxSettings, error) {
	var settings taxdomain.TaxSettings
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, shop_id, labor_tax_rate, parts_tax_rate, combined_tax_rate,
		        calculation_method, display_method, apply_tax_to_labor, apply_tax_to_parts,
		        tax_label, tax_code, tax_exempt_customer_ids, created_at, updated_at
		 FROM tax_settings
		 WHERE shop_id = ?`,
		shopID,
	).Scan(&settings).Error
	if err != nil {
		return nil, err
	}
	if settings.ID == 0 {
		return nil, nil
	}
	return &settings, nil
}

func (r *repository) CreateIfAbsent(ctx context.Context, settings *taxdomain.TaxSettings) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "shop_id"}},
			DoNothing: true,
		}).
		Create(settings)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) Update(ctx context.Context, settings *taxdomain.TaxSettings) error {
	result := r.db.WithContext(ctx).Exec(
		`UPDATE tax_settings
		 SET labor_tax_rate = ?, parts_tax_rate = ?, combined_tax_rate = ?,
		     calculation_method = ?, display_method = ?,
		     apply_tax_to_labor = ?, apply_tax_to_parts = ?,
		     tax_label = ?, tax_code = ?, tax_exempt_customer_ids = ?, updated_at = ?
		 WHERE shop_id = ? AND id = ?`,
		settings.LaborTaxRate,
		settings.PartsTaxRate,
		settings.CombinedTaxRate,
		settings.CalculationMethod,
		settings.DisplayMethod,
		settings.ApplyTaxToLabor,
		settings.ApplyTaxToParts,
		settings.TaxLabel,
		settings.TaxCode,
		settings.TaxExemptCustomerIDs,
		settings.UpdatedAt,
		settings.ShopID,
		settings.ID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return taxdomain.ErrNotFound
	}
	return nil
}
