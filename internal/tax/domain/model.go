package domain

import (
	"slices"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// CalculationMethod selects whether labor and parts are taxed independently.
type CalculationMethod string

const (
	CalculationSeparate CalculationMethod = "separate" // each axis at its own rate
	CalculationCombined CalculationMethod = "combined" // taxable subtotal at CombinedTaxRate
)

// DisplayMethod only tells renderers how to present tax; it never changes the math.
type DisplayMethod string

const (
	DisplayExclusive DisplayMethod = "exclusive"
	DisplayInclusive DisplayMethod = "inclusive"
)

var maxRate = decimal.NewFromInt(100)

// RateScale matches the numeric(7,4) rate columns.
const RateScale int32 = 4

// TaxSettings is the shop-scoped tax configuration. One row per shop.
// Rates are percentages: 8.25 means 8.25%.
type TaxSettings struct {
	ID     snowflake.ID `gorm:"primaryKey" json:"id"`
	ShopID snowflake.ID `gorm:"column:shop_id;not null;uniqueIndex" json:"shop_id"`

	LaborTaxRate    decimal.Decimal `gorm:"column:labor_tax_rate;type:numeric(7,4);not null;default:0" json:"labor_tax_rate"`
	PartsTaxRate    decimal.Decimal `gorm:"column:parts_tax_rate;type:numeric(7,4);not null;default:0" json:"parts_tax_rate"`
	CombinedTaxRate decimal.Decimal `gorm:"column:combined_tax_rate;type:numeric(7,4);not null;default:0" json:"combined_tax_rate"`

	CalculationMethod CalculationMethod `gorm:"column:calculation_method;type:text;not null" json:"calculation_method"`
	DisplayMethod     DisplayMethod     `gorm:"column:display_method;type:text;not null" json:"display_method"`
	ApplyTaxToLabor   bool              `gorm:"column:apply_tax_to_labor;not null" json:"apply_tax_to_labor"`
	ApplyTaxToParts   bool              `gorm:"column:apply_tax_to_parts;not null" json:"apply_tax_to_parts"`

	TaxLabel             string                      `gorm:"column:tax_label;type:text;not null" json:"tax_label"`
	TaxCode              string                      `gorm:"column:tax_code;type:text;not null" json:"tax_code"`
	TaxExemptCustomerIDs datatypes.JSONSlice[string] `gorm:"column:tax_exempt_customer_ids" json:"tax_exempt_customer_ids"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (TaxSettings) TableName() string { return "tax_settings" }

func (t *TaxSettings) Validate() error {
	if t.ShopID == 0 {
		return ErrInvalidShop
	}
	for _, rate := range []decimal.Decimal{t.LaborTaxRate, t.PartsTaxRate, t.CombinedTaxRate} {
		if rate.IsNegative() || rate.GreaterThan(maxRate) {
			return ErrInvalidTaxRate
		}
	}
	switch t.CalculationMethod {
	case CalculationSeparate, CalculationCombined:
	default:
		return ErrInvalidCalculationMethod
	}
	switch t.DisplayMethod {
	case DisplayExclusive, DisplayInclusive:
	default:
		return ErrInvalidDisplayMethod
	}
	if strings.TrimSpace(t.TaxLabel) == "" {
		return ErrInvalidTaxLabel
	}
	for _, id := range t.TaxExemptCustomerIDs {
		if parsed, err := snowflake.ParseString(id); err != nil || parsed == 0 {
			return ErrInvalidCustomerID
		}
	}
	return nil
}

// IsCustomerExempt reports whether the shop lists the customer as fully exempt.
func (t *TaxSettings) IsCustomerExempt(customerID snowflake.ID) bool {
	if t == nil || customerID == 0 {
		return false
	}
	return slices.Contains(t.TaxExemptCustomerIDs, customerID.String())
}

// Clone returns a deep copy so cached settings are never mutated in place.
func (t *TaxSettings) Clone() *TaxSettings {
	if t == nil {
		return nil
	}
	out := *t
	out.TaxExemptCustomerIDs = slices.Clone(t.TaxExemptCustomerIDs)
	return &out
}
