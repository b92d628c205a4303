package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Provider supplies shop tax settings to the rest of the system.
type Provider interface {
	GetSettings(ctx context.Context, shopID snowflake.ID) (*TaxSettings, error)
	Refresh(ctx context.Context, shopID snowflake.ID) (*TaxSettings, error)
	UpdateSettings(ctx context.Context, shopID snowflake.ID, req UpdateSettingsRequest) (*TaxSettings, error)
	Invalidate(ctx context.Context, shopID snowflake.ID)
}

// UpdateSettingsRequest is a partial patch; nil fields are left unchanged.
type UpdateSettingsRequest struct {
	LaborTaxRate         *decimal.Decimal   `json:"labor_tax_rate,omitempty"`
	PartsTaxRate         *decimal.Decimal   `json:"parts_tax_rate,omitempty"`
	CombinedTaxRate      *decimal.Decimal   `json:"combined_tax_rate,omitempty"`
	CalculationMethod    *CalculationMethod `json:"calculation_method,omitempty"`
	DisplayMethod        *DisplayMethod     `json:"display_method,omitempty"`
	ApplyTaxToLabor      *bool              `json:"apply_tax_to_labor,omitempty"`
	ApplyTaxToParts      *bool              `json:"apply_tax_to_parts,omitempty"`
	TaxLabel             *string            `json:"tax_label,omitempty"`
	TaxExemptCustomerIDs *[]string          `json:"tax_exempt_customer_ids,omitempty"`
}

// SettingsUpdatedPayload is the data of a tax_settings.updated event.
type SettingsUpdatedPayload struct {
	SettingsID string `json:"settings_id"`
	ShopID     string `json:"shop_id"`
	UpdatedAt  string `json:"updated_at"`
}
