package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Customer struct {
	ID                   snowflake.ID `gorm:"primaryKey" json:"id"`
	ShopID               snowflake.ID `gorm:"column:shop_id;not null;index" json:"shop_id"`
	Name                 string       `gorm:"not null" json:"name"`
	Email                string       `gorm:"column:email" json:"email,omitempty"`
	Phone                string       `gorm:"column:phone" json:"phone,omitempty"`
	LaborTaxExempt       bool         `gorm:"column:labor_tax_exempt;not null" json:"labor_tax_exempt"`
	PartsTaxExempt       bool         `gorm:"column:parts_tax_exempt;not null" json:"parts_tax_exempt"`
	ExemptionCertificate *string      `gorm:"column:exemption_certificate" json:"exemption_certificate,omitempty"`
	CreatedAt            time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt            time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Customer) TableName() string { return "customers" }

// Certificate returns the exemption certificate number or "".
func (c *Customer) Certificate() string {
	if c == nil || c.ExemptionCertificate == nil {
		return ""
	}
	return *c.ExemptionCertificate
}
