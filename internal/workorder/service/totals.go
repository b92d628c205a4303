package service

import (
	"github.com/shopspring/decimal"
	customerdomain "github.com/smallbiznis/shopdesk/internal/customer/domain"
	"github.com/smallbiznis/shopdesk/internal/tax/calculator"
	taxdomain "github.com/smallbiznis/shopdesk/internal/tax/domain"
	"github.com/smallbiznis/shopdesk/internal/workorder/domain"
)

// DeriveTotals prices a work order from its current lines. A nil settings
// value yields loading totals with zero tax.
func DeriveTotals(
	jobLines []domain.JobLine,
	parts []domain.Part,
	customer *customerdomain.Customer,
	settings *taxdomain.TaxSettings,
	policy calculator.ExemptionPolicy,
) domain.Totals {
	labor := decimal.Zero
	for _, line := range jobLines {
		labor = labor.Add(calculator.SanitizeAmount(line.TotalAmount))
	}

	partsAmount := decimal.Zero
	for _, part := range parts {
		partsAmount = partsAmount.Add(partAmount(part))
	}

	var exemption calculator.Exemption
	if customer != nil {
		exemption = calculator.ExemptionFor(calculator.CustomerFlags{
			ID:          customer.ID,
			LaborExempt: customer.LaborTaxExempt,
			PartsExempt: customer.PartsTaxExempt,
			Certificate: customer.Certificate(),
		}, settings, policy)
	}

	return domain.Totals{
		Result: calculator.Calculate(calculator.Input{
			LaborAmount: labor,
			PartsAmount: partsAmount,
			Settings:    settings,
			Exemption:   exemption,
		}),
	}
}

// partAmount falls back to quantity × unit price for rows saved without a total.
func partAmount(part domain.Part) decimal.Decimal {
	total := calculator.SanitizeAmount(part.TotalPrice)
	if total.IsZero() && part.Quantity.IsPositive() && part.UnitPrice.IsPositive() {
		return calculator.Round(part.Quantity.Mul(part.UnitPrice))
	}
	return total
}

func lineTotal(hours, rate decimal.Decimal) decimal.Decimal {
	return calculator.Round(calculator.SanitizeAmount(hours).Mul(calculator.SanitizeAmount(rate)))
}
