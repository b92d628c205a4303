// Package calculator computes labor and parts tax for a work order or quote.
//
// Calculate is pure: the same input always produces the same Result, and it
// never fails. Invalid amounts are coerced to zero and a nil settings value
// produces a zero-tax result flagged as loading.
package calculator

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	taxdomain "github.com/smallbiznis/shopdesk/internal/tax/domain"
)

// CurrencyPlaces is the precision every tax amount is rounded to.
const CurrencyPlaces = 2

var hundred = decimal.NewFromInt(100)

// ExemptionPolicy decides how customer exemption flags map onto the two axes.
type ExemptionPolicy string

const (
	// PolicyPerAxis exempts only the axis the customer is flagged for.
	PolicyPerAxis ExemptionPolicy = "per_axis"
	// PolicyCombined exempts both axes when either flag is set.
	PolicyCombined ExemptionPolicy = "combined"
)

type Exemption struct {
	Labor       bool
	Parts       bool
	Certificate string
}

func (e Exemption) Any() bool { return e.Labor || e.Parts }

type Input struct {
	LaborAmount decimal.Decimal
	PartsAmount decimal.Decimal
	// Settings is nil while the shop's settings have not been resolved.
	Settings  *taxdomain.TaxSettings
	Exemption Exemption
}

type Breakdown struct {
	CalculationMethod    taxdomain.CalculationMethod `json:"calculation_method,omitempty"`
	DisplayMethod        taxdomain.DisplayMethod     `json:"display_method,omitempty"`
	LaborRate            decimal.Decimal             `json:"labor_rate"`
	PartsRate            decimal.Decimal             `json:"parts_rate"`
	CombinedRate         decimal.Decimal             `json:"combined_rate"`
	TaxLabel             string                      `json:"tax_label,omitempty"`
	TaxCode              string                      `json:"tax_code,omitempty"`
	Description          string                      `json:"description"`
	LaborExempt          bool                        `json:"labor_exempt"`
	PartsExempt          bool                        `json:"parts_exempt"`
	ExemptionCertificate string                      `json:"exemption_certificate,omitempty"`
}

type Result struct {
	LaborAmount decimal.Decimal `json:"labor_amount"`
	PartsAmount decimal.Decimal `json:"parts_amount"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	LaborTax    decimal.Decimal `json:"labor_tax"`
	PartsTax    decimal.Decimal `json:"parts_tax"`
	TotalTax    decimal.Decimal `json:"total_tax"`
	LaborTotal  decimal.Decimal `json:"labor_total"`
	PartsTotal  decimal.Decimal `json:"parts_total"`
	GrandTotal  decimal.Decimal `json:"grand_total"`
	IsLoading   bool            `json:"is_loading"`
	Breakdown   Breakdown       `json:"breakdown"`
}

// Outcome classifies a result for metrics: loading, exempt or taxed.
func (r Result) Outcome() string {
	switch {
	case r.IsLoading:
		return "loading"
	case r.Breakdown.LaborExempt || r.Breakdown.PartsExempt:
		return "exempt"
	default:
		return "taxed"
	}
}

func Calculate(in Input) Result {
	labor := SanitizeAmount(in.LaborAmount)
	parts := SanitizeAmount(in.PartsAmount)

	res := Result{
		LaborAmount: labor,
		PartsAmount: parts,
		Subtotal:    labor.Add(parts),
	}

	settings := in.Settings
	if settings == nil {
		res.IsLoading = true
		res.LaborTotal = labor
		res.PartsTotal = parts
		res.GrandTotal = res.Subtotal
		res.Breakdown.Description = "Calculating tax"
		return res
	}

	laborTaxable := settings.ApplyTaxToLabor && !in.Exemption.Labor
	partsTaxable := settings.ApplyTaxToParts && !in.Exemption.Parts

	b := Breakdown{
		CalculationMethod: settings.CalculationMethod,
		DisplayMethod:     settings.DisplayMethod,
		LaborRate:         decimal.Zero,
		PartsRate:         decimal.Zero,
		CombinedRate:      decimal.Zero,
		TaxLabel:          settings.TaxLabel,
		TaxCode:           settings.TaxCode,
		LaborExempt:       in.Exemption.Labor,
		PartsExempt:       in.Exemption.Parts,
	}
	if in.Exemption.Any() {
		b.ExemptionCertificate = strings.TrimSpace(in.Exemption.Certificate)
	}

	switch settings.CalculationMethod {
	case taxdomain.CalculationCombined:
		rate := clampRate(settings.CombinedTaxRate)
		var laborBase, partsBase decimal.Decimal
		if laborTaxable {
			laborBase = labor
		}
		if partsTaxable {
			partsBase = parts
		}
		total := taxOn(laborBase.Add(partsBase), rate)
		// Allocate so the per-axis figures re-sum to the combined tax exactly.
		res.LaborTax = taxOn(laborBase, rate)
		res.PartsTax = total.Sub(res.LaborTax)
		if laborTaxable || partsTaxable {
			b.CombinedRate = rate
		}
	default:
		if laborTaxable {
			b.LaborRate = clampRate(settings.LaborTaxRate)
		}
		if partsTaxable {
			b.PartsRate = clampRate(settings.PartsTaxRate)
		}
		res.LaborTax = taxOn(labor, b.LaborRate)
		res.PartsTax = taxOn(parts, b.PartsRate)
	}

	res.TotalTax = res.LaborTax.Add(res.PartsTax)
	res.LaborTotal = labor.Add(res.LaborTax)
	res.PartsTotal = parts.Add(res.PartsTax)
	res.GrandTotal = res.LaborTotal.Add(res.PartsTotal)

	b.Description = describe(settings, b)
	res.Breakdown = b
	return res
}

// SanitizeAmount maps negative amounts to zero.
func SanitizeAmount(amount decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

// Round rounds to currency precision, half away from zero.
func Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(CurrencyPlaces)
}

type CustomerFlags struct {
	ID          snowflake.ID
	LaborExempt bool
	PartsExempt bool
	Certificate string
}

// ExemptionFor resolves a customer's exemption under the given policy.
// A customer on the shop's exempt list is exempt on both axes.
func ExemptionFor(customer CustomerFlags, settings *taxdomain.TaxSettings, policy ExemptionPolicy) Exemption {
	ex := Exemption{
		Labor:       customer.LaborExempt,
		Parts:       customer.PartsExempt,
		Certificate: strings.TrimSpace(customer.Certificate),
	}
	if policy == PolicyCombined && ex.Any() {
		ex.Labor, ex.Parts = true, true
	}
	if settings.IsCustomerExempt(customer.ID) {
		ex.Labor, ex.Parts = true, true
	}
	return ex
}

func taxOn(amount, rate decimal.Decimal) decimal.Decimal {
	if amount.IsZero() || rate.IsZero() {
		return decimal.Zero
	}
	return Round(amount.Mul(rate).Div(hundred))
}

func clampRate(rate decimal.Decimal) decimal.Decimal {
	switch {
	case rate.IsNegative():
		return decimal.Zero
	case rate.GreaterThan(hundred):
		return hundred
	default:
		return rate
	}
}

func describe(settings *taxdomain.TaxSettings, b Breakdown) string {
	label := strings.TrimSpace(settings.TaxLabel)
	if label == "" {
		label = "Tax"
	}

	if b.LaborExempt && b.PartsExempt {
		if b.ExemptionCertificate != "" {
			return fmt.Sprintf("Tax exempt (certificate %s)", b.ExemptionCertificate)
		}
		return "Tax exempt"
	}

	var desc string
	if settings.CalculationMethod == taxdomain.CalculationCombined {
		if b.CombinedRate.IsZero() {
			desc = "No tax applied"
		} else {
			desc = fmt.Sprintf("%s %s%% combined", label, b.CombinedRate.String())
		}
	} else {
		var parts []string
		if b.LaborRate.IsPositive() {
			parts = append(parts, b.LaborRate.String()+"% labor")
		}
		if b.PartsRate.IsPositive() {
			parts = append(parts, b.PartsRate.String()+"% parts")
		}
		if len(parts) == 0 {
			desc = "No tax applied"
		} else {
			desc = label + " " + strings.Join(parts, ", ")
		}
	}

	switch {
	case b.LaborExempt:
		desc += " (labor exempt"
	case b.PartsExempt:
		desc += " (parts exempt"
	default:
		return desc
	}
	if b.ExemptionCertificate != "" {
		desc += ", certificate " + b.ExemptionCertificate
	}
	return desc + ")"
}
