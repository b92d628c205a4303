package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/shopdesk/internal/audit/domain"
	customerdomain "github.com/smallbiznis/shopdesk/internal/customer/domain"
	"github.com/smallbiznis/shopdesk/internal/observability/logger"
	"github.com/smallbiznis/shopdesk/internal/shopcontext"
	"github.com/smallbiznis/shopdesk/internal/tax/calculator"
	taxdomain "github.com/smallbiznis/shopdesk/internal/tax/domain"
	workorderdomain "github.com/smallbiznis/shopdesk/internal/workorder/domain"
	"go.uber.org/zap"
)

type calculateTaxRequest struct {
	LaborAmount json.RawMessage   `json:"labor_amount"`
	PartsAmount json.RawMessage   `json:"parts_amount"`
	CustomerID  string            `json:"customer_id"`
	Exemption   *exemptionRequest `json:"exemption"`
}

type exemptionRequest struct {
	Labor       bool   `json:"labor"`
	Parts       bool   `json:"parts"`
	Certificate string `json:"certificate"`
}

type calculateTaxResponse struct {
	calculator.Result
	Notice string `json:"notice,omitempty"`
}

func (s *Server) GetTaxSettings(c *gin.Context) {
	shopID, ok := shopcontext.ShopIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	settings, err := s.taxSettings.GetSettings(c.Request.Context(), shopID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": settings})
}

func (s *Server) UpdateTaxSettings(c *gin.Context) {
	shopID, ok := shopcontext.ShopIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req taxdomain.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	settings, err := s.taxSettings.UpdateSettings(c.Request.Context(), shopID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, auditdomain.ActionTaxSettingsUpdate, "tax_settings", settings.ID.String(), map[string]any{
		"labor_tax_rate":     settings.LaborTaxRate.String(),
		"parts_tax_rate":     settings.PartsTaxRate.String(),
		"combined_tax_rate":  settings.CombinedTaxRate.String(),
		"calculation_method": string(settings.CalculationMethod),
		"apply_tax_to_labor": settings.ApplyTaxToLabor,
		"apply_tax_to_parts": settings.ApplyTaxToParts,
	})

	c.JSON(http.StatusOK, gin.H{"data": settings})
}

func (s *Server) RefreshTaxSettings(c *gin.Context) {
	shopID, ok := shopcontext.ShopIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	settings, err := s.taxSettings.Refresh(c.Request.Context(), shopID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": settings})
}

// CalculateTax prices an ad-hoc quote with the shop's current settings.
// Malformed amounts are treated as zero.
func (s *Server) CalculateTax(c *gin.Context) {
	ctx := c.Request.Context()
	shopID, ok := shopcontext.ShopIDFromContext(ctx)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req calculateTaxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	customerID, err := parseOptionalSnowflakeID(req.CustomerID)
	if err != nil {
		AbortWithError(c, newValidationError("customer_id", "invalid_customer_id", "invalid customer id"))
		return
	}

	var customer *customerdomain.Customer
	if customerID != nil {
		found, err := s.customerSvc.GetByID(ctx, customerdomain.GetCustomerRequest{ID: customerID.String()})
		if err != nil {
			AbortWithError(c, err)
			return
		}
		customer = &found
	}

	var notice string
	settings, err := s.taxSettings.GetSettings(ctx, shopID)
	if err != nil {
		logger.WithContext(ctx, s.log).Warn("tax settings unavailable, quoting without tax", zap.Error(err))
		settings = nil
		notice = workorderdomain.NoticeTaxSettingsUnavailable
	}

	var exemption calculator.Exemption
	switch {
	case customer != nil:
		exemption = calculator.ExemptionFor(calculator.CustomerFlags{
			ID:          customer.ID,
			LaborExempt: customer.LaborTaxExempt,
			PartsExempt: customer.PartsTaxExempt,
			Certificate: customer.Certificate(),
		}, settings, s.policy)
	case req.Exemption != nil:
		exemption = calculator.Exemption{
			Labor:       req.Exemption.Labor,
			Parts:       req.Exemption.Parts,
			Certificate: req.Exemption.Certificate,
		}
	}

	result := calculator.Calculate(calculator.Input{
		LaborAmount: lenientAmount(req.LaborAmount),
		PartsAmount: lenientAmount(req.PartsAmount),
		Settings:    settings,
		Exemption:   exemption,
	})
	s.obsMetrics.RecordTaxCalculation(ctx, string(result.Breakdown.CalculationMethod), result.Outcome())

	c.JSON(http.StatusOK, gin.H{"data": calculateTaxResponse{Result: result, Notice: notice}})
}

// lenientAmount accepts a JSON number or numeric string and maps anything else to zero.
func lenientAmount(raw json.RawMessage) decimal.Decimal {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return decimal.Zero
	}

	var number json.Number
	if err := json.Unmarshal(raw, &number); err != nil {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return decimal.Zero
		}
		number = json.Number(strings.TrimSpace(text))
	}
	parsed, err := decimal.NewFromString(number.String())
	if err != nil {
		return decimal.Zero
	}
	return calculator.SanitizeAmount(parsed)
}
