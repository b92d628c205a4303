package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/shopdesk/internal/audit/domain"
	customerdomain "github.com/smallbiznis/shopdesk/internal/customer/domain"
	"github.com/smallbiznis/shopdesk/pkg/db/pagination"
)

type createCustomerRequest struct {
	Name                 string  `json:"name"`
	Email                string  `json:"email"`
	Phone                string  `json:"phone"`
	LaborTaxExempt       bool    `json:"labor_tax_exempt"`
	PartsTaxExempt       bool    `json:"parts_tax_exempt"`
	ExemptionCertificate *string `json:"exemption_certificate"`
}

func (s *Server) CreateCustomer(c *gin.Context) {
	var req createCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.customerSvc.Create(c.Request.Context(), customerdomain.CreateCustomerRequest{
		Name:                 strings.TrimSpace(req.Name),
		Email:                strings.TrimSpace(req.Email),
		Phone:                strings.TrimSpace(req.Phone),
		LaborTaxExempt:       req.LaborTaxExempt,
		PartsTaxExempt:       req.PartsTaxExempt,
		ExemptionCertificate: req.ExemptionCertificate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, auditdomain.ActionCustomerCreate, "customer", resp.ID.String(), map[string]any{
		"name":             resp.Name,
		"email":            resp.Email,
		"labor_tax_exempt": resp.LaborTaxExempt,
		"parts_tax_exempt": resp.PartsTaxExempt,
	})

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListCustomers(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Name  string `form:"name"`
		Email string `form:"email"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.customerSvc.List(c.Request.Context(), customerdomain.ListCustomerRequest{
		PageToken: query.PageToken,
		PageSize:  int32(query.PageSize),
		Name:      strings.TrimSpace(query.Name),
		Email:     strings.TrimSpace(query.Email),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetCustomerByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.customerSvc.GetByID(c.Request.Context(), customerdomain.GetCustomerRequest{
		ID: id,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateCustomerTaxExemption(c *gin.Context) {
	var req customerdomain.UpdateTaxExemptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ID = strings.TrimSpace(c.Param("id"))

	resp, err := s.customerSvc.UpdateTaxExemption(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, auditdomain.ActionCustomerExemptionUpdate, "customer", resp.ID.String(), map[string]any{
		"labor_tax_exempt":      resp.LaborTaxExempt,
		"parts_tax_exempt":      resp.PartsTaxExempt,
		"exemption_certificate": resp.Certificate(),
	})

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
