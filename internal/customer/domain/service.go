package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/shopdesk/pkg/db/pagination"
)

type ListCustomerRequest struct {
	PageToken string
	PageSize  int32
	Name      string
	Email     string
}

type ListCustomerFilter struct {
	Name  string
	Email string
}

type ListCustomerResponse struct {
	pagination.PageInfo
	Customers []Customer `json:"customers"`
}

type CreateCustomerRequest struct {
	Name                 string  `json:"name"`
	Email                string  `json:"email"`
	Phone                string  `json:"phone"`
	LaborTaxExempt       bool    `json:"labor_tax_exempt"`
	PartsTaxExempt       bool    `json:"parts_tax_exempt"`
	ExemptionCertificate *string `json:"exemption_certificate"`
}

type GetCustomerRequest struct {
	ID string
}

// UpdateTaxExemptionRequest patches exemption flags; nil fields are unchanged.
// An empty certificate clears it.
type UpdateTaxExemptionRequest struct {
	ID                   string  `json:"-"`
	LaborTaxExempt       *bool   `json:"labor_tax_exempt"`
	PartsTaxExempt       *bool   `json:"parts_tax_exempt"`
	ExemptionCertificate *string `json:"exemption_certificate"`
}

type Service interface {
	Create(context.Context, CreateCustomerRequest) (Customer, error)
	List(context.Context, ListCustomerRequest) (ListCustomerResponse, error)
	GetByID(context.Context, GetCustomerRequest) (Customer, error)
	UpdateTaxExemption(context.Context, UpdateTaxExemptionRequest) (Customer, error)
}

var (
	ErrInvalidShop        = errors.New("invalid_shop")
	ErrInvalidName        = errors.New("invalid_name")
	ErrInvalidEmail       = errors.New("invalid_email")
	ErrInvalidID          = errors.New("invalid_id")
	ErrInvalidCertificate = errors.New("invalid_certificate")
	ErrNotFound           = errors.New("not_found")
)
