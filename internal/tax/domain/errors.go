package domain

import "errors"

var (
	ErrInvalidShop              = errors.New("invalid_shop")
	ErrInvalidTaxRate           = errors.New("invalid_tax_rate")
	ErrInvalidCalculationMethod = errors.New("invalid_calculation_method")
	ErrInvalidDisplayMethod     = errors.New("invalid_display_method")
	ErrInvalidTaxLabel          = errors.New("invalid_tax_label")
	ErrInvalidCustomerID        = errors.New("invalid_customer_id")
	ErrNotFound                 = errors.New("not_found")
)
