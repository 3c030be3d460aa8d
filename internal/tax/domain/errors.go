package domain

import "errors"

var (
	ErrInvalidTaxRate   = errors.New("invalid_tax_rate")
	ErrBusinessNotFound = errors.New("business_not_found")
)
