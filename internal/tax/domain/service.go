package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// TaxResolver returns the tax rate applied to new invoices of a business.
type TaxResolver interface {
	ResolveRate(ctx context.Context, businessID snowflake.ID) (decimal.Decimal, error)
}
