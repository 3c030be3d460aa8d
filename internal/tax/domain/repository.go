package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Repository interface {
	// GetDefaultRate returns the business's default tax rate, or nil when the
	// business does not exist.
	GetDefaultRate(ctx context.Context, businessID snowflake.ID) (*decimal.Decimal, error)
}
