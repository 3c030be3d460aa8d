package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/invoicer/internal/invoice/domain"
	"github.com/smallbiznis/invoicer/internal/money"
	taxdomain "github.com/smallbiznis/invoicer/internal/tax/domain"
	"go.uber.org/fx"
)

type ResolverParams struct {
	fx.In

	Repository taxdomain.Repository
}

type resolver struct {
	repo taxdomain.Repository
}

func NewResolver(p ResolverParams) taxdomain.TaxResolver {
	return &resolver{repo: p.Repository}
}

func (r *resolver) ResolveRate(ctx context.Context, businessID snowflake.ID) (decimal.Decimal, error) {
	rate, err := r.repo.GetDefaultRate(ctx, businessID)
	if err != nil {
		return decimal.Zero, err
	}
	if rate == nil {
		return decimal.Zero, taxdomain.ErrBusinessNotFound
	}
	if err := ValidateRate(*rate); err != nil {
		return decimal.Zero, fmt.Errorf("%w: business %s has rate %s", taxdomain.ErrInvalidTaxRate, businessID, rate.String())
	}
	return *rate, nil
}

// ComputeTaxExclusive calculates tax added on top of the taxable base.
// Rounding happens only here to keep stored values integer-safe.
func ComputeTaxExclusive(base int64, rate decimal.Decimal) int64 {
	if base <= 0 || !rate.IsPositive() {
		return 0
	}
	return money.Mul(base, rate)
}

// ValidateRate accepts fractions in [0, 1].
func ValidateRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return invoicedomain.NewValidationError("tax_rate", "out_of_range", "tax rate must be a fraction between 0 and 1")
	}
	return nil
}
