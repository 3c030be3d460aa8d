package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	taxdomain "github.com/smallbiznis/invoicer/internal/tax/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) taxdomain.Repository {
	return &repository{db: db}
}

type defaultRateRow struct {
	ID             snowflake.ID
	DefaultTaxRate decimal.Decimal
}

func (r *repository) GetDefaultRate(ctx context.Context, businessID snowflake.ID) (*decimal.Decimal, error) {
	var row defaultRateRow
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, default_tax_rate
		 FROM businesses
		 WHERE id = ?`,
		businessID,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row.DefaultTaxRate, nil
}
