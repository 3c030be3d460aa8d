package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	businessdomain "github.com/smallbiznis/invoicer/internal/business/domain"
	clientdomain "github.com/smallbiznis/invoicer/internal/client/domain"
	"gorm.io/gorm"
)

const (
	defaultBusinessName   = "Main"
	defaultBusinessEmail  = "billing@invoicer.local"
	defaultInvoicePrefix  = "INV"
	defaultCurrency       = "USD"
	defaultClientName     = "Sample Client"
	defaultClientEmail    = "client@invoicer.local"
	defaultClientIDOffset = 1
)

// EnsureDefaultBusiness seeds a business with the given ID and one sample
// client so a fresh install can issue invoices right away. Existing rows are
// left untouched; in particular the invoice counter is never reset.
func EnsureDefaultBusiness(db *gorm.DB, businessID int64) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if businessID <= 0 {
		return errors.New("seed business id must be positive")
	}

	ctx := context.Background()
	id := snowflake.ID(businessID)
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureBusinessTx(ctx, tx, id); err != nil {
			return err
		}
		return ensureClientTx(ctx, tx, id, snowflake.ID(businessID+defaultClientIDOffset))
	})
}

func ensureBusinessTx(ctx context.Context, tx *gorm.DB, id snowflake.ID) error {
	var existing businessdomain.Business
	err := tx.WithContext(ctx).Where("id = ?", id).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	now := time.Now().UTC()
	return tx.WithContext(ctx).Create(&businessdomain.Business{
		ID:                id,
		Name:              defaultBusinessName,
		Email:             defaultBusinessEmail,
		InvoicePrefix:     defaultInvoicePrefix,
		InvoiceNextNumber: 1,
		DefaultCurrency:   defaultCurrency,
		DefaultTaxRate:    decimal.Zero,
		CreatedAt:         now,
		UpdatedAt:         now,
	}).Error
}

func ensureClientTx(ctx context.Context, tx *gorm.DB, businessID, clientID snowflake.ID) error {
	var count int64
	if err := tx.WithContext(ctx).
		Model(&clientdomain.Client{}).
		Where("business_id = ?", businessID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	return tx.WithContext(ctx).Create(&clientdomain.Client{
		ID:         clientID,
		BusinessID: businessID,
		Name:       defaultClientName,
		Email:      defaultClientEmail,
		CreatedAt:  now,
		UpdatedAt:  now,
	}).Error
}
