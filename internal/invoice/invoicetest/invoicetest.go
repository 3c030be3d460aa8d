// Package invoicetest holds sqlite fixtures shared by invoice package tests.
package invoicetest

import (
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/invoicer/internal/audit/domain"
	businessdomain "github.com/smallbiznis/invoicer/internal/business/domain"
	clientdomain "github.com/smallbiznis/invoicer/internal/client/domain"
	invoicedomain "github.com/smallbiznis/invoicer/internal/invoice/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Epoch is the default fixture time.
var Epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// NewDB opens a private in-memory database with the invoicing schema.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared&_pragma=busy_timeout(5000)"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&businessdomain.Business{},
		&clientdomain.Client{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceItem{},
		&auditdomain.AuditLog{},
	))
	return db
}

// NewNode returns a snowflake node for fixture IDs.
func NewNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return node
}

// SeedBusiness inserts a business whose counter starts at nextNumber.
func SeedBusiness(t *testing.T, db *gorm.DB, id snowflake.ID, prefix string, nextNumber int64) businessdomain.Business {
	t.Helper()
	b := businessdomain.Business{
		ID:                id,
		Name:              "Acme Studio",
		Email:             "billing@acme.test",
		Address:           "1 Main St",
		InvoicePrefix:     prefix,
		InvoiceNextNumber: nextNumber,
		DefaultCurrency:   "USD",
		DefaultTaxRate:    decimal.RequireFromString("0.05"),
		CreatedAt:         Epoch,
		UpdatedAt:         Epoch,
	}
	require.NoError(t, db.Create(&b).Error)
	return b
}

// SeedClient inserts a client of businessID.
func SeedClient(t *testing.T, db *gorm.DB, businessID, id snowflake.ID, name string) clientdomain.Client {
	t.Helper()
	c := clientdomain.Client{
		ID:         id,
		BusinessID: businessID,
		Name:       name,
		Email:      strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@client.test",
		Address:    "2 Side St",
		CreatedAt:  Epoch,
		UpdatedAt:  Epoch,
	}
	require.NoError(t, db.Create(&c).Error)
	return c
}

// NextNumber reads the business counter.
func NextNumber(t *testing.T, db *gorm.DB, businessID snowflake.ID) int64 {
	t.Helper()
	var next int64
	require.NoError(t, db.Raw(`SELECT invoice_next_number FROM businesses WHERE id = ?`, businessID).Scan(&next).Error)
	return next
}
