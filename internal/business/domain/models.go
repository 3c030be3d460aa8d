package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Business is the issuer of invoices. InvoiceNextNumber is owned by the
// invoice number allocator and never written through this package.
type Business struct {
	ID                snowflake.ID    `gorm:"primaryKey" json:"id"`
	Name              string          `gorm:"type:text;not null" json:"name"`
	Email             string          `gorm:"type:text;not null" json:"email"`
	Address           string          `gorm:"type:text;not null;default:''" json:"address"`
	InvoicePrefix     string          `gorm:"type:text;not null;default:'INV'" json:"invoice_prefix"`
	InvoiceNextNumber int64           `gorm:"not null;default:1" json:"-"`
	DefaultCurrency   string          `gorm:"type:text;not null;default:'USD'" json:"default_currency"`
	DefaultTaxRate    decimal.Decimal `gorm:"type:numeric(9,6);not null;default:0" json:"default_tax_rate"`
	CreatedAt         time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"not null" json:"updated_at"`
}

func (Business) TableName() string { return "businesses" }
