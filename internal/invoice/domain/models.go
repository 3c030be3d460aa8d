// Package domain contains persistence models for invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusViewed    InvoiceStatus = "viewed"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// Statuses lists every lifecycle state in table order.
var Statuses = []InvoiceStatus{
	InvoiceStatusDraft,
	InvoiceStatusSent,
	InvoiceStatusViewed,
	InvoiceStatusPaid,
	InvoiceStatusOverdue,
	InvoiceStatusCancelled,
}

// ParseStatus validates a raw status value.
func ParseStatus(raw string) (InvoiceStatus, bool) {
	for _, s := range Statuses {
		if string(s) == raw {
			return s, true
		}
	}
	return "", false
}

// Invoice is the persisted invoice header. Totals are frozen at create/edit
// time and never recomputed on read.
type Invoice struct {
	ID                 snowflake.ID    `gorm:"primaryKey" json:"id"`
	BusinessID         snowflake.ID    `gorm:"not null;index;uniqueIndex:ux_invoices_business_number" json:"business_id"`
	ClientID           snowflake.ID    `gorm:"not null;index" json:"client_id"`
	InvoiceNumber      string          `gorm:"type:text;not null;uniqueIndex:ux_invoices_business_number" json:"invoice_number"`
	Sequence           int64           `gorm:"not null" json:"sequence"`
	Status             InvoiceStatus   `gorm:"type:text;not null;default:'draft';index" json:"status"`
	Currency           string          `gorm:"type:text;not null" json:"currency"`
	ExchangeRateToBase decimal.Decimal `gorm:"type:numeric(20,10);not null" json:"exchange_rate_to_base"`
	Subtotal           int64           `gorm:"not null;default:0" json:"subtotal"`
	TaxRate            decimal.Decimal `gorm:"type:numeric(9,6);not null" json:"tax_rate"`
	TaxAmount          int64           `gorm:"not null;default:0" json:"tax_amount"`
	DiscountType       DiscountKind    `gorm:"type:text;not null" json:"discount_type"`
	DiscountValue      decimal.Decimal `gorm:"type:numeric(20,6);not null" json:"discount_value"`
	DiscountAmount     int64           `gorm:"not null;default:0" json:"discount_amount"`
	Total              int64           `gorm:"not null;default:0" json:"total"`
	IssueDate          time.Time       `gorm:"not null" json:"issue_date"`
	DueDate            time.Time       `gorm:"not null;index" json:"due_date"`
	PaidDate           *time.Time      `json:"paid_date,omitempty"`
	PaidAmount         int64           `gorm:"not null;default:0" json:"paid_amount"`
	SentAt             *time.Time      `json:"sent_at,omitempty"`
	ViewedAt           *time.Time      `json:"viewed_at,omitempty"`
	CancelledAt        *time.Time      `json:"cancelled_at,omitempty"`
	Notes              *string         `gorm:"type:text" json:"notes,omitempty"`
	Version            int64           `gorm:"not null;default:1" json:"version"`
	CreatedAt          time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// Discount rebuilds the discount variant from its stored columns.
func (i Invoice) Discount() (DiscountSpec, error) {
	return DiscountFromColumns(i.DiscountType, i.DiscountValue)
}

// InvoiceItem represents a line on an invoice.
type InvoiceItem struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	BusinessID  snowflake.ID    `gorm:"not null;index" json:"business_id"`
	InvoiceID   snowflake.ID    `gorm:"not null;index;uniqueIndex:ux_invoice_items_sort" json:"invoice_id"`
	Description string          `gorm:"type:text;not null" json:"description"`
	Quantity    decimal.Decimal `gorm:"type:numeric(20,6);not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(24,6);not null" json:"unit_price"`
	Amount      int64           `gorm:"not null" json:"amount"`
	SortOrder   int             `gorm:"not null;uniqueIndex:ux_invoice_items_sort" json:"sort_order"`
	CreatedAt   time.Time       `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (InvoiceItem) TableName() string { return "invoice_items" }

// InvoiceFull is an invoice with its ordered line items.
type InvoiceFull struct {
	Invoice
	Items []InvoiceItem `json:"items"`
}
