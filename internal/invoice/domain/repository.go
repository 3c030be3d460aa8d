package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// ListFilter narrows a paged invoice listing.
type ListFilter struct {
	Status   *InvoiceStatus
	ClientID *snowflake.ID
	Search   string
	Page     int
	Limit    int
}

// StatusUpdate carries a conditional status change. Timestamp fields are only
// written when the column is still NULL.
type StatusUpdate struct {
	InvoiceID       snowflake.ID
	BusinessID      snowflake.ID
	From            InvoiceStatus
	To              InvoiceStatus
	ExpectedVersion int64
	SentAt          *time.Time
	ViewedAt        *time.Time
	CancelledAt     *time.Time
	PaidDate        *time.Time
	PaidAmount      *int64
	UpdatedAt       time.Time
}

// Repository persists invoices. Every method takes the handle to run on so the
// service can compose calls inside one transaction.
type Repository interface {
	// AllocateNextNumber atomically reserves the business's next invoice
	// sequence and returns it.
	AllocateNextNumber(ctx context.Context, db *gorm.DB, businessID snowflake.ID) (int64, error)
	CreateInvoice(ctx context.Context, db *gorm.DB, invoice *InvoiceFull) error
	// UpdateInvoice replaces header and items of a draft whose version still
	// matches expectedVersion. It reports false when no row matched.
	UpdateInvoice(ctx context.Context, db *gorm.DB, invoice *InvoiceFull, expectedVersion int64) (bool, error)
	GetInvoice(ctx context.Context, db *gorm.DB, businessID, id snowflake.ID) (*InvoiceFull, error)
	DeleteInvoice(ctx context.Context, db *gorm.DB, businessID, id snowflake.ID, expectedVersion int64) (bool, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, update StatusUpdate) (bool, error)
	List(ctx context.Context, db *gorm.DB, businessID snowflake.ID, filter ListFilter) ([]Invoice, int64, error)
	ListOverdueCandidates(ctx context.Context, db *gorm.DB, before time.Time, limit int) ([]Invoice, error)
}
