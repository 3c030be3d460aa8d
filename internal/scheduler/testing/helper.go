// Package testing moves invoices through time so scheduler jobs have work.
package testing

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/invoicer/internal/invoice/domain"
	"gorm.io/gorm"
)

// TimeAccelerator rewrites due dates instead of waiting for them.
type TimeAccelerator struct {
	db *gorm.DB
}

func NewTimeAccelerator(db *gorm.DB) *TimeAccelerator {
	return &TimeAccelerator{db: db}
}

// MakePastDue moves the due date of an open invoice to the day before now.
func (ta *TimeAccelerator) MakePastDue(ctx context.Context, invoiceID snowflake.ID, now time.Time) error {
	return ta.db.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET due_date = ?
		 WHERE id = ? AND status IN (?, ?)`,
		dayBefore(now),
		invoiceID,
		string(invoicedomain.InvoiceStatusSent),
		string(invoicedomain.InvoiceStatusViewed),
	).Error
}

// MakeAllPastDue backdates every open invoice of a business.
func (ta *TimeAccelerator) MakeAllPastDue(ctx context.Context, businessID snowflake.ID, now time.Time) (int64, error) {
	result := ta.db.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET due_date = ?
		 WHERE business_id = ? AND status IN (?, ?) AND due_date >= ?`,
		dayBefore(now),
		businessID,
		string(invoicedomain.InvoiceStatusSent),
		string(invoicedomain.InvoiceStatusViewed),
		dayBefore(now),
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// SetDueDate sets an arbitrary due date.
func (ta *TimeAccelerator) SetDueDate(ctx context.Context, invoiceID snowflake.ID, due time.Time) error {
	return ta.db.WithContext(ctx).Exec(
		`UPDATE invoices SET due_date = ? WHERE id = ?`,
		due.UTC(),
		invoiceID,
	).Error
}

func dayBefore(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
}
