package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/invoicer/internal/invoice/domain"
	dbutil "github.com/smallbiznis/invoicer/pkg/db"
	"github.com/smallbiznis/invoicer/pkg/db/option"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() invoicedomain.Repository {
	return &repo{}
}

// AllocateNextNumber reserves the current counter value and advances it in a
// single short transaction. The UPDATE takes the row lock, so concurrent
// callers for the same business serialize here and never share a value.
func (r *repo) AllocateNextNumber(ctx context.Context, db *gorm.DB, businessID snowflake.ID) (int64, error) {
	var seq int64
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(
			`UPDATE businesses
			 SET invoice_next_number = invoice_next_number + 1
			 WHERE id = ?`,
			businessID,
		)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return invoicedomain.ErrBusinessNotFound
		}
		return tx.Raw(
			`SELECT invoice_next_number - 1 FROM businesses WHERE id = ?`,
			businessID,
		).Scan(&seq).Error
	})
	if err != nil {
		return 0, classify(err)
	}
	return seq, nil
}

func (r *repo) CreateInvoice(ctx context.Context, db *gorm.DB, invoice *invoicedomain.InvoiceFull) error {
	if err := db.WithContext(ctx).Create(&invoice.Invoice).Error; err != nil {
		return classify(err)
	}
	return classify(r.insertItems(ctx, db, invoice.Items))
}

func (r *repo) UpdateInvoice(ctx context.Context, db *gorm.DB, invoice *invoicedomain.InvoiceFull, expectedVersion int64) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET client_id = ?, currency = ?, exchange_rate_to_base = ?,
		     subtotal = ?, tax_rate = ?, tax_amount = ?,
		     discount_type = ?, discount_value = ?, discount_amount = ?, total = ?,
		     issue_date = ?, due_date = ?, notes = ?,
		     version = version + 1, updated_at = ?
		 WHERE business_id = ? AND id = ? AND version = ? AND status = ?`,
		invoice.ClientID,
		invoice.Currency,
		invoice.ExchangeRateToBase,
		invoice.Subtotal,
		invoice.TaxRate,
		invoice.TaxAmount,
		string(invoice.DiscountType),
		invoice.DiscountValue,
		invoice.DiscountAmount,
		invoice.Total,
		invoice.IssueDate,
		invoice.DueDate,
		nullableString(invoice.Notes),
		invoice.UpdatedAt,
		invoice.BusinessID,
		invoice.ID,
		expectedVersion,
		string(invoicedomain.InvoiceStatusDraft),
	)
	if res.Error != nil {
		return false, classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	if err := db.WithContext(ctx).Exec(
		`DELETE FROM invoice_items WHERE invoice_id = ?`,
		invoice.ID,
	).Error; err != nil {
		return false, classify(err)
	}
	if err := r.insertItems(ctx, db, invoice.Items); err != nil {
		return false, classify(err)
	}

	invoice.Version = expectedVersion + 1
	return true, nil
}

func (r *repo) GetInvoice(ctx context.Context, db *gorm.DB, businessID, id snowflake.ID) (*invoicedomain.InvoiceFull, error) {
	var invoice invoicedomain.Invoice
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM invoices WHERE business_id = ? AND id = ?`,
		businessID,
		id,
	).Scan(&invoice).Error
	if err != nil {
		return nil, classify(err)
	}
	if invoice.ID == 0 {
		return nil, nil
	}

	var items []invoicedomain.InvoiceItem
	err = db.WithContext(ctx).Raw(
		`SELECT * FROM invoice_items WHERE invoice_id = ? ORDER BY sort_order ASC, id ASC`,
		id,
	).Scan(&items).Error
	if err != nil {
		return nil, classify(err)
	}

	return &invoicedomain.InvoiceFull{Invoice: invoice, Items: items}, nil
}

// DeleteInvoice removes a draft whose version still matches. Items go after
// the header so a lost race never strips items from a surviving invoice.
func (r *repo) DeleteInvoice(ctx context.Context, db *gorm.DB, businessID, id snowflake.ID, expectedVersion int64) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`DELETE FROM invoices
		 WHERE business_id = ? AND id = ? AND version = ? AND status = ?`,
		businessID,
		id,
		expectedVersion,
		string(invoicedomain.InvoiceStatusDraft),
	)
	if res.Error != nil {
		return false, classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	if err := db.WithContext(ctx).Exec(
		`DELETE FROM invoice_items WHERE invoice_id = ?`,
		id,
	).Error; err != nil {
		return false, classify(err)
	}
	return true, nil
}

// UpdateStatus applies a conditional status change. Lifecycle timestamps are
// write-once; paid fields are only written when provided.
func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, u invoicedomain.StatusUpdate) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET status = ?,
		     sent_at = COALESCE(sent_at, ?),
		     viewed_at = COALESCE(viewed_at, ?),
		     cancelled_at = COALESCE(cancelled_at, ?),
		     paid_date = COALESCE(?, paid_date),
		     paid_amount = COALESCE(?, paid_amount),
		     version = version + 1,
		     updated_at = ?
		 WHERE business_id = ? AND id = ? AND status = ? AND version = ?`,
		string(u.To),
		nullableTime(u.SentAt),
		nullableTime(u.ViewedAt),
		nullableTime(u.CancelledAt),
		nullableTime(u.PaidDate),
		nullableInt64(u.PaidAmount),
		u.UpdatedAt,
		u.BusinessID,
		u.InvoiceID,
		string(u.From),
		u.ExpectedVersion,
	)
	if res.Error != nil {
		return false, classify(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, businessID snowflake.ID, filter invoicedomain.ListFilter) ([]invoicedomain.Invoice, int64, error) {
	stmt := db.WithContext(ctx).
		Table("invoices AS i").
		Joins("LEFT JOIN clients c ON c.id = i.client_id AND c.business_id = i.business_id").
		Where("i.business_id = ?", businessID)

	if filter.Status != nil {
		stmt = stmt.Where("i.status = ?", string(*filter.Status))
	}
	if filter.ClientID != nil {
		stmt = stmt.Where("i.client_id = ?", *filter.ClientID)
	}
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		pattern := "%" + escapeLike(search) + "%"
		stmt = stmt.Where(
			"(LOWER(i.invoice_number) LIKE ? ESCAPE '!' OR LOWER(COALESCE(c.name, '')) LIKE ? ESCAPE '!')",
			pattern,
			pattern,
		)
	}

	var total int64
	if err := stmt.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, classify(err)
	}

	var invoices []invoicedomain.Invoice
	query := option.Apply(stmt.Session(&gorm.Session{}).Select("i.*"),
		option.WithSortBy("i.issue_date", option.Desc),
		option.WithSortBy("i.id", option.Desc),
		option.WithOffset(filter.Page, filter.Limit),
	)
	if err := query.Scan(&invoices).Error; err != nil {
		return nil, 0, classify(err)
	}
	return invoices, total, nil
}

func (r *repo) ListOverdueCandidates(ctx context.Context, db *gorm.DB, before time.Time, limit int) ([]invoicedomain.Invoice, error) {
	var invoices []invoicedomain.Invoice
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM invoices
		 WHERE status IN (?, ?) AND paid_date IS NULL AND due_date < ?
		 ORDER BY due_date ASC, id ASC
		 LIMIT ?`,
		string(invoicedomain.InvoiceStatusSent),
		string(invoicedomain.InvoiceStatusViewed),
		before,
		limit,
	).Scan(&invoices).Error
	if err != nil {
		return nil, classify(err)
	}
	return invoices, nil
}

func (r *repo) insertItems(ctx context.Context, db *gorm.DB, items []invoicedomain.InvoiceItem) error {
	if len(items) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&items).Error
}

// classify maps driver errors onto the domain error kinds.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, invoicedomain.ErrBusinessNotFound),
		errors.Is(err, invoicedomain.ErrTransientStorage),
		errors.Is(err, invoicedomain.ErrConflict):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case dbutil.IsTransientErr(err):
		return fmt.Errorf("%w: %v", invoicedomain.ErrTransientStorage, err)
	case dbutil.IsDuplicateKeyErr(err):
		return fmt.Errorf("%w: %v", invoicedomain.ErrConflict, err)
	default:
		return err
	}
}

func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullableInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
