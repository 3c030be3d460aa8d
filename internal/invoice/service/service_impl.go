package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/invoicer/internal/audit/domain"
	businessdomain "github.com/smallbiznis/invoicer/internal/business/domain"
	"github.com/smallbiznis/invoicer/internal/businesscontext"
	clientdomain "github.com/smallbiznis/invoicer/internal/client/domain"
	"github.com/smallbiznis/invoicer/internal/clock"
	"github.com/smallbiznis/invoicer/internal/config"
	"github.com/smallbiznis/invoicer/internal/invoice/calc"
	invoicedomain "github.com/smallbiznis/invoicer/internal/invoice/domain"
	"github.com/smallbiznis/invoicer/internal/invoice/numbering"
	"github.com/smallbiznis/invoicer/internal/invoice/status"
	"github.com/smallbiznis/invoicer/internal/money"
	"github.com/smallbiznis/invoicer/internal/observability/metrics"
	taxdomain "github.com/smallbiznis/invoicer/internal/tax/domain"
	"github.com/smallbiznis/invoicer/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type numberAllocator interface {
	Allocate(ctx context.Context, businessID snowflake.ID) (numbering.Number, error)
}

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Config     *config.InvoicingConfigHolder
	Repo       invoicedomain.Repository
	Allocator  *numbering.Allocator
	Businesses businessdomain.Service
	Clients    clientdomain.Repository
	Tax        taxdomain.TaxResolver
	AuditSvc   auditdomain.Service       `optional:"true"`
	PDF        invoicedomain.PDFRenderer `optional:"true"`
	Notifier   invoicedomain.Notifier    `optional:"true"`
	Metrics    *metrics.Metrics          `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID      *snowflake.Node
	clock      clock.Clock
	cfg        *config.InvoicingConfigHolder
	repo       invoicedomain.Repository
	allocator  numberAllocator
	businesses businessdomain.Service
	clients    clientdomain.Repository
	tax        taxdomain.TaxResolver
	auditSvc   auditdomain.Service
	pdf        invoicedomain.PDFRenderer
	notifier   invoicedomain.Notifier
	metrics    *metrics.Metrics
}

func NewService(p ServiceParam) invoicedomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("invoice.service"),
		genID: p.GenID,

		clock:      p.Clock,
		cfg:        p.Config,
		repo:       p.Repo,
		allocator:  p.Allocator,
		businesses: p.Businesses,
		clients:    p.Clients,
		tax:        p.Tax,
		auditSvc:   p.AuditSvc,
		pdf:        p.PDF,
		notifier:   p.Notifier,
		metrics:    p.Metrics,
	}
}

// Create validates the payload, computes totals, reserves a number and
// persists the draft. A failed insert after allocation leaves a numbering gap.
func (s *Service) Create(ctx context.Context, req invoicedomain.CreateInvoiceRequest) (invoicedomain.InvoiceFull, error) {
	businessID, err := s.businessIDFromContext(ctx)
	if err != nil {
		return invoicedomain.InvoiceFull{}, err
	}
	business, err := s.loadBusiness(ctx, businessID)
	if err != nil {
		return invoicedomain.InvoiceFull{}, err
	}

	cfg := s.cfg.Get()
	currency := business.DefaultCurrency
	if strings.TrimSpace(currency) == "" {
		currency = cfg.DefaultCurrency
	}
	in, err := validateInput(req.InvoiceInput, inputDefaults{
		Currency: currency,
		DueDays:  cfg.DefaultDueDays,
	})
	if err != nil {
		return invoicedomain.InvoiceFull{}, err
	}
	if err := s.ensureClient(ctx, s.db, businessID, in.ClientID); err != nil {
		return invoicedomain.InvoiceFull{}, err
	}

	taxRate, err := s.resolveTaxRate(ctx, businessID, in.TaxRate)
	if err != nil {
		return invoicedomain.InvoiceFull{}, err
	}
	totals, err := calc.Compute(in.lines(), taxRate, in.Discount)
	if err != nil {
		return invoicedomain.InvoiceFull{}, err
	}

	number, err := s.allocator.Allocate(ctx, businessID)
	if err != nil {
		return invoicedomain.InvoiceFull{}, err
	}

	now := s.clock.Now().UTC()
	invoice := s.assemble(businessID, s.genID.Generate(), in, totals, now)
	invoice.InvoiceNumber = number.Formatted
	invoice.Sequence = number.Sequence
	invoice.Status = invoicedomain.InvoiceStatusDraft
	invoice.Version = 1
	invoice.CreatedAt = now

	if err := s.insertWithRetry(ctx, &invoice); err != nil {
		s.log.Warn("invoice insert failed after number allocation",
			zap.String("business_id", businessID.String()),
			zap.String("invoice_number", number.Formatted),
			zap.Error(err),
		)
		return invoicedomain.InvoiceFull{}, err
	}

	s.metrics.RecordInvoiceCreated(ctx, invoice.Currency)
	s.emitAudit(ctx, "invoice.created", &invoice.Invoice, "", nil)
	return invoice, nil
}

// insertWithRetry retries the draft insert on transient storage errors with
// the allocator backoff policy.
func (s *Service) insertWithRetry(ctx context.Context, invoice *invoicedomain.InvoiceFull) error {
	retry := s.cfg.Get().Allocator
	attempts := retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return s.repo.CreateInvoice(ctx, tx, invoice)
		})
		if err == nil || !errors.Is(err, invoicedomain.ErrTransientStorage) {
			return err
		}
		if attempt == attempts-1 {
			break
		}

		wait := numbering.Backoff(attempt+1, retry.BaseBackoff, retry.MaxBackoff)
		s.log.Debug("retrying invoice insert",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

// Update replaces the editable fields of a draft. Header and items are
// rewritten together and totals recomputed.
func (s *Service) Update(ctx context.Context, req invoicedomain.UpdateInvoiceRequest) (invoicedomain.InvoiceFull, error) {
	businessID, err := s.businessIDFromContext(ctx)
	if err != nil {
		return invoicedomain.InvoiceFull{}, err
	}
	id, err := parseID(req.ID)
	if err != nil {
		return invoicedomain.InvoiceFull{}, err
	}

	current, err := s.load(ctx, s.db, businessID, id)
	if err != nil {
		return invoicedomain.InvoiceFull{}, err
	}
	if err := status.GuardEdit(current.Status); err != nil {
		return invoicedomain.InvoiceFull{}, err
	}
	if req.ExpectedVersion != nil && *req.ExpectedVersion != current.Version {
		return invoicedomain.InvoiceFull{}, fmt.Errorf("%w: invoice version is %d", invoicedomain.ErrConflict, current.Version)
	}

	currentRate := current.TaxRate
	in, err := validateInput(req.InvoiceInput, inputDefaults{
		Currency:     current.Currency,
		ExchangeRate: current.ExchangeRateToBase,
		DueDays:      s.cfg.Get().DefaultDueDays,
		TaxRate:      &currentRate,
	})
	if err != nil {
		return invoicedomain.InvoiceFull{}, err
	}
	totals, err := calc.Compute(in.lines(), *in.TaxRate, in.Discount)
	if err != nil {
		return invoicedomain.InvoiceFull{}, err
	}

	now := s.clock.Now().UTC()
	next := s.assemble(businessID, current.ID, in, totals, now)
	next.InvoiceNumber = current.InvoiceNumber
	next.Sequence = current.Sequence
	next.Status = current.Status
	next.PaidAmount = current.PaidAmount
	next.CreatedAt = current.CreatedAt
	next.Version = current.Version

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ensureClient(ctx, tx, businessID, in.ClientID); err != nil {
			return err
		}
		ok, err := s.repo.UpdateInvoice(ctx, tx, &next, current.Version)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: invoice changed concurrently", invoicedomain.ErrConflict)
		}
		return nil
	})
	if err != nil {
		return invoicedomain.InvoiceFull{}, err
	}

	s.emitAudit(ctx, "invoice.updated", &next.Invoice, "", nil)
	return next, nil
}

func (s *Service) Get(ctx context.Context, id string) (invoicedomain.InvoiceFull, error) {
	businessID, err := s.businessIDFromContext(ctx)
	if err != nil {
		return invoicedomain.InvoiceFull{}, err
	}
	invoiceID, err := parseID(id)
	if err != nil {
		return invoicedomain.InvoiceFull{}, err
	}
	invoice, err := s.load(ctx, s.db, businessID, invoiceID)
	if err != nil {
		return invoicedomain.InvoiceFull{}, err
	}
	return *invoice, nil
}

func (s *Service) List(ctx context.Context, req invoicedomain.ListInvoiceRequest) (invoicedomain.ListInvoiceResponse, error) {
	businessID, err := s.businessIDFromContext(ctx)
	if err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}

	verr := &invoicedomain.ValidationErrors{}
	page := req.Page
	if page == 0 {
		page = 1
	}
	if page < 0 {
		verr.Add("page", "invalid", "page must be positive")
	}
	limit := req.Limit
	if limit == 0 {
		limit = pagination.DefaultLimit
	}
	if limit < 0 || limit > pagination.MaxLimit {
		verr.Add("limit", "out_of_range", fmt.Sprintf("limit must be between 1 and %d", pagination.MaxLimit))
	}

	filter := invoicedomain.ListFilter{
		Search: req.Search,
		Page:   page,
		Limit:  limit,
	}
	if raw := strings.TrimSpace(req.Status); raw != "" {
		st, ok := invoicedomain.ParseStatus(strings.ToLower(raw))
		if !ok {
			verr.Add("status", "invalid", fmt.Sprintf("unknown status %q", raw))
		} else {
			filter.Status = &st
		}
	}
	if raw := strings.TrimSpace(req.ClientID); raw != "" {
		clientID, err := snowflake.ParseString(raw)
		if err != nil || clientID <= 0 {
			verr.Add("client_id", "invalid", "client_id is not a valid id")
		} else {
			filter.ClientID = &clientID
		}
	}
	if err := verr.Err(); err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}

	invoices, total, err := s.repo.List(ctx, s.db, businessID, filter)
	if err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}
	if invoices == nil {
		invoices = []invoicedomain.Invoice{}
	}

	return invoicedomain.ListInvoiceResponse{
		OffsetPageInfo: pagination.NewOffsetPageInfo(page, limit, total),
		Invoices:       invoices,
	}, nil
}

// Delete removes a draft and its items.
func (s *Service) Delete(ctx context.Context, id string) error {
	businessID, err := s.businessIDFromContext(ctx)
	if err != nil {
		return err
	}
	invoiceID, err := parseID(id)
	if err != nil {
		return err
	}

	var deleted invoicedomain.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.load(ctx, tx, businessID, invoiceID)
		if err != nil {
			return err
		}
		if err := status.GuardDelete(current.Status); err != nil {
			return err
		}
		ok, err := s.repo.DeleteInvoice(ctx, tx, businessID, invoiceID, current.Version)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: invoice changed concurrently", invoicedomain.ErrConflict)
		}
		deleted = current.Invoice
		return nil
	})
	if err != nil {
		return err
	}

	s.emitAudit(ctx, "invoice.deleted", &deleted, "", nil)
	return nil
}

// Send moves a draft to sent and hands it to the notifier. Delivery failures
// do not undo the transition.
func (s *Service) Send(ctx context.Context, id string) (invoicedomain.InvoiceFull, error) {
	invoice, changed, err := s.transition(ctx, id, invoicedomain.InvoiceStatusSent, status.TriggerUser, false,
		func(_ *invoicedomain.InvoiceFull, u *invoicedomain.StatusUpdate) error {
			u.SentAt = &u.UpdatedAt
			return nil
		})
	if err != nil || !changed {
		return invoice, err
	}
	s.emitAudit(ctx, "invoice.sent", &invoice.Invoice, "", nil)
	s.notifySent(ctx, invoice)
	return invoice, nil
}

// MarkViewed records the first client view. Viewing an already viewed
// invoice is a no-op.
func (s *Service) MarkViewed(ctx context.Context, id string) (invoicedomain.InvoiceFull, error) {
	invoice, changed, err := s.transition(ctx, id, invoicedomain.InvoiceStatusViewed, status.TriggerClientView, true,
		func(_ *invoicedomain.InvoiceFull, u *invoicedomain.StatusUpdate) error {
			u.ViewedAt = &u.UpdatedAt
			return nil
		})
	if err != nil || !changed {
		return invoice, err
	}
	s.emitAudit(ctx, "invoice.viewed", &invoice.Invoice, auditdomain.ActorTypeClient, nil)
	return invoice, nil
}

func (s *Service) MarkPaid(ctx context.Context, req invoicedomain.MarkPaidRequest) (invoicedomain.InvoiceFull, error) {
	invoice, changed, err := s.transition(ctx, req.ID, invoicedomain.InvoiceStatusPaid, status.TriggerMarkPaid, false,
		func(current *invoicedomain.InvoiceFull, u *invoicedomain.StatusUpdate) error {
			amount, err := validatePayment(current.Invoice, req.PaidAmount)
			if err != nil {
				return err
			}
			paidDate := dateOnly(u.UpdatedAt)
			if req.PaidDate != nil && !req.PaidDate.IsZero() {
				paidDate = dateOnly(*req.PaidDate)
			}
			u.PaidAmount = &amount
			u.PaidDate = &paidDate
			return nil
		})
	if err != nil || !changed {
		return invoice, err
	}
	s.emitAudit(ctx, "invoice.paid", &invoice.Invoice, "", map[string]any{
		"paid_amount": invoice.PaidAmount,
	})
	return invoice, nil
}

func (s *Service) Cancel(ctx context.Context, id string) (invoicedomain.InvoiceFull, error) {
	invoice, changed, err := s.transition(ctx, id, invoicedomain.InvoiceStatusCancelled, status.TriggerUser, false,
		func(_ *invoicedomain.InvoiceFull, u *invoicedomain.StatusUpdate) error {
			u.CancelledAt = &u.UpdatedAt
			return nil
		})
	if err != nil || !changed {
		return invoice, err
	}
	s.emitAudit(ctx, "invoice.cancelled", &invoice.Invoice, "", nil)
	return invoice, nil
}

// Preview computes totals without touching storage. Without an explicit tax
// rate the business default applies.
func (s *Service) Preview(ctx context.Context, req invoicedomain.PreviewRequest) (invoicedomain.Totals, error) {
	verr := &invoicedomain.ValidationErrors{}
	discount, err := invoicedomain.ParseDiscount(req.Discount)
	if err != nil {
		verr.Merge(err)
	}

	var taxRate decimal.Decimal
	if req.TaxRate != nil {
		taxRate = *req.TaxRate
	} else {
		businessID, err := s.businessIDFromContext(ctx)
		if err != nil {
			return invoicedomain.Totals{}, err
		}
		taxRate, err = s.resolveTaxRate(ctx, businessID, nil)
		if err != nil {
			return invoicedomain.Totals{}, err
		}
	}

	currency := money.NormalizeCode(req.Currency)
	if currency == "" {
		currency = money.NormalizeCode(s.cfg.Get().DefaultCurrency)
	}
	if !money.IsSupported(currency) {
		verr.Add("currency", "unsupported", fmt.Sprintf("currency %q is not supported", currency))
	}

	lines := make([]calc.Line, len(req.Items))
	for i, item := range req.Items {
		unitPrice, _ := resolveUnitPrice(item, currency, fmt.Sprintf("items[%d]", i), verr)
		lines[i] = calc.Line{Quantity: item.Quantity, UnitPrice: unitPrice}
	}
	if err := verr.Err(); err != nil {
		return invoicedomain.Totals{}, err
	}
	return calc.Compute(lines, taxRate, discount)
}

// VerifyTotals recomputes a stored invoice and reports drift without
// correcting it.
func (s *Service) VerifyTotals(ctx context.Context, id string) (invoicedomain.VerifyResult, error) {
	invoice, err := s.Get(ctx, id)
	if err != nil {
		return invoicedomain.VerifyResult{}, err
	}
	discount, err := invoice.Discount()
	if err != nil {
		return invoicedomain.VerifyResult{}, err
	}

	lines := make([]calc.Line, len(invoice.Items))
	stored := invoicedomain.Totals{
		LineAmounts:    make([]int64, len(invoice.Items)),
		Subtotal:       invoice.Subtotal,
		Discount:       discount,
		DiscountAmount: invoice.DiscountAmount,
		TaxableBase:    invoice.Subtotal - invoice.DiscountAmount,
		TaxRate:        invoice.TaxRate,
		TaxAmount:      invoice.TaxAmount,
		Total:          invoice.Total,
	}
	for i, item := range invoice.Items {
		lines[i] = calc.Line{Quantity: item.Quantity, UnitPrice: item.UnitPrice}
		stored.LineAmounts[i] = item.Amount
	}

	result, err := calc.Verify(stored, lines, invoice.TaxRate, discount)
	if err != nil {
		return invoicedomain.VerifyResult{}, err
	}
	if result.Consistent {
		for i := range stored.LineAmounts {
			if stored.LineAmounts[i] != result.Recomputed.LineAmounts[i] {
				result.Consistent = false
				break
			}
		}
	}
	if !result.Consistent {
		s.log.Warn("stored invoice totals drifted from recomputation",
			zap.String("invoice_id", invoice.ID.String()),
			zap.String("invoice_number", invoice.InvoiceNumber),
			zap.Int64("stored_total", stored.Total),
			zap.Int64("recomputed_total", result.Recomputed.Total),
		)
	}
	return result, nil
}

// RenderPDF renders the stored snapshot. Totals come from the invoice row as
// persisted.
func (s *Service) RenderPDF(ctx context.Context, id string) (invoicedomain.PDFDocument, error) {
	if s.pdf == nil {
		return invoicedomain.PDFDocument{}, invoicedomain.ErrRendererUnavailable
	}
	invoice, err := s.Get(ctx, id)
	if err != nil {
		return invoicedomain.PDFDocument{}, err
	}
	business, client, err := s.parties(ctx, invoice)
	if err != nil {
		return invoicedomain.PDFDocument{}, err
	}

	content, err := s.pdf.Render(ctx, invoice, business, client)
	if err != nil {
		return invoicedomain.PDFDocument{}, fmt.Errorf("render invoice pdf: %w", err)
	}
	return invoicedomain.PDFDocument{
		Filename: slug.Make(invoice.InvoiceNumber) + ".pdf",
		Content:  content,
	}, nil
}

// MarkOverdue sweeps sent and viewed invoices whose due date lies before the
// start of now's day. Invoices changed concurrently are skipped until the
// next run.
func (s *Service) MarkOverdue(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = s.cfg.Get().Overdue.BatchSize
	}
	cutoff := dateOnly(now)

	candidates, err := s.repo.ListOverdueCandidates(ctx, s.db, cutoff, limit)
	if err != nil {
		return 0, err
	}

	marked := 0
	skipped := 0
	for i := range candidates {
		inv := candidates[i]
		if !status.IsPastDue(inv, cutoff) {
			continue
		}
		if err := status.Transition(inv.Status, invoicedomain.InvoiceStatusOverdue, status.TriggerTime); err != nil {
			continue
		}

		updatedAt := s.clock.Now().UTC()
		ok, err := s.repo.UpdateStatus(ctx, s.db, invoicedomain.StatusUpdate{
			InvoiceID:       inv.ID,
			BusinessID:      inv.BusinessID,
			From:            inv.Status,
			To:              invoicedomain.InvoiceStatusOverdue,
			ExpectedVersion: inv.Version,
			UpdatedAt:       updatedAt,
		})
		if err != nil {
			return marked, err
		}
		if !ok {
			skipped++
			continue
		}

		marked++
		s.metrics.RecordInvoiceTransition(ctx, string(inv.Status), string(invoicedomain.InvoiceStatusOverdue), string(status.TriggerTime))
		from := inv.Status
		inv.Status = invoicedomain.InvoiceStatusOverdue
		inv.Version++
		inv.UpdatedAt = updatedAt
		s.emitAudit(ctx, "invoice.overdue", &inv, auditdomain.ActorTypeScheduler, map[string]any{
			"from_status": string(from),
		})
	}

	if marked > 0 || skipped > 0 {
		s.log.Info("overdue sweep finished",
			zap.Time("cutoff", cutoff),
			zap.Int("marked", marked),
			zap.Int("skipped", skipped),
		)
	}
	return marked, nil
}

// transition applies one lifecycle change under the invoice's current
// version. It reports changed=false when idempotent is set and the invoice is
// already in the target state.
func (s *Service) transition(
	ctx context.Context,
	rawID string,
	to invoicedomain.InvoiceStatus,
	trigger status.Trigger,
	idempotent bool,
	apply func(current *invoicedomain.InvoiceFull, u *invoicedomain.StatusUpdate) error,
) (invoicedomain.InvoiceFull, bool, error) {
	businessID, err := s.businessIDFromContext(ctx)
	if err != nil {
		return invoicedomain.InvoiceFull{}, false, err
	}
	id, err := parseID(rawID)
	if err != nil {
		return invoicedomain.InvoiceFull{}, false, err
	}

	current, err := s.load(ctx, s.db, businessID, id)
	if err != nil {
		return invoicedomain.InvoiceFull{}, false, err
	}
	if idempotent && current.Status == to {
		return *current, false, nil
	}
	if err := status.Transition(current.Status, to, trigger); err != nil {
		return invoicedomain.InvoiceFull{}, false, err
	}

	update := invoicedomain.StatusUpdate{
		InvoiceID:       current.ID,
		BusinessID:      businessID,
		From:            current.Status,
		To:              to,
		ExpectedVersion: current.Version,
		UpdatedAt:       s.clock.Now().UTC(),
	}
	if apply != nil {
		if err := apply(current, &update); err != nil {
			return invoicedomain.InvoiceFull{}, false, err
		}
	}

	ok, err := s.repo.UpdateStatus(ctx, s.db, update)
	if err != nil {
		return invoicedomain.InvoiceFull{}, false, err
	}
	if !ok {
		return invoicedomain.InvoiceFull{}, false, fmt.Errorf("%w: invoice changed concurrently", invoicedomain.ErrConflict)
	}

	updated, err := s.load(ctx, s.db, businessID, id)
	if err != nil {
		return invoicedomain.InvoiceFull{}, false, err
	}
	s.metrics.RecordInvoiceTransition(ctx, string(current.Status), string(to), string(trigger))
	return *updated, true, nil
}

func validatePayment(invoice invoicedomain.Invoice, amount *int64) (int64, error) {
	if amount == nil {
		return 0, invoicedomain.NewValidationError("paid_amount", "required", "paid_amount is required")
	}
	switch {
	case *amount < 0:
		return 0, invoicedomain.NewValidationError("paid_amount", "negative", "paid_amount must not be negative")
	case *amount == 0 && invoice.Total > 0:
		return 0, invoicedomain.NewValidationError("paid_amount", "must_be_positive", "paid_amount must be greater than zero")
	case *amount > invoice.Total:
		return 0, invoicedomain.NewValidationError("paid_amount", "exceeds_total", "paid_amount must not exceed the invoice total")
	}
	return *amount, nil
}

// assemble builds the header and items from validated input and computed
// totals. Lifecycle fields are left to the caller.
func (s *Service) assemble(businessID, invoiceID snowflake.ID, in validatedInput, totals invoicedomain.Totals, now time.Time) invoicedomain.InvoiceFull {
	discountType, discountValue := in.Discount.Columns()
	invoice := invoicedomain.InvoiceFull{
		Invoice: invoicedomain.Invoice{
			ID:                 invoiceID,
			BusinessID:         businessID,
			ClientID:           in.ClientID,
			Currency:           in.Currency,
			ExchangeRateToBase: in.ExchangeRate,
			Subtotal:           totals.Subtotal,
			TaxRate:            totals.TaxRate,
			TaxAmount:          totals.TaxAmount,
			DiscountType:       discountType,
			DiscountValue:      discountValue,
			DiscountAmount:     totals.DiscountAmount,
			Total:              totals.Total,
			IssueDate:          in.IssueDate,
			DueDate:            in.DueDate,
			Notes:              in.Notes,
			UpdatedAt:          now,
		},
		Items: make([]invoicedomain.InvoiceItem, len(in.Items)),
	}
	for i, item := range in.Items {
		invoice.Items[i] = invoicedomain.InvoiceItem{
			ID:          s.genID.Generate(),
			BusinessID:  businessID,
			InvoiceID:   invoiceID,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Amount:      totals.LineAmounts[i],
			SortOrder:   item.SortOrder,
			CreatedAt:   now,
		}
	}
	return invoice
}

func (s *Service) load(ctx context.Context, db *gorm.DB, businessID, id snowflake.ID) (*invoicedomain.InvoiceFull, error) {
	invoice, err := s.repo.GetInvoice(ctx, db, businessID, id)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, invoicedomain.ErrInvoiceNotFound
	}
	return invoice, nil
}

func (s *Service) loadBusiness(ctx context.Context, businessID snowflake.ID) (businessdomain.Business, error) {
	business, err := s.businesses.GetByID(ctx, businessID)
	if err != nil {
		if errors.Is(err, businessdomain.ErrNotFound) || errors.Is(err, businessdomain.ErrInvalidID) {
			return businessdomain.Business{}, invoicedomain.ErrBusinessNotFound
		}
		return businessdomain.Business{}, err
	}
	return business, nil
}

func (s *Service) ensureClient(ctx context.Context, db *gorm.DB, businessID, clientID snowflake.ID) error {
	client, err := s.clients.FindByID(ctx, db, businessID, clientID)
	if err != nil {
		return err
	}
	if client == nil {
		return invoicedomain.NewValidationError("client_id", "not_found", "client does not exist")
	}
	return nil
}

func (s *Service) resolveTaxRate(ctx context.Context, businessID snowflake.ID, explicit *decimal.Decimal) (decimal.Decimal, error) {
	if explicit != nil {
		return *explicit, nil
	}
	rate, err := s.tax.ResolveRate(ctx, businessID)
	if err != nil {
		if errors.Is(err, taxdomain.ErrBusinessNotFound) {
			return decimal.Zero, invoicedomain.ErrBusinessNotFound
		}
		return decimal.Zero, err
	}
	return rate, nil
}

// parties loads the issuer and bill-to party of an invoice. A client that no
// longer exists renders as an empty bill-to block.
func (s *Service) parties(ctx context.Context, invoice invoicedomain.InvoiceFull) (businessdomain.Business, clientdomain.Client, error) {
	business, err := s.loadBusiness(ctx, invoice.BusinessID)
	if err != nil {
		return businessdomain.Business{}, clientdomain.Client{}, err
	}
	client, err := s.clients.FindByID(ctx, s.db, invoice.BusinessID, invoice.ClientID)
	if err != nil {
		return businessdomain.Business{}, clientdomain.Client{}, err
	}
	if client == nil {
		return business, clientdomain.Client{ID: invoice.ClientID, BusinessID: invoice.BusinessID}, nil
	}
	return business, *client, nil
}

func (s *Service) notifySent(ctx context.Context, invoice invoicedomain.InvoiceFull) {
	if s.notifier == nil {
		return
	}
	business, client, err := s.parties(ctx, invoice)
	if err == nil {
		err = s.notifier.InvoiceSent(ctx, invoice, business, client)
	}
	if err != nil {
		s.log.Warn("failed to deliver sent invoice",
			zap.String("invoice_id", invoice.ID.String()),
			zap.String("invoice_number", invoice.InvoiceNumber),
			zap.Error(err),
		)
	}
}

func (s *Service) emitAudit(ctx context.Context, action string, invoice *invoicedomain.Invoice, actorType auditdomain.ActorType, extra map[string]any) {
	if s.auditSvc == nil || invoice == nil {
		return
	}
	metadata := map[string]any{
		"invoice_number": invoice.InvoiceNumber,
		"client_id":      invoice.ClientID.String(),
		"status":         string(invoice.Status),
		"currency":       invoice.Currency,
		"total":          invoice.Total,
		"version":        invoice.Version,
	}
	for key, value := range extra {
		if key == "" {
			continue
		}
		metadata[key] = value
	}

	targetID := invoice.ID.String()
	businessID := invoice.BusinessID
	err := s.auditSvc.AuditLog(ctx, auditdomain.Entry{
		BusinessID: &businessID,
		ActorType:  actorType,
		Action:     action,
		TargetType: "invoice",
		TargetID:   &targetID,
		Metadata:   metadata,
	})
	if err != nil {
		s.log.Warn("failed to write audit log",
			zap.String("action", action),
			zap.String("invoice_id", targetID),
			zap.Error(err),
		)
	}
}

func (s *Service) businessIDFromContext(ctx context.Context) (snowflake.ID, error) {
	businessID, ok := businesscontext.BusinessIDFromContext(ctx)
	if !ok || businessID == 0 {
		return 0, invoicedomain.ErrInvalidBusiness
	}
	return businessID, nil
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, invoicedomain.ErrInvalidID
	}
	return id, nil
}
