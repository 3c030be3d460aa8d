package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/invoicer/internal/audit/domain"
	auditrepository "github.com/smallbiznis/invoicer/internal/audit/repository"
	auditservice "github.com/smallbiznis/invoicer/internal/audit/service"
	businessdomain "github.com/smallbiznis/invoicer/internal/business/domain"
	businessrepository "github.com/smallbiznis/invoicer/internal/business/repository"
	businessservice "github.com/smallbiznis/invoicer/internal/business/service"
	clientdomain "github.com/smallbiznis/invoicer/internal/client/domain"
	clientrepository "github.com/smallbiznis/invoicer/internal/client/repository"
	clientservice "github.com/smallbiznis/invoicer/internal/client/service"
	"github.com/smallbiznis/invoicer/internal/clock"
	"github.com/smallbiznis/invoicer/internal/config"
	invoicedomain "github.com/smallbiznis/invoicer/internal/invoice/domain"
	"github.com/smallbiznis/invoicer/internal/invoice/invoicetest"
	"github.com/smallbiznis/invoicer/internal/invoice/numbering"
	invoicerepository "github.com/smallbiznis/invoicer/internal/invoice/repository"
	invoiceservice "github.com/smallbiznis/invoicer/internal/invoice/service"
	taxrepository "github.com/smallbiznis/invoicer/internal/tax/repository"
	taxservice "github.com/smallbiznis/invoicer/internal/tax/service"
	"github.com/smallbiznis/invoicer/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testBusinessID = snowflake.ID(100)
	testClientID   = snowflake.ID(200)
	otherBusiness  = snowflake.ID(300)
)

type stubPDF struct{}

func (stubPDF) Render(_ context.Context, invoice invoicedomain.InvoiceFull, _ businessdomain.Business, _ clientdomain.Client) ([]byte, error) {
	return []byte("%PDF-1.4 " + invoice.InvoiceNumber), nil
}

type testServer struct {
	engine *gin.Engine
	clock  *clock.FakeClock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := invoicetest.NewDB(t)
	invoicetest.SeedBusiness(t, db, testBusinessID, "INV", 43)
	invoicetest.SeedClient(t, db, testBusinessID, testClientID, "Globex Corp")
	invoicetest.SeedBusiness(t, db, otherBusiness, "ACME", 1)

	log := zap.NewNop()
	node := invoicetest.NewNode(t)
	fc := clock.NewFakeClock(invoicetest.Epoch)
	cfg := config.NewStaticInvoicingConfigHolder(config.DefaultInvoicingConfig())
	repo := invoicerepository.Provide()
	businesses := businessservice.New(businessservice.Params{Log: log, Repo: businessrepository.Provide(db)})
	clients := clientrepository.Provide()
	auditSvc := auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: fc,
		Repo:  auditrepository.Provide(),
	})

	invoiceSvc := invoiceservice.NewService(invoiceservice.ServiceParam{
		DB:     db,
		Log:    log,
		GenID:  node,
		Clock:  fc,
		Config: cfg,
		Repo:   repo,
		Allocator: numbering.New(numbering.Params{
			DB:         db,
			Log:        log,
			Repo:       repo,
			Businesses: businesses,
			Config:     cfg,
			Clock:      fc,
		}),
		Businesses: businesses,
		Clients:    clients,
		Tax:        taxservice.NewResolver(taxservice.ResolverParams{Repository: taxrepository.NewRepository(db)}),
		AuditSvc:   auditSvc,
		PDF:        stubPDF{},
	})

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())
	s := NewServer(ServerParams{
		Gin:        engine,
		Cfg:        config.Config{RequestTimeout: 5 * time.Second},
		InvoiceSvc: invoiceSvc,
		ClientSvc:  clientservice.New(clientservice.Params{DB: db, Log: log, Repo: clients}),
		AuditSvc:   auditSvc,
	})
	s.RegisterAPIRoutes()
	s.RegisterFallback()

	return &testServer{engine: engine, clock: fc}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, businessID snowflake.ID) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if businessID != 0 {
		req.Header.Set(HeaderBusinessID, businessID.String())
	}
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	return w
}

func scenarioBody() map[string]any {
	return map[string]any{
		"client_id":  testClientID.String(),
		"issue_date": "2024-03-01",
		"items": []map[string]any{
			{"description": "Design retainer", "quantity": "1", "unit_price": 25000},
			{"description": "Hosting", "quantity": "1", "unit_price": 12000},
			{"description": "Support hours", "quantity": 2, "unit_price": 2928.5},
		},
	}
}

func decodeInvoice(t *testing.T, w *httptest.ResponseRecorder) invoicedomain.InvoiceFull {
	t.Helper()
	var resp struct {
		Data invoicedomain.InvoiceFull `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp.Data
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp.Error
}

func fieldCodes(payload errorPayload) []string {
	out := make([]string, 0, len(payload.Errors))
	for _, e := range payload.Errors {
		out = append(out, e.Field+":"+e.Code)
	}
	return out
}

func (ts *testServer) create(t *testing.T) invoicedomain.InvoiceFull {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/invoices", scenarioBody(), testBusinessID)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeInvoice(t, w)
}

func TestCreateInvoice(t *testing.T) {
	ts := newTestServer(t)

	invoice := ts.create(t)
	assert.Equal(t, "INV-2024-00043", invoice.InvoiceNumber)
	assert.Equal(t, invoicedomain.InvoiceStatusDraft, invoice.Status)
	assert.Equal(t, int64(42857), invoice.Subtotal)
	assert.Equal(t, int64(2143), invoice.TaxAmount)
	assert.Equal(t, int64(45000), invoice.Total)
	require.Len(t, invoice.Items, 3)
	assert.Equal(t, int64(5857), invoice.Items[2].Amount)
	assert.Equal(t, "2928.5", invoice.Items[2].UnitPrice.String())
}

func TestCreateInvoiceValidation(t *testing.T) {
	ts := newTestServer(t)

	body := scenarioBody()
	body["items"] = []map[string]any{}
	body["issue_date"] = "03/01/2024"

	w := ts.do(t, http.MethodPost, "/api/invoices", body, testBusinessID)
	require.Equal(t, http.StatusBadRequest, w.Code)
	payload := decodeError(t, w)
	assert.Equal(t, "validation_error", payload.Type)
	require.NotEmpty(t, payload.Errors)
	assert.Equal(t, "issue_date", payload.Errors[0].Field)

	body = scenarioBody()
	body["items"] = []map[string]any{}
	w = ts.do(t, http.MethodPost, "/api/invoices", body, testBusinessID)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, fieldCodes(decodeError(t, w)), "items:required")
}

func TestMalformedJSONIsInvalidRequest(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/invoices", bytes.NewBufferString("{"))
	req.Header.Set(HeaderBusinessID, testBusinessID.String())
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	payload := decodeError(t, w)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "invalid_request", payload.Errors[0].Code)
}

func TestBusinessHeader(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/invoices", nil, 0)
	require.Equal(t, http.StatusBadRequest, w.Code)
	payload := decodeError(t, w)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "business_id", payload.Errors[0].Field)

	req := httptest.NewRequest(http.MethodGet, "/api/invoices", nil)
	req.Header.Set(HeaderBusinessID, "acme")
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	invoice := ts.create(t)
	base := "/api/invoices/" + invoice.ID.String()

	w := ts.do(t, http.MethodPost, base+"/send", nil, testBusinessID)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, invoicedomain.InvoiceStatusSent, decodeInvoice(t, w).Status)

	// Editing a sent invoice is an invalid transition and leaves it unchanged.
	w = ts.do(t, http.MethodPut, base, scenarioBody(), testBusinessID)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_state_transition", decodeError(t, w).Type)

	w = ts.do(t, http.MethodDelete, base, nil, testBusinessID)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, base+"/view", nil, testBusinessID)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, invoicedomain.InvoiceStatusViewed, decodeInvoice(t, w).Status)

	w = ts.do(t, http.MethodPost, base+"/pay", map[string]any{"paid_amount": 45000, "paid_date": "2024-03-10"}, testBusinessID)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	paid := decodeInvoice(t, w)
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, paid.Status)
	assert.Equal(t, int64(45000), paid.PaidAmount)
	require.NotNil(t, paid.PaidDate)
	assert.Equal(t, "2024-03-10", paid.PaidDate.Format(dateOnlyLayout))

	w = ts.do(t, http.MethodPost, base+"/cancel", nil, testBusinessID)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_state_transition", decodeError(t, w).Type)

	w = ts.do(t, http.MethodGet, base, nil, testBusinessID)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(45000), decodeInvoice(t, w).Total)
}

func TestUpdateInvoiceOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	invoice := ts.create(t)
	path := "/api/invoices/" + invoice.ID.String()

	body := scenarioBody()
	body["discount"] = map[string]any{"type": "percentage", "value": "10"}
	body["version"] = invoice.Version
	w := ts.do(t, http.MethodPut, path, body, testBusinessID)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decodeInvoice(t, w)
	assert.Equal(t, int64(4286), updated.DiscountAmount)
	assert.Equal(t, int64(1929), updated.TaxAmount)
	assert.Equal(t, int64(40500), updated.Total)

	// The version the client read is now stale.
	w = ts.do(t, http.MethodPut, path, body, testBusinessID)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "conflict", decodeError(t, w).Type)
}

func TestDeleteDraft(t *testing.T) {
	ts := newTestServer(t)
	invoice := ts.create(t)
	path := "/api/invoices/" + invoice.ID.String()

	w := ts.do(t, http.MethodDelete, path, nil, testBusinessID)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(t, http.MethodGet, path, nil, testBusinessID)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decodeError(t, w).Type)
}

func TestInvoiceIsolatedPerBusiness(t *testing.T) {
	ts := newTestServer(t)
	invoice := ts.create(t)

	w := ts.do(t, http.MethodGet, "/api/invoices/"+invoice.ID.String(), nil, otherBusiness)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodGet, "/api/invoices/not-an-id", nil, testBusinessID)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListInvoices(t *testing.T) {
	ts := newTestServer(t)
	ts.create(t)
	ts.create(t)

	w := ts.do(t, http.MethodGet, "/api/invoices?limit=1&search=globex", nil, testBusinessID)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Data     []invoicedomain.Invoice   `json:"data"`
		PageInfo pagination.OffsetPageInfo `json:"page_info"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 1)
	assert.Equal(t, pagination.OffsetPageInfo{Page: 1, Limit: 1, Total: 2, HasMore: true}, resp.PageInfo)

	w = ts.do(t, http.MethodGet, "/api/invoices?limit=500", nil, testBusinessID)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, "/api/invoices?status=archived", nil, testBusinessID)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, "/api/invoices?page=two", nil, testBusinessID)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPreviewInvoice(t *testing.T) {
	ts := newTestServer(t)

	body := map[string]any{
		"tax_rate": "0.05",
		"discount": map[string]any{"type": "fixed", "value": 50000},
		"items":    scenarioBody()["items"],
	}
	w := ts.do(t, http.MethodPost, "/api/invoices/preview", body, testBusinessID)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data struct {
			Subtotal       int64 `json:"subtotal"`
			DiscountAmount int64 `json:"discount_amount"`
			TaxAmount      int64 `json:"tax_amount"`
			Total          int64 `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(42857), resp.Data.Subtotal)
	assert.Equal(t, int64(42857), resp.Data.DiscountAmount)
	assert.Equal(t, int64(0), resp.Data.TaxAmount)
	assert.Equal(t, int64(0), resp.Data.Total)
}

func TestPreviewInvoiceAcceptsMajorUnitPrice(t *testing.T) {
	ts := newTestServer(t)

	body := map[string]any{
		"currency": "USD",
		"items": []map[string]any{
			{"description": "Design retainer", "quantity": 1, "unit_price_major": 250},
			{"description": "Hosting", "quantity": 1, "unit_price_major": "120.00"},
			{"description": "Support hours", "quantity": 2, "unit_price_major": 29.285},
		},
	}
	w := ts.do(t, http.MethodPost, "/api/invoices/preview", body, testBusinessID)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data struct {
			LineAmounts []int64 `json:"line_amounts"`
			Total       int64   `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []int64{25000, 12000, 5857}, resp.Data.LineAmounts)
	assert.Equal(t, int64(45000), resp.Data.Total)

	body["items"] = []map[string]any{
		{"description": "Design retainer", "quantity": 1, "unit_price": 25000, "unit_price_major": 250},
	}
	w = ts.do(t, http.MethodPost, "/api/invoices/preview", body, testBusinessID)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "items[0].unit_price_major")
}

func TestDownloadInvoicePDF(t *testing.T) {
	ts := newTestServer(t)
	invoice := ts.create(t)

	w := ts.do(t, http.MethodGet, "/api/invoices/"+invoice.ID.String()+"/pdf", nil, testBusinessID)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="inv-2024-00043.pdf"`, w.Header().Get("Content-Disposition"))
	assert.Contains(t, w.Body.String(), "INV-2024-00043")
}

func TestVerifyInvoiceTotals(t *testing.T) {
	ts := newTestServer(t)
	invoice := ts.create(t)

	w := ts.do(t, http.MethodGet, "/api/invoices/"+invoice.ID.String()+"/verify", nil, testBusinessID)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Data struct {
			Consistent bool `json:"consistent"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Consistent)
}

func TestAuditLogsForInvoice(t *testing.T) {
	ts := newTestServer(t)
	invoice := ts.create(t)
	w := ts.do(t, http.MethodPost, "/api/invoices/"+invoice.ID.String()+"/send", nil, testBusinessID)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/api/audit-logs?invoice_id="+invoice.ID.String(), nil, testBusinessID)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Data []auditdomain.AuditLog `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	actions := make([]string, 0, len(resp.Data))
	for _, entry := range resp.Data {
		actions = append(actions, entry.Action)
	}
	assert.ElementsMatch(t, []string{"invoice.created", "invoice.sent"}, actions)

	w = ts.do(t, http.MethodGet, "/api/audit-logs?start_at=yesterday", nil, testBusinessID)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClients(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/clients/"+testClientID.String(), nil, testBusinessID)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "Globex Corp")

	w = ts.do(t, http.MethodGet, "/api/clients/"+testClientID.String(), nil, otherBusiness)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodGet, "/api/clients?name=glob", nil, testBusinessID)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Globex Corp")
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/nope", nil, testBusinessID)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMapError(t *testing.T) {
	cases := []struct {
		err     error
		status  int
		kind    string
		logCode string
	}{
		{invoicedomain.NewValidationError("items", "required", "at least one item"), http.StatusBadRequest, "validation_error", "required"},
		{fmt.Errorf("%w: sent -> draft", invoicedomain.ErrInvalidStateTransition), http.StatusBadRequest, "invalid_state_transition", "invalid_state_transition"},
		{invoicedomain.ErrConflict, http.StatusConflict, "conflict", "conflict"},
		{fmt.Errorf("%w: connection reset", invoicedomain.ErrTransientStorage), http.StatusServiceUnavailable, "service_unavailable", "service_unavailable"},
		{invoicedomain.ErrInvoiceNotFound, http.StatusNotFound, "not_found", "not_found"},
		{invoicedomain.ErrInvalidBusiness, http.StatusBadRequest, "validation_error", "required"},
		{ErrRateLimited, http.StatusTooManyRequests, "rate_limited", "rate_limited"},
		{context.DeadlineExceeded, http.StatusServiceUnavailable, "service_unavailable", "service_unavailable"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error", "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			status, payload := mapError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.kind, payload.Type)

			kind, code := classifyErrorForLog(tc.err)
			assert.Equal(t, tc.kind, kind)
			assert.Equal(t, tc.logCode, code)
		})
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 1, retryAfterSeconds(0))
	assert.Equal(t, 1, retryAfterSeconds(0.2))
	assert.Equal(t, 3, retryAfterSeconds(2.1))
}
