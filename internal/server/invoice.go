package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/invoicer/internal/invoice/domain"
)

type invoiceRequest struct {
	ClientID           string                        `json:"client_id"`
	Currency           string                        `json:"currency"`
	ExchangeRateToBase *decimal.Decimal              `json:"exchange_rate_to_base"`
	IssueDate          string                        `json:"issue_date"`
	DueDate            string                        `json:"due_date"`
	TaxRate            *decimal.Decimal              `json:"tax_rate"`
	Discount           *invoicedomain.DiscountInput  `json:"discount"`
	Notes              *string                       `json:"notes"`
	Items              []invoicedomain.LineItemInput `json:"items"`
}

type updateInvoiceRequest struct {
	invoiceRequest
	Version *int64 `json:"version"`
}

type previewInvoiceRequest struct {
	Currency string                        `json:"currency"`
	TaxRate  *decimal.Decimal              `json:"tax_rate"`
	Discount *invoicedomain.DiscountInput  `json:"discount"`
	Items    []invoicedomain.LineItemInput `json:"items"`
}

type markPaidRequest struct {
	PaidAmount *int64 `json:"paid_amount"`
	PaidDate   string `json:"paid_date"`
}

type listInvoicesQuery struct {
	Page     int    `form:"page"`
	Limit    int    `form:"limit"`
	Status   string `form:"status"`
	ClientID string `form:"client_id"`
	Search   string `form:"search"`
}

func (r invoiceRequest) toInput() (invoicedomain.InvoiceInput, error) {
	var verr invoicedomain.ValidationErrors

	issueDate, err := parseOptionalTime(r.IssueDate, false)
	if err != nil {
		verr.Add("issue_date", "invalid", "issue_date must be YYYY-MM-DD or RFC3339")
	}
	dueDate, err := parseOptionalTime(r.DueDate, false)
	if err != nil {
		verr.Add("due_date", "invalid", "due_date must be YYYY-MM-DD or RFC3339")
	}
	if err := verr.Err(); err != nil {
		return invoicedomain.InvoiceInput{}, err
	}

	return invoicedomain.InvoiceInput{
		ClientID:           strings.TrimSpace(r.ClientID),
		Currency:           strings.TrimSpace(r.Currency),
		ExchangeRateToBase: r.ExchangeRateToBase,
		IssueDate:          issueDate,
		DueDate:            dueDate,
		TaxRate:            r.TaxRate,
		Discount:           r.Discount,
		Notes:              r.Notes,
		Items:              r.Items,
	}, nil
}

func (s *Server) CreateInvoice(c *gin.Context) {
	var req invoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	input, err := req.toInput()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.invoiceSvc.Create(c.Request.Context(), invoicedomain.CreateInvoiceRequest{
		InvoiceInput: input,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) UpdateInvoice(c *gin.Context) {
	var req updateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	input, err := req.toInput()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.invoiceSvc.Update(c.Request.Context(), invoicedomain.UpdateInvoiceRequest{
		ID:              strings.TrimSpace(c.Param("id")),
		ExpectedVersion: req.Version,
		InvoiceInput:    input,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListInvoices(c *gin.Context) {
	var query listInvoicesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.invoiceSvc.List(c.Request.Context(), invoicedomain.ListInvoiceRequest{
		Page:     query.Page,
		Limit:    query.Limit,
		Status:   strings.TrimSpace(query.Status),
		ClientID: strings.TrimSpace(query.ClientID),
		Search:   strings.TrimSpace(query.Search),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Invoices, "page_info": resp.OffsetPageInfo})
}

func (s *Server) GetInvoiceByID(c *gin.Context) {
	resp, err := s.invoiceSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteInvoice(c *gin.Context) {
	if err := s.invoiceSvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) PreviewInvoice(c *gin.Context) {
	var req previewInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	totals, err := s.invoiceSvc.Preview(c.Request.Context(), invoicedomain.PreviewRequest{
		Currency: req.Currency,
		TaxRate:  req.TaxRate,
		Discount: req.Discount,
		Items:    req.Items,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": totals})
}

func (s *Server) SendInvoice(c *gin.Context) {
	resp, err := s.invoiceSvc.Send(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) MarkInvoiceViewed(c *gin.Context) {
	resp, err := s.invoiceSvc.MarkViewed(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) MarkInvoicePaid(c *gin.Context) {
	var req markPaidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	paidDate, err := parseOptionalTime(req.PaidDate, false)
	if err != nil {
		AbortWithError(c, newValidationError("paid_date", "invalid", "paid_date must be YYYY-MM-DD or RFC3339"))
		return
	}

	resp, err := s.invoiceSvc.MarkPaid(c.Request.Context(), invoicedomain.MarkPaidRequest{
		ID:         strings.TrimSpace(c.Param("id")),
		PaidAmount: req.PaidAmount,
		PaidDate:   paidDate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CancelInvoice(c *gin.Context) {
	resp, err := s.invoiceSvc.Cancel(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) VerifyInvoiceTotals(c *gin.Context) {
	resp, err := s.invoiceSvc.VerifyTotals(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DownloadInvoicePDF(c *gin.Context) {
	doc, err := s.invoiceSvc.RenderPDF(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+doc.Filename+`"`)
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "application/pdf", doc.Content)
}
