package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/invoicer/internal/audit/domain"
	clientdomain "github.com/smallbiznis/invoicer/internal/client/domain"
	invoicedomain "github.com/smallbiznis/invoicer/internal/invoice/domain"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string                     `json:"type"`
	Message string                     `json:"message"`
	Errors  []invoicedomain.FieldError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

// sentinelField maps plain sentinel errors onto a single field error.
type sentinelField struct {
	err     error
	field   string
	code    string
	message string
}

var validationSentinels = []sentinelField{
	{ErrInvalidRequest, "request", "invalid_request", "invalid request"},
	{invoicedomain.ErrInvalidBusiness, "business_id", "required", "X-Business-Id header is required"},
	{clientdomain.ErrInvalidBusiness, "business_id", "required", "X-Business-Id header is required"},
	{auditdomain.ErrInvalidBusiness, "business_id", "required", "X-Business-Id header is required"},
	{clientdomain.ErrInvalidPageToken, "page_token", "invalid", "invalid page_token"},
	{auditdomain.ErrInvalidPageToken, "page_token", "invalid", "invalid page_token"},
	{auditdomain.ErrInvalidTimeRange, "start_at", "invalid_time_range", "start_at must be before end_at"},
	{auditdomain.ErrInvalidAction, "action", "invalid", "invalid action"},
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return invoicedomain.NewValidationError(field, code, message)
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	var vErr *invoicedomain.ValidationErrors
	if errors.As(err, &vErr) && vErr != nil && len(vErr.Errors) > 0 {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	for _, sentinel := range validationSentinels {
		if errors.Is(err, sentinel.err) {
			return http.StatusBadRequest, errorPayload{
				Type:    "validation_error",
				Message: "validation error",
				Errors: []invoicedomain.FieldError{{
					Field:   sentinel.field,
					Code:    sentinel.code,
					Message: sentinel.message,
				}},
			}
		}
	}

	switch {
	case errors.Is(err, invoicedomain.ErrInvalidInput):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
		}
	case errors.Is(err, invoicedomain.ErrInvalidStateTransition):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_state_transition",
			Message: err.Error(),
		}
	case errors.Is(err, invoicedomain.ErrConflict):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "invoice was modified concurrently, reload and retry",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, invoicedomain.ErrTransientStorage),
		errors.Is(err, invoicedomain.ErrRendererUnavailable),
		errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, invoicedomain.ErrInvoiceNotFound),
		errors.Is(err, invoicedomain.ErrBusinessNotFound),
		errors.Is(err, invoicedomain.ErrInvalidID),
		errors.Is(err, clientdomain.ErrNotFound),
		errors.Is(err, clientdomain.ErrInvalidID),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

// classifyErrorForLog returns the response type and the most specific code
// for request logs.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	if len(payload.Errors) > 0 {
		return payload.Type, payload.Errors[0].Code
	}
	return payload.Type, payload.Type
}
