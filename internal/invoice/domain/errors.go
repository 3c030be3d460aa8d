package domain

import (
	"errors"
	"strings"
)

var (
	ErrInvalidInput           = errors.New("invalid_input")
	ErrInvalidStateTransition = errors.New("invalid_state_transition")
	ErrTransientStorage       = errors.New("transient_storage_error")
	ErrConflict               = errors.New("conflict")
	ErrInvoiceNotFound        = errors.New("invoice_not_found")
	ErrBusinessNotFound       = errors.New("business_not_found")
	ErrInvalidBusiness        = errors.New("invalid_business")
	ErrInvalidID              = errors.New("invalid_id")
	ErrRendererUnavailable    = errors.New("renderer_unavailable")
)

// FieldError describes one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationErrors collects field errors. It unwraps to ErrInvalidInput.
type ValidationErrors struct {
	Errors []FieldError `json:"errors"`
}

func (v *ValidationErrors) Error() string {
	if v == nil || len(v.Errors) == 0 {
		return ErrInvalidInput.Error()
	}
	parts := make([]string, 0, len(v.Errors))
	for _, e := range v.Errors {
		parts = append(parts, e.Field+": "+e.Code)
	}
	return ErrInvalidInput.Error() + ": " + strings.Join(parts, ", ")
}

func (v *ValidationErrors) Unwrap() error { return ErrInvalidInput }

// Add appends a field error.
func (v *ValidationErrors) Add(field, code, message string) {
	v.Errors = append(v.Errors, FieldError{Field: field, Code: code, Message: message})
}

// Merge appends the field errors carried by err, or a generic entry when err
// is not a validation error.
func (v *ValidationErrors) Merge(err error) {
	if err == nil {
		return
	}
	var other *ValidationErrors
	if errors.As(err, &other) && other != nil {
		v.Errors = append(v.Errors, other.Errors...)
		return
	}
	v.Add("request", "invalid", err.Error())
}

// Err returns nil when no field errors were collected.
func (v *ValidationErrors) Err() error {
	if v == nil || len(v.Errors) == 0 {
		return nil
	}
	return v
}

// NewValidationError builds a single-field validation error.
func NewValidationError(field, code, message string) error {
	return &ValidationErrors{Errors: []FieldError{{Field: field, Code: code, Message: message}}}
}
