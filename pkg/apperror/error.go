// Package apperror defines the application error taxonomy and its HTTP
// serialization. Internal code paths return typed *Error values; the echo
// error handler translates them at the boundary.
package apperror

import (
	"fmt"
	"net/http"
)

// Category groups error codes into the families exposed to clients.
type Category string

const (
	CategoryAuthentication     Category = "authentication"
	CategoryAuthorization      Category = "authorization"
	CategoryValidation         Category = "validation"
	CategoryNotFound           Category = "not_found"
	CategoryConflict           Category = "conflict"
	CategoryRateLimit          Category = "rate_limit"
	CategoryServer             Category = "server"
	CategoryServiceUnavailable Category = "service_unavailable"
	CategoryNotImplemented     Category = "not_implemented"
)

// Severity controls the log level chosen at the boundary.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// FieldError describes a single validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Error is an application error carrying its taxonomy entry.
type Error struct {
	HTTPStatus int
	Code       string
	Category   Category
	Severity   Severity
	Message    string
	Internal   error
	Details    []FieldError
	// RetryAfter, in seconds, is emitted as a Retry-After header when > 0.
	RetryAfter int
}

func (e *Error) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Internal
}

// WithInternal returns a copy with an internal error attached.
func (e *Error) WithInternal(err error) *Error {
	c := *e
	c.Internal = err
	return &c
}

// WithMessage returns a copy with a custom user-safe message.
func (e *Error) WithMessage(message string) *Error {
	c := *e
	c.Message = message
	return &c
}

// WithDetails returns a copy with validation details attached.
func (e *Error) WithDetails(details ...FieldError) *Error {
	c := *e
	c.Details = details
	return &c
}

// New creates a new application error.
func New(status int, code string, category Category, severity Severity, message string) *Error {
	return &Error{
		HTTPStatus: status,
		Code:       code,
		Category:   category,
		Severity:   severity,
		Message:    message,
	}
}

// Catalog of common errors. Codes are stable and machine-readable.
var (
	// Authentication (401)
	ErrMissingCredentials = New(http.StatusUnauthorized, "AUTH_001", CategoryAuthentication, SeverityWarning, "Authentication required")
	ErrInvalidCredentials = New(http.StatusUnauthorized, "AUTH_002", CategoryAuthentication, SeverityWarning, "Invalid credentials")
	ErrTokenExpired       = New(http.StatusUnauthorized, "AUTH_003", CategoryAuthentication, SeverityWarning, "Token is expired or has already been used")
	ErrAccountLocked      = New(http.StatusUnauthorized, "AUTH_004", CategoryAuthentication, SeverityWarning, "Account is locked")

	// Authorization (403)
	ErrForbidden = New(http.StatusForbidden, "PERM_001", CategoryAuthorization, SeverityWarning, "Access denied")

	// Validation (400)
	ErrValidation = New(http.StatusBadRequest, "VAL_001", CategoryValidation, SeverityInfo, "Validation failed")
	ErrBadRequest = New(http.StatusBadRequest, "VAL_002", CategoryValidation, SeverityInfo, "Invalid request")

	// Not found (404); also used for existing-but-forbidden entities so the
	// two cases are indistinguishable to the caller.
	ErrNotFound = New(http.StatusNotFound, "NF_001", CategoryNotFound, SeverityInfo, "Resource not found")

	// Conflict (409)
	ErrConflict        = New(http.StatusConflict, "CONF_001", CategoryConflict, SeverityWarning, "Resource conflict")
	ErrVersionConflict = New(http.StatusConflict, "CONF_002", CategoryConflict, SeverityWarning, "Version conflict")

	// Rate limit (429)
	ErrRateLimited = &Error{
		HTTPStatus: http.StatusTooManyRequests,
		Code:       "RATE_001",
		Category:   CategoryRateLimit,
		Severity:   SeverityWarning,
		Message:    "Too many requests",
		RetryAfter: 5,
	}

	// Server (500)
	ErrInternal = New(http.StatusInternalServerError, "SRV_001", CategoryServer, SeverityError, "An internal error occurred")
	ErrDatabase = New(http.StatusInternalServerError, "SRV_002", CategoryServer, SeverityError, "Database operation failed")

	// Service unavailable (503). Database timeouts surface here.
	ErrServiceUnavailable = &Error{
		HTTPStatus: http.StatusServiceUnavailable,
		Code:       "SVC_001",
		Category:   CategoryServiceUnavailable,
		Severity:   SeverityError,
		Message:    "Service temporarily unavailable",
		RetryAfter: 2,
	}

	// Not implemented (501), for documented stubs.
	ErrNotImplemented = New(http.StatusNotImplemented, "NI_001", CategoryNotImplemented, SeverityInfo, "Not implemented")
)

// NewNotFound creates a not found error for a resource type and id.
func NewNotFound(resourceType, id string) *Error {
	return ErrNotFound.WithMessage(fmt.Sprintf("%s '%s' not found", resourceType, id))
}

// NewValidation creates a validation error with field details.
func NewValidation(details ...FieldError) *Error {
	return ErrValidation.WithDetails(details...)
}

// NewForbidden creates a forbidden error with a custom message.
func NewForbidden(message string) *Error {
	return ErrForbidden.WithMessage(message)
}

// NewConflict creates a conflict error with a code and message.
func NewConflict(code, message string) *Error {
	return New(http.StatusConflict, code, CategoryConflict, SeverityWarning, message)
}

// NewInternal creates an internal error wrapping err.
func NewInternal(message string, err error) *Error {
	return ErrInternal.WithMessage(message).WithInternal(err)
}
