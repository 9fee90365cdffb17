package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"gorm.io/gorm"
)

// Kind classifies an error for translation at the HTTP boundary.
type Kind int

const (
	KindInternal Kind = iota
	KindAuthenticationRequired
	KindForbidden
	KindValidationFailed
	KindNotFound
	KindConflict
	KindGatewayUnavailable
	KindInvalidGatewayResponse
	KindDatabaseUnavailable
	KindMethodNotAllowed
)

// Error is the single error type handlers return.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status returns the HTTP status code for the error kind.
func (e *Error) Status() int {
	switch e.Kind {
	case KindAuthenticationRequired:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindValidationFailed:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case KindInvalidGatewayResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the caller may simply try again later.
func (e *Error) Retryable() bool {
	return e.Kind == KindGatewayUnavailable || e.Kind == KindDatabaseUnavailable
}

func AuthenticationRequired(msg string) *Error {
	return &Error{Kind: KindAuthenticationRequired, Code: "AUTHENTICATION_REQUIRED", Message: msg}
}

func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Code: "FORBIDDEN", Message: msg}
}

func ValidationFailed(msg string, fields map[string]string) *Error {
	return &Error{Kind: KindValidationFailed, Code: "VALIDATION_FAILED", Message: msg, Fields: fields}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Code: "NOT_FOUND", Message: msg}
}

func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Code: "CONFLICT", Message: msg}
}

func MethodNotAllowed(msg string) *Error {
	return &Error{Kind: KindMethodNotAllowed, Code: "METHOD_NOT_ALLOWED", Message: msg}
}

func GatewayUnavailable(msg string, err error) *Error {
	return &Error{Kind: KindGatewayUnavailable, Code: "GATEWAY_UNAVAILABLE", Message: msg, Err: err}
}

func InvalidGatewayResponse(msg string, err error) *Error {
	return &Error{Kind: KindInvalidGatewayResponse, Code: "INVALID_GATEWAY_RESPONSE", Message: msg, Err: err}
}

func DatabaseUnavailable(err error) *Error {
	return &Error{Kind: KindDatabaseUnavailable, Code: "DATABASE_UNAVAILABLE", Message: "Database is unavailable, please try again", Err: err}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: "INTERNAL_ERROR", Message: "Something went wrong. Please try again later.", Err: err}
}

// FromDB translates a GORM error. notFoundMsg is used for ErrRecordNotFound.
func FromDB(err error, notFoundMsg string) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFound(notFoundMsg)
	}
	return DatabaseUnavailable(err)
}

// As extracts an *Error from err, wrapping unknown errors as Internal.
func As(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Internal(err)
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == kind
}
