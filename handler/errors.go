package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// ErrNilResponse indicates a handler returned nil instead of a Response.
var ErrNilResponse = errors.New("handler: nil response")

// HTTPError is an error with a status code, a stable machine-readable code
// and optional payload rendered as error.details.
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Data    any
}

func (e HTTPError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

// WithMessage returns a copy with a different message.
func (e HTTPError) WithMessage(msg string) HTTPError {
	e.Message = msg
	return e
}

// WithMessagef is WithMessage with formatting.
func (e HTTPError) WithMessagef(format string, args ...any) HTTPError {
	e.Message = fmt.Sprintf(format, args...)
	return e
}

// WithData returns a copy carrying data.
func (e HTTPError) WithData(data any) HTTPError {
	e.Data = data
	return e
}

// Is matches HTTPErrors by code so errors.Is(err, handler.ErrNotFound)
// holds for any not-found message.
func (e HTTPError) Is(target error) bool {
	t, ok := target.(HTTPError)
	return ok && t.Code == e.Code && t.Status == e.Status
}

// NewHTTPError creates a custom HTTP error.
func NewHTTPError(status int, code, message string) HTTPError {
	return HTTPError{Status: status, Code: code, Message: message}
}

var (
	ErrBadRequest      = NewHTTPError(http.StatusBadRequest, "BAD_REQUEST", "Invalid request")
	ErrUnauthenticated = NewHTTPError(http.StatusUnauthorized, "UNAUTHENTICATED", "Authentication required")
	ErrForbidden       = NewHTTPError(http.StatusForbidden, "FORBIDDEN", "You do not have permission to access this resource")
	ErrAccessDenied    = NewHTTPError(http.StatusForbidden, "ACCESS_DENIED", "Access denied for this tenant")
	ErrNotFound        = NewHTTPError(http.StatusNotFound, "NOT_FOUND", "Resource not found")
	ErrConflict        = NewHTTPError(http.StatusBadRequest, "DUPLICATE", "Resource already exists")
	ErrPayloadTooLarge = NewHTTPError(http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large")
	ErrUnsupportedType = NewHTTPError(http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "Unsupported media type")
	ErrInternal        = NewHTTPError(http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
)

// ValidationError maps field names to messages.
type ValidationError url.Values

func (e ValidationError) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if msgs := e[f]; len(msgs) > 0 {
			parts = append(parts, f+": "+msgs[0])
		}
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// NewValidationError creates an empty ValidationError.
func NewValidationError() ValidationError {
	return make(ValidationError)
}

// Add appends a message for field.
func (e ValidationError) Add(field, message string) {
	url.Values(e).Add(field, message)
}

// Has reports whether field has any messages.
func (e ValidationError) Has(field string) bool {
	return len(e[field]) > 0
}

// IsEmpty reports whether there are no messages.
func (e ValidationError) IsEmpty() bool {
	return len(e) == 0
}

// OrNil returns nil when e is empty, otherwise e.
func (e ValidationError) OrNil() error {
	if e.IsEmpty() {
		return nil
	}
	return e
}
