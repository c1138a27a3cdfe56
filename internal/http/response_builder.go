// This file implements the Builder Pattern for JSON responses and the single
// place where service errors become HTTP statuses.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"expensetracker/internal/core"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	payload    any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Data sets the response payload.
func (b *JSONResponseBuilder) Data(v any) *JSONResponseBuilder {
	b.payload = v
	return b
}

// Error sets an {"error": msg} payload.
func (b *JSONResponseBuilder) Error(msg string) *JSONResponseBuilder {
	b.payload = map[string]string{"error": msg}
	return b
}

// FieldErrors sets an {"errors": {...}} payload.
func (b *JSONResponseBuilder) FieldErrors(errs core.ValidationErrors) *JSONResponseBuilder {
	b.payload = map[string]any{"errors": errs}
	return b
}

// Write sends the response. A nil payload writes headers only.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.payload == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.payload)
}

// BadRequestError creates a 400 Bad Request response.
func BadRequestError(msg string) *JSONResponseBuilder {
	return NewJSONResponse().Status(http.StatusBadRequest).Error(msg)
}

// NotFoundError creates a 404 Not Found response.
func NotFoundError(msg string) *JSONResponseBuilder {
	return NewJSONResponse().Status(http.StatusNotFound).Error(msg)
}

// ServiceUnavailableError creates a 503 response.
func ServiceUnavailableError(msg string) *JSONResponseBuilder {
	return NewJSONResponse().Status(http.StatusServiceUnavailable).Error(msg)
}

// InternalServerError creates a 500 response.
func InternalServerError(msg string) *JSONResponseBuilder {
	return NewJSONResponse().Status(http.StatusInternalServerError).Error(msg)
}

// ErrorResponse maps a service error to its response: field errors become
// 422, storage failures 503 and unknown ids 404.
func ErrorResponse(err error) *JSONResponseBuilder {
	var verrs core.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		return NewJSONResponse().Status(http.StatusUnprocessableEntity).FieldErrors(verrs)
	case errors.Is(err, core.ErrStorage):
		return ServiceUnavailableError("Your expenses could not be saved. Please try again.")
	case errors.Is(err, core.ErrNotFound):
		return NotFoundError("Expense not found")
	default:
		return InternalServerError("Internal server error")
	}
}
