// Package http provides the JSON API server and its handlers.
//
// This file implements the builder used for every JSON response, so bodies
// always carry the same {success, ...} envelope.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"moneymanager/internal/core"
	"moneymanager/internal/ledger"
	"moneymanager/internal/services"
	"moneymanager/internal/settings"
	"moneymanager/internal/sheets"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	fields     map[string]any
}

// NewJSONResponse creates a successful response with status 200.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
		fields:     map[string]any{"success": true},
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

// Set adds a top-level field to the envelope.
func (b *JSONResponseBuilder) Set(key string, value any) *JSONResponseBuilder {
	b.fields[key] = value
	return b
}

// Data sets the "data" field.
func (b *JSONResponseBuilder) Data(v any) *JSONResponseBuilder {
	return b.Set("data", v)
}

// Message sets a human readable "message".
func (b *JSONResponseBuilder) Message(msg string) *JSONResponseBuilder {
	return b.Set("message", msg)
}

// Fail marks the response unsuccessful with the given error text.
func (b *JSONResponseBuilder) Fail(msg string) *JSONResponseBuilder {
	b.fields["success"] = false
	b.fields["error"] = msg
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	body, err := json.Marshal(b.fields)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"error":"failed to encode response"}`))
		return
	}
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(body)
}

// ErrorResponse creates a failed response with the given status.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Fail(message)
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// UnprocessableEntityError creates a 422 Unprocessable Entity error response.
func UnprocessableEntityError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

var validationErrors = []error{
	core.ErrInvalidAmount,
	core.ErrEmptyCategory,
	core.ErrInvalidKind,
	core.ErrInvalidCurrency,
	core.ErrInvalidBucket,
	core.ErrInvalidMonthKey,
	core.ErrInvalidDate,
	settings.ErrPasswordTooShort,
	settings.ErrPasswordMismatch,
	settings.ErrInvalidPreference,
}

// StatusFor maps a domain error to its HTTP status.
func StatusFor(err error) int {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return http.StatusUnprocessableEntity
		}
	}
	switch {
	case errors.Is(err, sheets.ErrMissingCredentials):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, settings.ErrWrongPassword):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrUnconfirmedConflicts):
		return http.StatusConflict
	case errors.Is(err, sheets.ErrTargetUnavailable):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// ErrorFor builds the error response for err. Internal errors are not echoed.
func ErrorFor(err error) *JSONResponseBuilder {
	status := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	return ErrorResponse(status, msg)
}
