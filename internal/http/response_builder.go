// Package http exposes the ledger services as a JSON API.
//
// This file holds the response builder and the mapping from domain errors
// to HTTP status codes.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"webbudget/internal/core"
	applog "webbudget/internal/log"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.body)
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Expected  string `json:"expected,omitempty"`
	Actual    string `json:"actual,omitempty"`
	Available string `json:"available,omitempty"`
	Ref       string `json:"ref,omitempty"`
}

// ErrorResponse creates an error response with the given code and message.
func ErrorResponse(statusCode int, code, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(ErrorBody{Code: code, Message: message})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, "bad_request", message)
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, core.NotFound, message)
}

// DomainError maps err to a status code and body:
// validation and budget errors are 422, state conflicts 409 (not found
// 404), anything else 500.
func DomainError(err error) (*JSONResponseBuilder, string) {
	var (
		verr *core.ValidationError
		berr *core.BudgetExceededError
		cerr *core.StateConflictError
	)
	switch {
	case errors.As(err, &verr):
		body := ErrorBody{Code: verr.Kind, Message: verr.Error()}
		if verr.Kind == core.ApportionmentMismatch {
			body.Expected, body.Actual = verr.Expected.String(), verr.Actual.String()
		}
		return NewJSONResponse().Status(http.StatusUnprocessableEntity).Body(body), applog.ErrorTypeValidation
	case errors.As(err, &berr):
		body := ErrorBody{Code: "budget_exceeded", Message: berr.Error(), Available: berr.Available.String()}
		return NewJSONResponse().Status(http.StatusUnprocessableEntity).Body(body), applog.ErrorTypeBudget
	case errors.As(err, &cerr):
		status, errType := http.StatusConflict, applog.ErrorTypeConflict
		if cerr.Kind == core.NotFound {
			status, errType = http.StatusNotFound, applog.ErrorTypeNotFound
		}
		body := ErrorBody{Code: cerr.Kind, Message: cerr.Error(), Ref: cerr.Ref}
		return NewJSONResponse().Status(status).Body(body), errType
	case errors.Is(err, core.ErrInvalidAmount):
		return ErrorResponse(http.StatusBadRequest, "invalid_amount", err.Error()), applog.ErrorTypeValidation
	default:
		return ErrorResponse(http.StatusInternalServerError, "internal_error", "internal server error"), applog.ErrorTypeInternal
	}
}

// writeError logs err with the request logger and writes its mapped response.
func writeError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	resp, errType := DomainError(err)
	applog.LogError(r.Context(), "Request failed", err, errType, operation, nil)
	resp.Write(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	NewJSONResponse().Status(status).Body(v).Write(w)
}
