// Package apperror turns domain and persistence errors into the failure a
// client sees. Every mapped error terminates the request; nothing here
// retries or swallows.
package apperror

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"finance/internal/core"
)

const (
	CodeCategoryNotFound    = "CATEGORY_NOT_FOUND"
	CodeTransactionNotFound = "TRANSACTION_NOT_FOUND"
	CodeConstraintViolation = "CONSTRAINT_VIOLATION"
	CodeValidationFailed    = "VALIDATION_FAILED"
	CodeBadRequest          = "BAD_REQUEST"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeTooManyRequests     = "TOO_MANY_REQUESTS"
	CodeInternal            = "INTERNAL_ERROR"
)

const internalMessage = "Unexpected error, check server logs"

// Error is the user-facing failure. Err keeps the cause for logging and is
// never serialized.
type Error struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Err.Error()
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

func BadRequest(message string, err error) *Error {
	return &Error{Status: http.StatusBadRequest, Code: CodeBadRequest, Message: message, Err: err}
}

func Unauthorized(message string) *Error {
	return New(http.StatusUnauthorized, CodeUnauthorized, message)
}

// Map classifies err. An *Error passes through unchanged.
func Map(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}

	var verr *core.ValidationError
	switch {
	case errors.Is(err, core.ErrCategoryNotFound):
		return &Error{Status: http.StatusNotFound, Code: CodeCategoryNotFound, Message: "Category not found", Err: err}
	case errors.Is(err, core.ErrTransactionNotFound):
		return &Error{Status: http.StatusNotFound, Code: CodeTransactionNotFound, Message: "Transaction not found", Err: err}
	case errors.Is(err, core.ErrConstraintViolation):
		return &Error{Status: http.StatusBadRequest, Code: CodeConstraintViolation, Message: "The request violates a data constraint", Err: err}
	case errors.As(err, &verr):
		return &Error{Status: http.StatusBadRequest, Code: CodeValidationFailed, Message: verr.Error(), Err: err}
	default:
		return &Error{Status: http.StatusInternalServerError, Code: CodeInternal, Message: internalMessage, Err: err}
	}
}

type body struct {
	StatusCode int    `json:"statusCode"`
	Error      string `json:"error"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

// Write maps err and sends it as JSON. Server errors are logged with their
// cause; the client only gets the generic message.
func Write(w http.ResponseWriter, r *http.Request, err error) {
	e := Map(err)
	if e.Status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status)
	_ = json.NewEncoder(w).Encode(body{
		StatusCode: e.Status,
		Error:      http.StatusText(e.Status),
		Code:       e.Code,
		Message:    e.Message,
	})
}
