// Package errors defines the error body returned by the ledger API.
package errors

import "net/http"

// APIError is rendered as {"code": ..., "message": ...}. Clients branch on
// Code; Status selects the HTTP status and decides whether a retry may help.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}

func New(status int, code, message string) *APIError {
	return &APIError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

func Internal(message string) *APIError {
	if message == "" {
		message = "internal server error"
	}
	return New(http.StatusInternalServerError, "internal_error", message)
}

func BadRequest(code, message string) *APIError {
	return New(http.StatusBadRequest, code, message)
}

func Unauthorized(message string) *APIError {
	if message == "" {
		message = "unauthorized"
	}
	return New(http.StatusUnauthorized, "unauthorized", message)
}

// RateLimited tells the client to back off; the ledger client treats it as retryable.
func RateLimited() *APIError {
	return New(http.StatusTooManyRequests, "rate_limited", "too many requests")
}

// Body wraps the error in the {"error": {...}} envelope every endpoint uses.
func (e *APIError) Body() map[string]interface{} {
	return map[string]interface{}{"error": e}
}
