package serverutils

import "net/http"

// AppError is an error with an HTTP status category. Controllers and services
// return it when the failure should map to something other than a plain 500.
type AppError struct {
	Code    int    `json:"-"`
	Message string `json:"error"`
}

func (e *AppError) Error() string {
	return e.Message
}

// NewBadRequestError marks bad client input: surfaced immediately, never
// retried, reported verbatim to the caller.
func NewBadRequestError(message string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: message}
}

func NewNotFoundError(message string) *AppError {
	return &AppError{Code: http.StatusNotFound, Message: message}
}

// NewInternalError marks a dependency or pipeline failure the caller cannot
// fix by changing the request.
func NewInternalError(message string) *AppError {
	return &AppError{Code: http.StatusInternalServerError, Message: message}
}
