package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

const (
	CodeValidation            = "VALIDATION_ERROR"
	CodeInvalidInput          = "INVALID_INPUT"
	CodeNotFound              = "NOT_FOUND"
	CodeConflict              = "CONFLICT"
	CodePartialReconciliation = "PARTIAL_RECONCILIATION"
	CodeStorageUnavailable    = "STORAGE_UNAVAILABLE"
	CodeInternal              = "INTERNAL_ERROR"
)

// AppError is a custom error type for application errors
type AppError struct {
	Code       string
	Message    string
	StatusCode int // Same rule as HTTP status codes
	Err        error
	Details    map[string]interface{}
}

// Error returns a string representation of the error
func (e AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is implements the errors.Is interface
func (e AppError) Is(target error) bool {
	if target, ok := target.(AppError); ok {
		return target.Code == e.Code
	}
	return false
}

// Unwrap returns the underlying error
func (e AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a single detail to the error
func (e AppError) WithDetail(key string, value interface{}) AppError {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	e.Details = details
	return e
}

// HasCode reports whether err is an AppError carrying code.
func HasCode(err error, code string) bool {
	var appErr AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	return appErr.Code == code
}

// NewValidationError creates a new validation error
func NewValidationError(message string) AppError {
	return AppError{
		Code:       CodeValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

// NewInvalidInputError creates a new invalid input error
func NewInvalidInputError(message string, err error) AppError {
	return AppError{
		Code:       CodeInvalidInput,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Err:        err,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) AppError {
	return AppError{
		Code:       CodeNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

// NewConflictError creates a new conflict error
func NewConflictError(message string) AppError {
	return AppError{
		Code:       CodeConflict,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// NewPartialReconciliationError reports a ledger entry that was committed
// while the matching balance write was not. entryID identifies the committed
// entry so the caller can avoid appending it twice.
func NewPartialReconciliationError(message, entryID string, err error) AppError {
	return AppError{
		Code:       CodePartialReconciliation,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Err:        err,
		Details:    map[string]interface{}{"entryId": entryID},
	}
}

// NewStorageUnavailableError creates an error for a backend that cannot be read or written
func NewStorageUnavailableError(message string, err error) AppError {
	return AppError{
		Code:       CodeStorageUnavailable,
		Message:    message,
		StatusCode: http.StatusServiceUnavailable,
		Err:        err,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) AppError {
	return AppError{
		Code:       CodeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}
