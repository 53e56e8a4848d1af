// Package errors provides structured error types for the analytics pipeline.
// All errors include a category, code, message, and retryable flag for
// consistent error handling across components.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by the kind of failure.
type ErrorCategory string

const (
	ErrCategoryDataAccess ErrorCategory = "DATA_ACCESS"
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryConfig     ErrorCategory = "CONFIG"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Data access codes
	CodeSourceNotFound    = "SOURCE_NOT_FOUND"
	CodeReadFailed        = "READ_FAILED"
	CodeParseError        = "PARSE_ERROR"
	CodeMissingColumn     = "MISSING_COLUMN"
	CodeInvalidDate       = "INVALID_DATE"
	CodeInvalidFlag       = "INVALID_FLAG"
	CodeDuplicateRow      = "DUPLICATE_ROW"
	CodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	CodeWriteFailed       = "WRITE_FAILED"

	// Validation codes
	CodeMalformedHistory  = "MALFORMED_HISTORY"
	CodeEmptyHistory      = "EMPTY_HISTORY"
	CodeInvalidBoundaries = "INVALID_BOUNDARIES"
	CodeInvalidPeriod     = "INVALID_PERIOD"
	CodeUnorderedSeries   = "UNORDERED_SERIES"
	CodeUnknownProduct    = "UNKNOWN_PRODUCT"

	// Config codes
	CodeInvalidConfig = "INVALID_CONFIG"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// Error is the structured error type used throughout the pipeline.
type Error struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new Error.
func New(category ErrorCategory, code, message string) *Error {
	return &Error{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *Error {
	return &Error{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not an *Error.
func GetCategory(err error) ErrorCategory {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not an *Error.
func GetCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsDataAccess reports whether err is a DataAccessError.
func IsDataAccess(err error) bool {
	return GetCategory(err) == ErrCategoryDataAccess
}

// isRetryable reports which codes may succeed on a second attempt.
// Only transport reads are transient; analytics are deterministic.
func isRetryable(category ErrorCategory, code string) bool {
	return category == ErrCategoryDataAccess && code == CodeReadFailed
}

// Convenience constructors for common errors.

func NewDataAccessError(code, message string, cause error) *Error {
	return Wrap(ErrCategoryDataAccess, code, message, cause)
}

func NewValidationError(code, message string) *Error {
	return New(ErrCategoryValidation, code, message)
}

func NewConfigError(message string, cause error) *Error {
	return Wrap(ErrCategoryConfig, CodeInvalidConfig, message, cause)
}

func NewInternalError(message string, cause error) *Error {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
