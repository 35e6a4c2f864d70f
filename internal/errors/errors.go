package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeInvalidInput        ErrorType = "invalid_input"
	ErrorTypeDegenerateHistogram ErrorType = "degenerate_histogram"
	ErrorTypeEmptyContourSet     ErrorType = "empty_contour_set"
	ErrorTypeProcessing          ErrorType = "processing"
	ErrorTypeCancelled           ErrorType = "cancelled"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewInvalidInputError reports an unreadable path, an empty directory or an
// image that cannot be decoded or cropped.
func NewInvalidInputError(message string, cause error) *AppError {
	return &AppError{Type: ErrorTypeInvalidInput, Message: message, Cause: cause}
}

// NewDegenerateHistogramError reports a collapsed gray range. It is never
// fatal: the normalizer falls back to the identity transform.
func NewDegenerateHistogramError(minGray, maxGray int) *AppError {
	return &AppError{
		Type:    ErrorTypeDegenerateHistogram,
		Message: fmt.Sprintf("clipped gray range [%d, %d] is empty", minGray, maxGray),
	}
}

// NewEmptyContourSetError reports that no contour survived the area filter
// of the named pass.
func NewEmptyContourSetError(pass string, minArea float64) *AppError {
	return &AppError{
		Type:    ErrorTypeEmptyContourSet,
		Message: fmt.Sprintf("no contour in pass %q exceeds area %.0f", pass, minArea),
	}
}

// NewProcessingError creates a new processing error
func NewProcessingError(message string, cause error) *AppError {
	return &AppError{Type: ErrorTypeProcessing, Message: message, Cause: cause}
}

// NewCancelledError wraps a context error.
func NewCancelledError(stage string, cause error) *AppError {
	return &AppError{Type: ErrorTypeCancelled, Message: "cancelled before " + stage, Cause: cause}
}

// IsType checks if the error chain contains an AppError of the given type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	for err != nil {
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Type == errorType {
			return true
		}
		err = appErr.Cause
	}
	return false
}
