// Package errors provides a lightweight structured error type (BundlerError)
// for category-based classification and retry semantics in the CLI and daemon.
package errors

import (
	"fmt"
)

// ErrorCategory represents the category of a webbundler error for classification
type ErrorCategory string

const (
	// User-facing configuration and input errors
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"

	// Build and processing errors
	CategoryBundle     ErrorCategory = "bundle"
	CategoryFileSystem ErrorCategory = "filesystem"

	// Runtime and infrastructure errors
	CategoryWatch    ErrorCategory = "watch"
	CategoryDaemon   ErrorCategory = "daemon"
	CategoryHistory  ErrorCategory = "history"
	CategoryNotify   ErrorCategory = "notify"
	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution
	SeverityError   ErrorSeverity = "error"   // Error, but not fatal
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
	SeverityInfo    ErrorSeverity = "info"    // Informational, no impact
)

// BundlerError is a structured error with category, retryability, and context
type BundlerError struct {
	Category  ErrorCategory `json:"category"`
	Severity  ErrorSeverity `json:"severity"`
	Message   string        `json:"message"`
	Cause     error         `json:"cause,omitempty"`
	Retryable bool          `json:"retryable"`
	Context   ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for BundlerError
type ContextFields map[string]any

// Error implements the error interface
func (e *BundlerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap implements error unwrapping for Go 1.13+ error handling
func (e *BundlerError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *BundlerError) WithContext(key string, value any) *BundlerError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// New creates a new BundlerError
func New(category ErrorCategory, severity ErrorSeverity, message string) *BundlerError {
	return &BundlerError{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Retryable: false,
	}
}

// Wrap creates a new BundlerError that wraps an existing error
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *BundlerError {
	return &BundlerError{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Cause:     err,
		Retryable: false,
	}
}

// Retryable creates a new retryable BundlerError
func Retryable(category ErrorCategory, severity ErrorSeverity, message string) *BundlerError {
	return &BundlerError{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Retryable: true,
	}
}

// IsCategory checks if an error belongs to a specific category
func IsCategory(err error, category ErrorCategory) bool {
	if be, ok := err.(*BundlerError); ok {
		return be.Category == category
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if be, ok := err.(*BundlerError); ok {
		return be.Retryable
	}
	return false
}

// GetCategory extracts the category from an error, or returns CategoryInternal if not a BundlerError
func GetCategory(err error) ErrorCategory {
	if be, ok := err.(*BundlerError); ok {
		return be.Category
	}
	return CategoryInternal
}

// ValidationError creates a new validation error
func ValidationError(message string) *BundlerError {
	return &BundlerError{
		Category:  CategoryValidation,
		Severity:  SeverityWarning,
		Message:   message,
		Retryable: false,
	}
}

// DaemonError creates a new daemon error
func DaemonError(message string) *BundlerError {
	return &BundlerError{
		Category:  CategoryDaemon,
		Severity:  SeverityError,
		Message:   message,
		Retryable: false,
	}
}

// WrapError wraps an existing error with a new BundlerError
func WrapError(err error, category ErrorCategory, message string) *BundlerError {
	return &BundlerError{
		Category:  category,
		Severity:  SeverityError,
		Message:   message,
		Cause:     err,
		Retryable: false,
	}
}
