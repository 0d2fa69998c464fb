// Package errors provides a lightweight structured error type (CdispError)
// for category-based classification across the dispatch engine and CLI.
package errors

import (
	"fmt"
)

// ErrorCategory classifies a CdispError for handling decisions.
type ErrorCategory string

const (
	// User-facing configuration and input errors
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"

	// Profile and component model errors
	CategoryProfile      ErrorCategory = "profile"
	CategoryComponent    ErrorCategory = "component"
	CategorySubscription ErrorCategory = "subscription"

	// Dispatch cycle errors
	CategoryInvoke ErrorCategory = "invoke"
	CategoryState  ErrorCategory = "state"

	// Runtime and infrastructure errors
	CategoryDaemon   ErrorCategory = "daemon"
	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates how critical an error is.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution
	SeverityError   ErrorSeverity = "error"   // Error, but not fatal
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
)

// CdispError is a structured error with category, severity and context.
// Failure semantics are carried in the category and severity, not by
// panicking; only SeverityFatal stops execution.
type CdispError struct {
	Category ErrorCategory `json:"category"`
	Severity ErrorSeverity `json:"severity"`
	Message  string        `json:"message"`
	Cause    error         `json:"cause,omitempty"`
	Context  ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for CdispError.
type ContextFields map[string]any

// Error implements the error interface.
func (e *CdispError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap implements error unwrapping.
func (e *CdispError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error.
func (e *CdispError) WithContext(key string, value any) *CdispError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// New creates a new CdispError.
func New(category ErrorCategory, severity ErrorSeverity, message string) *CdispError {
	return &CdispError{
		Category: category,
		Severity: severity,
		Message:  message,
	}
}

// Wrap creates a new CdispError that wraps an existing error.
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *CdispError {
	return &CdispError{
		Category: category,
		Severity: severity,
		Message:  message,
		Cause:    err,
	}
}

// Newf creates a new CdispError with a formatted message.
func Newf(category ErrorCategory, severity ErrorSeverity, format string, args ...any) *CdispError {
	return New(category, severity, fmt.Sprintf(format, args...))
}

// IsCategory checks if an error belongs to a specific category.
func IsCategory(err error, category ErrorCategory) bool {
	if ce, ok := err.(*CdispError); ok {
		return ce.Category == category
	}
	return false
}

// GetCategory extracts the category from an error, or CategoryInternal if the
// error is not a CdispError.
func GetCategory(err error) ErrorCategory {
	if ce, ok := err.(*CdispError); ok {
		return ce.Category
	}
	return CategoryInternal
}

// MissingComponentsPath signals that a profile has no /software/components
// subtree. Fatality is the caller's call: on the pivot profile it means "no
// prior components", on the new profile it is logged and treated as an empty
// component set.
func MissingComponentsPath(profileID uint64) *CdispError {
	return New(CategoryProfile, SeverityError, "profile has no components path").
		WithContext("profile_id", profileID)
}

// MisconfiguredComponent marks a component whose active or dispatch property
// is missing or unreadable.
func MisconfiguredComponent(name, property string) *CdispError {
	return New(CategoryComponent, SeverityWarning, "component property missing or invalid").
		WithContext("component", name).
		WithContext("property", property)
}

// DanglingSubscription marks a subscribed path that does not exist in the new
// profile.
func DanglingSubscription(name, path string) *CdispError {
	return New(CategorySubscription, SeverityError, "component subscribed to a non-existent path").
		WithContext("component", name).
		WithContext("path", path)
}
