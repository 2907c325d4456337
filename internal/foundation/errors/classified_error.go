package errors

import "fmt"

// ClassifiedError is the structured error type used throughout the state core.
// It is immutable after Build; the With* methods return copies.
type ClassifiedError struct {
	category ErrorCategory
	severity ErrorSeverity
	retry    RetryStrategy
	message  string
	cause    error
	context  ErrorContext
}

// Error implements the standard error interface.
func (e *ClassifiedError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.category, e.severity, e.message, e.cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.category, e.severity, e.message)
}

// Unwrap supports errors.Is/errors.As over the cause chain.
func (e *ClassifiedError) Unwrap() error { return e.cause }

// Category returns the error category.
func (e *ClassifiedError) Category() ErrorCategory { return e.category }

// Severity returns the error severity.
func (e *ClassifiedError) Severity() ErrorSeverity { return e.severity }

// RetryStrategy returns the recommended retry strategy.
func (e *ClassifiedError) RetryStrategy() RetryStrategy { return e.retry }

// Message returns the bare message without classification prefix.
func (e *ClassifiedError) Message() string { return e.message }

// Context returns the structured context attached to the error.
func (e *ClassifiedError) Context() ErrorContext { return e.context }

// WithContext returns a copy of the error with one more context entry.
func (e *ClassifiedError) WithContext(key string, value any) *ClassifiedError {
	clone := *e
	clone.context = e.context.Merge(ErrorContext{key: value})
	return &clone
}

// Is matches classified errors by category and message.
func (e *ClassifiedError) Is(target error) bool {
	other, ok := target.(*ClassifiedError)
	if !ok {
		return false
	}
	return e.category == other.category && e.message == other.message
}

// IsCategory reports whether the error belongs to the given category.
func (e *ClassifiedError) IsCategory(category ErrorCategory) bool {
	return e.category == category
}

// CanRetry reports whether the failed operation may be retried at all.
func (e *ClassifiedError) CanRetry() bool {
	return e.retry != RetryNever
}

// AsClassified extracts a ClassifiedError from err, if it is one.
func AsClassified(err error) (*ClassifiedError, bool) {
	classified, ok := err.(*ClassifiedError)
	return classified, ok
}

// HasCategory reports whether err is a classified error of the given category.
func HasCategory(err error, category ErrorCategory) bool {
	if classified, ok := AsClassified(err); ok {
		return classified.IsCategory(category)
	}
	return false
}
