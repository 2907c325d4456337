package errors

// ErrorBuilder provides a fluent API for creating ClassifiedError values.
type ErrorBuilder struct {
	category ErrorCategory
	severity ErrorSeverity
	retry    RetryStrategy
	message  string
	cause    error
	context  ErrorContext
}

// NewError starts a builder with the given category and message.
func NewError(category ErrorCategory, message string) *ErrorBuilder {
	return &ErrorBuilder{
		category: category,
		severity: SeverityError,
		retry:    RetryNever,
		message:  message,
		context:  make(ErrorContext),
	}
}

// WrapError starts a builder that wraps an existing error.
func WrapError(err error, category ErrorCategory, message string) *ErrorBuilder {
	b := NewError(category, message)
	b.cause = err
	return b
}

// WithSeverity sets the error severity.
func (b *ErrorBuilder) WithSeverity(severity ErrorSeverity) *ErrorBuilder {
	b.severity = severity
	return b
}

// WithRetry sets the retry strategy.
func (b *ErrorBuilder) WithRetry(strategy RetryStrategy) *ErrorBuilder {
	b.retry = strategy
	return b
}

// WithContext adds a context key/value pair.
func (b *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	b.context = b.context.Set(key, value)
	return b
}

// WithCause attaches an underlying cause.
func (b *ErrorBuilder) WithCause(err error) *ErrorBuilder {
	b.cause = err
	return b
}

// Fatal sets the severity to fatal.
func (b *ErrorBuilder) Fatal() *ErrorBuilder {
	return b.WithSeverity(SeverityFatal)
}

// Warning sets the severity to warning.
func (b *ErrorBuilder) Warning() *ErrorBuilder {
	return b.WithSeverity(SeverityWarning)
}

// Retryable sets the retry strategy to backoff.
func (b *ErrorBuilder) Retryable() *ErrorBuilder {
	return b.WithRetry(RetryBackoff)
}

// Recovered marks the error as retried automatically by the next cycle.
func (b *ErrorBuilder) Recovered() *ErrorBuilder {
	return b.WithRetry(RetryNextCycle).WithSeverity(SeverityWarning)
}

// Build creates the final ClassifiedError.
func (b *ErrorBuilder) Build() *ClassifiedError {
	return &ClassifiedError{
		category: b.category,
		severity: b.severity,
		retry:    b.retry,
		message:  b.message,
		cause:    b.cause,
		context:  b.context,
	}
}

// Convenience constructors, one per taxonomy entry.

// ModuleNotFoundError reports a commit or dispatch against an unregistered module.
func ModuleNotFoundError(message string) *ErrorBuilder {
	return NewError(CategoryModule, message).Fatal()
}

// ValidationError reports a mutation rejected by a module validator.
func ValidationError(message string) *ErrorBuilder {
	return NewError(CategoryValidation, message)
}

// ActionError reports a dispatched action handler failure.
func ActionError(message string) *ErrorBuilder {
	return NewError(CategoryAction, message)
}

// PersistenceError reports a storage backend failure. Always recovered.
func PersistenceError(message string) *ErrorBuilder {
	return NewError(CategoryPersistence, message).Recovered()
}

// SyncError reports a reconciliation failure. Retried next cycle with backoff.
func SyncError(message string) *ErrorBuilder {
	return NewError(CategorySync, message).Retryable()
}

// RealtimeError reports a push-channel transport failure.
func RealtimeError(message string) *ErrorBuilder {
	return NewError(CategoryRealtime, message).Retryable()
}

// JournalError reports a mutation journal failure.
func JournalError(message string) *ErrorBuilder {
	return NewError(CategoryJournal, message).Warning()
}

// HistoryError reports a time-travel or history log failure.
func HistoryError(message string) *ErrorBuilder {
	return NewError(CategoryHistory, message)
}

// ConfigError reports a configuration failure.
func ConfigError(message string) *ErrorBuilder {
	return NewError(CategoryConfig, message).Fatal()
}

// NetworkError reports a low-level HTTP failure (typically retryable).
func NetworkError(message string) *ErrorBuilder {
	return NewError(CategoryNetwork, message).Retryable()
}

// InternalError reports a broken invariant inside the store.
func InternalError(message string) *ErrorBuilder {
	return NewError(CategoryInternal, message).Fatal()
}
