package errors

import "maps"

// ErrorCategory identifies which store subsystem produced an error.
type ErrorCategory string

const (
	// CategoryModule covers references to modules that were never registered.
	// These are programmer errors and are never retryable.
	CategoryModule ErrorCategory = "module"

	// CategoryValidation covers mutations rejected by a module's validator.
	CategoryValidation ErrorCategory = "validation"

	// CategoryAction covers failures inside dispatched action handlers.
	CategoryAction ErrorCategory = "action"

	// CategoryPersistence covers storage backend read/write/decode failures.
	// Always recovered: the store keeps serving from memory.
	CategoryPersistence ErrorCategory = "persistence"

	// CategorySync covers network/server failures during reconciliation.
	CategorySync ErrorCategory = "sync"

	// CategoryRealtime covers push-channel transport failures.
	CategoryRealtime ErrorCategory = "realtime"

	// CategoryJournal covers mutation journal append/query failures.
	CategoryJournal ErrorCategory = "journal"

	// CategoryHistory covers time-travel and history log failures.
	CategoryHistory ErrorCategory = "history"

	// CategoryConfig covers configuration loading and validation failures.
	CategoryConfig ErrorCategory = "config"

	// CategoryNetwork covers low-level HTTP client failures.
	CategoryNetwork ErrorCategory = "network"

	// CategoryInternal covers invariant violations inside the store itself.
	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates the impact level of an error.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // stops the current operation chain
	SeverityError   ErrorSeverity = "error"   // fails the current operation
	SeverityWarning ErrorSeverity = "warning" // degraded but continuing
	SeverityInfo    ErrorSeverity = "info"    // informational only
)

// RetryStrategy indicates how callers should treat the failed operation.
type RetryStrategy string

const (
	RetryNever     RetryStrategy = "never"     // permanent, do not retry
	RetryImmediate RetryStrategy = "immediate" // safe to retry right away
	RetryBackoff   RetryStrategy = "backoff"   // retry with backoff (sync cycles)
	RetryNextCycle RetryStrategy = "next_cycle" // picked up by the next scheduled cycle
)

// ErrorContext carries structured key/value context on an error.
type ErrorContext map[string]any

// Set adds or updates a context value, allocating on first use.
func (c ErrorContext) Set(key string, value any) ErrorContext {
	if c == nil {
		c = make(ErrorContext)
	}
	c[key] = value
	return c
}

// Get retrieves a context value.
func (c ErrorContext) Get(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c[key]
	return v, ok
}

// Merge returns a copy of c with all entries from other applied on top.
func (c ErrorContext) Merge(other ErrorContext) ErrorContext {
	merged := make(ErrorContext, len(c)+len(other))
	maps.Copy(merged, c)
	maps.Copy(merged, other)
	return merged
}
