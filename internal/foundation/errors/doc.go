// Package errors provides classified errors for the state core.
//
// Every failure that crosses a package boundary is a *ClassifiedError
// carrying a category (which subsystem failed), a severity, and a retry
// strategy. Categories map one-to-one onto the store's error taxonomy:
// unknown module references, rejected mutations, persistence failures,
// sync failures, and action handler failures.
//
// Errors are built with a fluent builder:
//
//	errors.SyncError("server rejected update batch").
//	    WithContext("pending", len(batch)).
//	    Build()
package errors
