package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_Defaults(t *testing.T) {
	err := NewError(CategorySync, "cycle failed").Build()

	assert.Equal(t, CategorySync, err.Category())
	assert.Equal(t, SeverityError, err.Severity())
	assert.Equal(t, RetryNever, err.RetryStrategy())
	assert.Equal(t, "cycle failed", err.Message())
}

func TestBuilder_WrapPreservesCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := WrapError(cause, CategoryNetwork, "fetch updates").Retryable().Build()

	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
	assert.True(t, err.CanRetry())
}

func TestBuilder_Context(t *testing.T) {
	err := SyncError("push rejected").
		WithContext("pending", 3).
		WithContext("endpoint", "/api/state/updates").
		Build()

	v, ok := err.Context().Get("pending")
	require.True(t, ok)
	assert.Equal(t, 3, v)

	// WithContext on a built error must not mutate the original.
	extended := err.WithContext("attempt", 2)
	_, ok = err.Context().Get("attempt")
	assert.False(t, ok)
	_, ok = extended.Context().Get("attempt")
	assert.True(t, ok)
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *ClassifiedError
		category ErrorCategory
		retry    RetryStrategy
	}{
		{"module", ModuleNotFoundError("no such module").Build(), CategoryModule, RetryNever},
		{"validation", ValidationError("bad payload").Build(), CategoryValidation, RetryNever},
		{"persistence", PersistenceError("write failed").Build(), CategoryPersistence, RetryNextCycle},
		{"sync", SyncError("server unreachable").Build(), CategorySync, RetryBackoff},
		{"action", ActionError("handler rejected").Build(), CategoryAction, RetryNever},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.err.IsCategory(tt.category))
			assert.Equal(t, tt.retry, tt.err.RetryStrategy())
		})
	}
}

func TestHasCategory(t *testing.T) {
	err := PersistenceError("decode failed").Build()

	assert.True(t, HasCategory(err, CategoryPersistence))
	assert.False(t, HasCategory(err, CategorySync))
	assert.False(t, HasCategory(stderrors.New("plain"), CategoryPersistence))
}
