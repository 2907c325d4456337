package observability

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestContextFieldsAppearInLogs(t *testing.T) {
	buf := captureLogs(t)

	ctx := context.Background()
	ctx = WithUserID(ctx, "u-42")
	ctx = WithModule(ctx, "projects")
	ctx = WithMutationType(ctx, "projects/ADD_PROJECT")

	InfoContext(ctx, "mutation applied")

	out := buf.String()
	assert.Contains(t, out, "user.id=u-42")
	assert.Contains(t, out, "module=projects")
	assert.Contains(t, out, "mutation.type=projects/ADD_PROJECT")
	assert.Contains(t, out, "mutation applied")
}

func TestEmptyContextAddsNoFields(t *testing.T) {
	buf := captureLogs(t)

	WarnContext(context.Background(), "bare message")

	out := buf.String()
	assert.Contains(t, out, "bare message")
	assert.NotContains(t, out, "user.id")
	assert.NotContains(t, out, "sync.cycle")
}

func TestContextValuesAreScoped(t *testing.T) {
	base := WithModule(context.Background(), "ui")
	derived := WithModule(base, "chat")

	assert.Equal(t, "ui", extractLogContext(base).Module)
	assert.Equal(t, "chat", extractLogContext(derived).Module)
}
