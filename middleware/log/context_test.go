package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithTraceIDContext(t *testing.T) {
	t.Run("keeps provided trace ID", func(t *testing.T) {
		ctx := WithTraceID(context.Background(), "trace-123")
		assert.Equal(t, "trace-123", GetTraceID(ctx))
	})

	t.Run("generates a UUID when empty", func(t *testing.T) {
		ctx := WithTraceID(context.Background(), "")
		assert.Len(t, GetTraceID(ctx), 36)
	})

	t.Run("missing trace ID yields empty string", func(t *testing.T) {
		assert.Empty(t, GetTraceID(context.Background()))
	})

	t.Run("preserves other values", func(t *testing.T) {
		type key string
		ctx := context.WithValue(context.Background(), key("k"), "v")
		ctx = WithTraceID(ctx, "trace-456")

		assert.Equal(t, "v", ctx.Value(key("k")))
		assert.Equal(t, "trace-456", GetTraceID(ctx))
	})
}
