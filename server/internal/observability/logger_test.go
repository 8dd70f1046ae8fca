package observability

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestContextLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	reqCtx := NewRequestContextWithID(logger, "req-1", "feedback", 7)
	reqCtx.Info("applied", slog.Int(LogFieldAttempt, 2))

	out := buf.String()
	assert.Contains(t, out, `"request_id":"req-1"`)
	assert.Contains(t, out, `"user_id":7`)
	assert.Contains(t, out, `"operation":"feedback"`)
	assert.Contains(t, out, `"attempt":2`)
}

func TestRequestContextGeneratesID(t *testing.T) {
	reqCtx := NewRequestContext(nil, "recommend", 1)
	assert.NotEmpty(t, reqCtx.RequestID)
	assert.NotNil(t, reqCtx.Logger)
}

func TestRequestContextRoundTrip(t *testing.T) {
	reqCtx := NewRequestContext(slog.Default(), "recommend", 3)
	ctx := WithRequestContext(context.Background(), reqCtx)

	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, reqCtx, got)
	assert.Same(t, reqCtx, FromContextOrNew(ctx, "other", 9))

	fresh := FromContextOrNew(context.Background(), "other", 9)
	assert.Equal(t, "other", fresh.Operation)
	assert.Equal(t, int32(9), fresh.UserID)
}
