package ctxkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestID(t *testing.T) {
	ctx := context.Background()

	_, ok := RequestID(ctx)
	assert.False(t, ok, "empty context has no request id")

	ctx = WithRequestID(ctx, "req-123")
	id, ok := RequestID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "req-123", id)
}

func TestRequestID_EmptyValueTreatedAsMissing(t *testing.T) {
	ctx := WithRequestID(context.Background(), "")
	_, ok := RequestID(ctx)
	assert.False(t, ok)
}

func TestSessionID(t *testing.T) {
	ctx := WithSessionID(context.Background(), "sess-9")
	id, ok := SessionID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "sess-9", id)

	_, ok = SessionID(context.Background())
	assert.False(t, ok)
}

func TestKeysDoNotCollide(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithSessionID(ctx, "sess-1")

	req, _ := RequestID(ctx)
	sess, _ := SessionID(ctx)
	assert.Equal(t, "req-1", req)
	assert.Equal(t, "sess-1", sess)
}
