package types

import (
	"errors"
	"testing"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrStore, "write failed").
		WithCause(root).
		WithHTTPStatus(500).
		WithRetryable(true)

	if GetErrorCode(err) != ErrStore {
		t.Fatalf("expected code %s, got %s", ErrStore, GetErrorCode(err))
	}
	if !IsRetryable(err) {
		t.Fatalf("expected retryable")
	}
	if !errors.Is(err, root) {
		t.Fatalf("expected errors.Is unwrap to root")
	}
	if got := err.Error(); got == "" {
		t.Fatalf("expected non-empty error string")
	}
}

func TestNewInvocationError_Kinds(t *testing.T) {
	t.Parallel()

	for _, kind := range []InvokeErrorKind{InvokeTimeout, InvokeRateLimit, InvokeServer, InvokeNetwork} {
		err := NewInvocationError(kind, "dispatch failed")
		if GetErrorCode(err) != ErrModelInvocation {
			t.Fatalf("kind %s: expected code %s, got %s", kind, ErrModelInvocation, GetErrorCode(err))
		}
		if InvocationKind(err) != kind {
			t.Fatalf("expected kind %s, got %s", kind, InvocationKind(err))
		}
		if !IsRetryable(err) {
			t.Fatalf("kind %s should be retryable", kind)
		}
	}

	auth := NewInvocationError(InvokeAuth, "bad key")
	if IsRetryable(auth) {
		t.Fatalf("auth failures must not be retryable")
	}
	if InvocationKind(errors.New("plain")) != "" {
		t.Fatalf("plain errors carry no invocation kind")
	}
}
