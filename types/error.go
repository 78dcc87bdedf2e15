package types

import "fmt"

// ErrorCode represents a unified error code across the engine.
type ErrorCode string

// Engine error codes
const (
	ErrConfigValidation ErrorCode = "CONFIG_VALIDATION"
	ErrTopology         ErrorCode = "TOPOLOGY"
	ErrModelInvocation  ErrorCode = "MODEL_INVOCATION"
	ErrCheckpointWrite  ErrorCode = "CHECKPOINT_WRITE"
	ErrSessionCancelled ErrorCode = "SESSION_CANCELLED"
	ErrSessionTerminal  ErrorCode = "SESSION_TERMINAL"
)

// Storage and API error codes
const (
	ErrStore          ErrorCode = "STORE"
	ErrNotFound       ErrorCode = "NOT_FOUND"
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrUnauthorized   ErrorCode = "UNAUTHORIZED"
	ErrRateLimited    ErrorCode = "RATE_LIMITED"
	ErrInternalError  ErrorCode = "INTERNAL_ERROR"
)

// InvokeErrorKind classifies a ModelInvoker failure. The gateway behind the
// invoker owns retry and cascade policy; the engine only records the kind.
type InvokeErrorKind string

const (
	InvokeTimeout   InvokeErrorKind = "timeout"
	InvokeAuth      InvokeErrorKind = "auth"
	InvokeRateLimit InvokeErrorKind = "rate_limit"
	InvokeServer    InvokeErrorKind = "server"
	InvokeNetwork   InvokeErrorKind = "network"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode       `json:"code"`
	Message    string          `json:"message"`
	HTTPStatus int             `json:"http_status,omitempty"`
	Retryable  bool            `json:"retryable"`
	Kind       InvokeErrorKind `json:"kind,omitempty"`
	Cause      error           `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewInvocationError creates a typed ModelInvoker failure. Every kind except
// auth is retryable by a future dispatch.
func NewInvocationError(kind InvokeErrorKind, message string) *Error {
	return &Error{
		Code:      ErrModelInvocation,
		Message:   message,
		Kind:      kind,
		Retryable: kind != InvokeAuth,
	}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}

// InvocationKind extracts the invocation failure kind from an error, or ""
// when the error does not carry ErrModelInvocation.
func InvocationKind(err error) InvokeErrorKind {
	if e, ok := err.(*Error); ok && e.Code == ErrModelInvocation {
		return e.Kind
	}
	return ""
}
