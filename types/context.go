package types

import "context"

// contextKey is used for storing values in context.Context.
type contextKey string

const (
	keySessionID contextKey = "session_id"
	keyRound     contextKey = "round"
)

// WithSessionID adds the owning session id to context.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, keySessionID, sessionID)
}

// SessionID extracts the session id from context.
func SessionID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keySessionID).(string)
	return v, ok && v != ""
}

// WithRound adds the current round number to context.
func WithRound(ctx context.Context, round int) context.Context {
	return context.WithValue(ctx, keyRound, round)
}

// Round extracts the current round number from context.
func Round(ctx context.Context) (int, bool) {
	v, ok := ctx.Value(keyRound).(int)
	return v, ok && v > 0
}
