// Package invoker dispatches assembled contexts to model backends. The
// orchestration core treats an invoker as an opaque capability: it either
// returns a priced result or a typed failure, and any provider-side retry or
// cascade policy already happened inside.
package invoker

import (
	"context"

	"github.com/BaSui01/parley/types"
)

// Result is what a completed dispatch yields.
type Result struct {
	Content   string  `json:"content"`
	TokensIn  int     `json:"tokens_in"`
	TokensOut int     `json:"tokens_out"`
	CostUSD   float64 `json:"cost_usd"`
	LatencyMS int64   `json:"latency_ms"`
}

// Invoker sends one slot's assembled context to its model. Failures are
// *types.Error values whose Kind is one of the invocation kinds; the caller
// decides how a failure affects round state. Cancellation and per-call
// timeouts arrive through ctx.
type Invoker interface {
	Invoke(ctx context.Context, slot types.Slot, contextText string) (*Result, error)
}
