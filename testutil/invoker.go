package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/BaSui01/parley/invoker"
	"github.com/BaSui01/parley/types"
)

// Call records one dispatch the scripted invoker received.
type Call struct {
	Slot    types.Slot
	Context string
	At      time.Time
}

// ScriptedInvoker is a deterministic invoker.Invoker for tests. Configure the
// exported hooks before the first dispatch; afterwards treat it as read-only
// apart from the accessors.
type ScriptedInvoker struct {
	// Reply computes a dispatch's content. Defaults to EchoReply.
	Reply func(slot types.Slot, contextText string) string
	// Fail short-circuits a dispatch with the returned error when non-nil.
	Fail func(slot types.Slot, contextText string) error
	// Delay is waited out before answering, honoring ctx.
	Delay time.Duration
	// Accounting copied into every successful result.
	TokensIn  int
	TokensOut int
	CostUSD   float64

	mu    sync.Mutex
	calls []Call
}

// NewScriptedInvoker returns an invoker that echoes slot and round context.
func NewScriptedInvoker() *ScriptedInvoker {
	return &ScriptedInvoker{
		TokensIn:  10,
		TokensOut: 5,
		CostUSD:   0.001,
	}
}

// EchoReply is the default reply: stable, distinct per slot, and carrying the
// incoming text so relay chains are inspectable.
func EchoReply(slot types.Slot, contextText string) string {
	return fmt.Sprintf("slot-%d-reply(%s)", slot.SlotID, contextText)
}

// Invoke implements invoker.Invoker.
func (s *ScriptedInvoker) Invoke(ctx context.Context, slot types.Slot, contextText string) (*invoker.Result, error) {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Slot: slot, Context: contextText, At: time.Now()})
	s.mu.Unlock()

	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return nil, mapContextError(ctx.Err())
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, mapContextError(err)
	}
	if s.Fail != nil {
		if err := s.Fail(slot, contextText); err != nil {
			return nil, err
		}
	}

	reply := s.Reply
	if reply == nil {
		reply = EchoReply
	}
	return &invoker.Result{
		Content:   reply(slot, contextText),
		TokensIn:  s.TokensIn,
		TokensOut: s.TokensOut,
		CostUSD:   s.CostUSD,
		LatencyMS: s.Delay.Milliseconds(),
	}, nil
}

// mapContextError mirrors the gateway's transport classification.
func mapContextError(err error) *types.Error {
	if err == context.DeadlineExceeded {
		return types.NewInvocationError(types.InvokeTimeout, "deadline exceeded").WithCause(err)
	}
	return types.NewInvocationError(types.InvokeNetwork, "request canceled").WithCause(err)
}

// Calls returns a copy of every recorded dispatch in arrival order.
func (s *ScriptedInvoker) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallCount returns how many dispatches arrived.
func (s *ScriptedInvoker) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// CallsForSlot filters recorded dispatches by receiving slot.
func (s *ScriptedInvoker) CallsForSlot(slotID int) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Call
	for _, c := range s.calls {
		if c.Slot.SlotID == slotID {
			out = append(out, c)
		}
	}
	return out
}

// Reset clears the call record.
func (s *ScriptedInvoker) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// FailSlots builds a Fail hook that fails every dispatch to the given slots
// with the given kind.
func FailSlots(kind types.InvokeErrorKind, slotIDs ...int) func(types.Slot, string) error {
	failing := make(map[int]bool, len(slotIDs))
	for _, id := range slotIDs {
		failing[id] = true
	}
	return func(slot types.Slot, _ string) error {
		if failing[slot.SlotID] {
			return types.NewInvocationError(kind, fmt.Sprintf("scripted %s for slot %d", kind, slot.SlotID))
		}
		return nil
	}
}

// FailAll builds a Fail hook that fails every dispatch.
func FailAll(kind types.InvokeErrorKind) func(types.Slot, string) error {
	return func(slot types.Slot, _ string) error {
		return types.NewInvocationError(kind, fmt.Sprintf("scripted %s for slot %d", kind, slot.SlotID))
	}
}
