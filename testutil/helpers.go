package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/BaSui01/parley/types"
)

// TestContext returns a context that expires with a generous test timeout
// and is cleaned up with the test.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// CancelledContext returns an already-cancelled context.
func CancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// Slots builds n dense slots with the basic template and distinct model refs.
func Slots(n int) []types.Slot {
	out := make([]types.Slot, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, types.Slot{
			SlotID:   i,
			ModelRef: fmt.Sprintf("model-%d", i),
			Template: "basic",
		})
	}
	return out
}

// RingRelayConfig builds the canonical smoke configuration: n slots on a
// ring, relay paradigm, a fixed round budget.
func RingRelayConfig(n, rounds int) types.SessionConfig {
	return types.SessionConfig{
		Slots:         Slots(n),
		Topology:      types.TopologyConfig{Type: types.TopologyRing},
		Paradigm:      types.ParadigmRelay,
		RoundsLimit:   rounds,
		InitialPrompt: "Define X",
	}
}

// MeshConfig builds an n-slot full-broadcast configuration.
func MeshConfig(n, rounds int, paradigm types.Paradigm) types.SessionConfig {
	cfg := RingRelayConfig(n, rounds)
	cfg.Topology = types.TopologyConfig{Type: types.TopologyMesh}
	cfg.Paradigm = paradigm
	return cfg
}

// AssertEventuallyTrue polls cond until it holds or the deadline passes.
func AssertEventuallyTrue(t *testing.T, cond func() bool, timeout time.Duration, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition never held: %s", msg)
}
