package session

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BaSui01/parley/paradigm"
	"github.com/BaSui01/parley/topology"
	"github.com/BaSui01/parley/types"
)

func valErr(format string, args ...any) *types.Error {
	return types.NewError(types.ErrConfigValidation, fmt.Sprintf(format, args...)).
		WithHTTPStatus(400)
}

// ValidateConfig applies the full request-level checks a run request must
// pass before a session is created: dense slot ids, per-slot model refs and
// knobs, topology and template resolution, round bounds, and the tournament
// winner rule. The scheduler re-checks its own invariants on construction;
// everything here fails fast with a 400-coded ConfigValidation error.
func ValidateConfig(cfg types.SessionConfig) error {
	if len(cfg.Slots) == 0 {
		return valErr("at least one slot is required")
	}

	ids := make([]int, 0, len(cfg.Slots))
	seen := make(map[int]bool, len(cfg.Slots))
	for _, sl := range cfg.Slots {
		if sl.SlotID <= 0 {
			return valErr("slot id %d must be positive", sl.SlotID)
		}
		if seen[sl.SlotID] {
			return valErr("duplicate slot id %d", sl.SlotID)
		}
		seen[sl.SlotID] = true
		if strings.TrimSpace(sl.ModelRef) == "" {
			return valErr("slot %d: model_ref is required", sl.SlotID)
		}
		if sl.Temperature < 0 {
			return valErr("slot %d: temperature must not be negative", sl.SlotID)
		}
		if sl.MaxTokens < 0 {
			return valErr("slot %d: max_tokens must not be negative", sl.SlotID)
		}
		ids = append(ids, sl.SlotID)
	}
	sort.Ints(ids)
	for i, id := range ids {
		if id != i+1 {
			return valErr("slot ids must be dense 1..%d, got %v", len(ids), ids)
		}
	}

	if strings.TrimSpace(cfg.InitialPrompt) == "" {
		return valErr("initial_prompt is required")
	}
	if cfg.Infinite && cfg.StopConditions.Empty() {
		return valErr("infinite mode requires ≥1 stop condition")
	}
	if !cfg.Infinite && cfg.RoundsLimit <= 0 {
		return valErr("rounds_limit must be positive unless infinite is set")
	}
	if cfg.SummarizeEvery < 0 {
		return valErr("summarize_every must not be negative")
	}
	if cfg.CheckpointEvery < 0 {
		return valErr("checkpoint_every must not be negative")
	}
	if cfg.MaxParallel < 0 {
		return valErr("max_parallel must not be negative")
	}
	if cfg.DispatchTimeout < 0 {
		return valErr("dispatch_timeout must not be negative")
	}

	if cfg.Topology.Type == types.TopologyTournament && !cfg.FinalRoundVote.Enabled {
		return valErr("tournament topology requires final_round_vote.enabled to pick a winner")
	}
	if m := cfg.FinalRoundVote.Method; m != "" && m != types.TallyMajority && m != types.TallyWeighted {
		return valErr("unknown tally method: %s", m)
	}

	// The resolver constructor normalizes star spokes before validating, so
	// a config that passes here is exactly one the scheduler will accept.
	if _, err := topology.NewResolver(cfg.Topology, ids, ""); err != nil {
		return err
	}
	// The engine constructor owns paradigm and template resolution.
	if _, err := paradigm.NewEngine(cfg.Paradigm, cfg.Slots); err != nil {
		return err
	}
	return nil
}
