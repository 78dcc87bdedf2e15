// Package stopcond evaluates session stop conditions. Conditions are checked
// once per completed round, always in the same priority order, so two
// conditions firing in the same round report a deterministic reason:
//
//	max_turns, max_time_seconds, max_cost_dollars, stop_keywords,
//	repetition_threshold
package stopcond

import (
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/parley/tokenizer"
	"github.com/BaSui01/parley/types"
)

// State carries the scheduler's running totals into one evaluation.
type State struct {
	StartedAt  time.Time
	Now        time.Time
	TotalCost  float64
	Round      int // the round that just completed
	Transcript []types.Turn
}

// Verdict names the condition that fired and a human-readable detail for the
// session record and logs.
type Verdict struct {
	Reason types.TerminationReason
	Detail string
}

// Evaluator checks one session's stop conditions. Zero or negative limits are
// disabled. Immutable after construction.
type Evaluator struct {
	conds types.StopConditions
	tok   tokenizer.Tokenizer
}

// NewEvaluator builds an evaluator. tok is used for repetition similarity and
// must not be nil when RepetitionThreshold is set; tokenizer.ForModel always
// returns a usable one.
func NewEvaluator(conds types.StopConditions, tok tokenizer.Tokenizer) *Evaluator {
	return &Evaluator{conds: conds, tok: tok}
}

// Evaluate returns the first condition that fires, in priority order, or
// ok=false when the session may continue.
func (e *Evaluator) Evaluate(st State) (Verdict, bool) {
	if n := e.conds.MaxTurns; n > 0 {
		if got := countReplies(st.Transcript); got >= n {
			return Verdict{
				Reason: types.ReasonMaxTurns,
				Detail: fmt.Sprintf("turn count %d reached limit %d", got, n),
			}, true
		}
	}
	if s := e.conds.MaxTimeSeconds; s > 0 {
		if elapsed := st.Now.Sub(st.StartedAt); elapsed >= time.Duration(s)*time.Second {
			return Verdict{
				Reason: types.ReasonMaxTime,
				Detail: fmt.Sprintf("elapsed %s reached limit %ds", elapsed.Round(time.Millisecond), s),
			}, true
		}
	}
	if c := e.conds.MaxCostDollars; c > 0 && st.TotalCost >= c {
		return Verdict{
			Reason: types.ReasonMaxCost,
			Detail: fmt.Sprintf("cumulative cost $%.4f reached limit $%.4f", st.TotalCost, c),
		}, true
	}
	if v, ok := e.matchKeyword(st); ok {
		return v, true
	}
	if v, ok := e.matchRepetition(st); ok {
		return v, true
	}
	return Verdict{}, false
}

// matchKeyword scans every turn produced in the just-completed round for any
// configured keyword, case-insensitively, as a substring. Report and summary
// turns count too: a keyword is a stop signal wherever a model emits it.
func (e *Evaluator) matchKeyword(st State) (Verdict, bool) {
	if len(e.conds.StopKeywords) == 0 {
		return Verdict{}, false
	}
	for _, turn := range st.Transcript {
		if turn.Round != st.Round || turn.Failed() {
			continue
		}
		content := strings.ToLower(turn.Content)
		for _, kw := range e.conds.StopKeywords {
			if kw == "" {
				continue
			}
			if strings.Contains(content, strings.ToLower(kw)) {
				return Verdict{
					Reason: types.ReasonStopKeyword,
					Detail: fmt.Sprintf("slot %d emitted stop keyword %q in round %d", turn.SlotID, kw, st.Round),
				}, true
			}
		}
	}
	return Verdict{}, false
}

// matchRepetition compares, for every slot that spoke in the just-completed
// round, its two most recent successful replies. A token-set similarity at or
// above the threshold means the conversation is looping.
func (e *Evaluator) matchRepetition(st State) (Verdict, bool) {
	threshold := e.conds.RepetitionThreshold
	if threshold <= 0 || e.tok == nil {
		return Verdict{}, false
	}
	latest := make(map[int]types.Turn)
	previous := make(map[int]types.Turn)
	for _, turn := range st.Transcript {
		if turn.Failed() || turn.Role != types.RoleAssistant {
			continue
		}
		if cur, ok := latest[turn.SlotID]; ok {
			previous[turn.SlotID] = cur
		}
		latest[turn.SlotID] = turn
	}
	for slotID, cur := range latest {
		if cur.Round != st.Round {
			continue
		}
		prev, ok := previous[slotID]
		if !ok {
			continue
		}
		if sim := Similarity(e.tok, prev.Content, cur.Content); sim >= threshold {
			return Verdict{
				Reason: types.ReasonRepetition,
				Detail: fmt.Sprintf("slot %d repeated itself with similarity %.2f (threshold %.2f)", slotID, sim, threshold),
			}, true
		}
	}
	return Verdict{}, false
}

func countReplies(transcript []types.Turn) int {
	n := 0
	for _, turn := range transcript {
		if turn.Role == types.RoleAssistant {
			n++
		}
	}
	return n
}
