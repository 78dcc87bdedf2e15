// Package vote runs the optional final voting round and tallies results. It
// also decides tournament pair winners through the same ballot machinery.
package vote

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/BaSui01/parley/types"
)

// Voter maps free-text replies onto a fixed option set and tallies them.
// Immutable after construction.
type Voter struct {
	cfg types.FinalRoundVote
}

// NewVoter builds a voter for the given ballot.
func NewVoter(cfg types.FinalRoundVote) *Voter {
	return &Voter{cfg: cfg}
}

// Prompt renders the ballot text sent to every surviving slot.
func (v *Voter) Prompt() string {
	var b strings.Builder
	b.WriteString(v.cfg.Question)
	b.WriteString("\n\nAnswer with exactly one of the following options and nothing else:\n")
	for _, opt := range v.cfg.Options {
		b.WriteString("- ")
		b.WriteString(opt)
		b.WriteString("\n")
	}
	return b.String()
}

// MapReply normalizes one raw reply to a configured option. An exact match
// (case-insensitive, surrounding punctuation trimmed) wins; otherwise a reply
// containing exactly one option as a substring maps to it. Anything else,
// including a reply naming several options, lands in the undecided bucket.
func (v *Voter) MapReply(raw string) string {
	reply := strings.ToLower(strings.TrimFunc(raw, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '.' || r == '!' || r == '"' || r == '\''
	}))
	for _, opt := range v.cfg.Options {
		if reply == strings.ToLower(opt) {
			return opt
		}
	}
	matched := ""
	for _, opt := range v.cfg.Options {
		if strings.Contains(reply, strings.ToLower(opt)) {
			if matched != "" {
				return types.UndecidedOption
			}
			matched = opt
		}
	}
	if matched == "" {
		return types.UndecidedOption
	}
	return matched
}

// Result tallies mapped votes and picks the winner. votes is slot id to
// mapped option (undecided included). The winner is the option with the most
// votes; the undecided bucket never wins unless no slot decided at all. Ties
// are broken in favor of the option chosen by the lowest voting slot id.
//
// The weighted method is reserved for per-slot weighting and currently
// tallies exactly like majority. This fallback is deliberate and visible in
// the result's TallyMethod.
func (v *Voter) Result(votes map[int]string) *types.VoteResult {
	method := v.cfg.Method
	if method != types.TallyWeighted {
		method = types.TallyMajority
	}

	tally := make(map[string]int, len(v.cfg.Options)+1)
	for _, opt := range votes {
		tally[opt]++
	}

	best := 0
	var tied []string
	for _, opt := range v.cfg.Options {
		switch n := tally[opt]; {
		case n > best:
			best = n
			tied = []string{opt}
		case n == best && n > 0:
			tied = append(tied, opt)
		}
	}

	winner := types.UndecidedOption
	switch {
	case len(tied) == 1:
		winner = tied[0]
	case len(tied) > 1:
		winner = lowestSlotChoice(votes, tied)
	}

	return &types.VoteResult{
		Question:    v.cfg.Question,
		Options:     append([]string(nil), v.cfg.Options...),
		Votes:       votes,
		Tally:       tally,
		Winner:      winner,
		TallyMethod: method,
	}
}

// lowestSlotChoice resolves a tie: walk voters in ascending slot id order and
// return the first vote cast for any tied option.
func lowestSlotChoice(votes map[int]string, tied []string) string {
	inTie := make(map[string]bool, len(tied))
	for _, opt := range tied {
		inTie[opt] = true
	}
	slots := make([]int, 0, len(votes))
	for id := range votes {
		slots = append(slots, id)
	}
	sort.Ints(slots)
	for _, id := range slots {
		if opt := votes[id]; inTie[opt] {
			return opt
		}
	}
	return tied[0]
}

// NewPairVoter builds the mini-ballot that decides a tournament pair. Every
// active slot judges the two responses; the options are the competitors'
// slot ids.
func NewPairVoter(a, b int, responseA, responseB string) *Voter {
	question := fmt.Sprintf(
		"Two competing responses follow. Decide which one is stronger.\n\nResponse %d:\n%s\n\nResponse %d:\n%s",
		a, responseA, b, responseB)
	return NewVoter(types.FinalRoundVote{
		Enabled:  true,
		Question: question,
		Options:  []string{strconv.Itoa(a), strconv.Itoa(b)},
		Method:   types.TallyMajority,
	})
}

// PairWinner extracts the advancing slot id from a pair vote. The decision
// reads the tally directly: ties and all-undecided outcomes advance the
// lower slot id.
func PairWinner(res *types.VoteResult, a, b int) int {
	na := res.Tally[strconv.Itoa(a)]
	nb := res.Tally[strconv.Itoa(b)]
	switch {
	case na > nb:
		return a
	case nb > na:
		return b
	}
	if a < b {
		return a
	}
	return b
}
