// Package topology turns a topology descriptor and slot set into the
// deterministic per-round edge list that routes slot outputs.
package topology

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"sort"

	"github.com/BaSui01/parley/types"
)

// Resolver produces the per-round directed edge list for one session. The
// descriptor and slot set are immutable after construction; Resolve is safe
// for concurrent use.
type Resolver struct {
	desc      types.TopologyConfig
	slotIDs   []int
	sessionID string
}

// NewResolver validates the descriptor against the slot set and returns a
// resolver. Star spokes default to every non-center slot when omitted.
func NewResolver(desc types.TopologyConfig, slotIDs []int, sessionID string) (*Resolver, error) {
	ids := make([]int, len(slotIDs))
	copy(ids, slotIDs)
	sort.Ints(ids)

	normalized := desc.Clone()
	if normalized.Type == types.TopologyStar && len(normalized.Spokes) == 0 {
		for _, id := range ids {
			if id != normalized.Center {
				normalized.Spokes = append(normalized.Spokes, id)
			}
		}
	}

	if err := Validate(normalized, ids); err != nil {
		return nil, err
	}
	return &Resolver{desc: normalized, slotIDs: ids, sessionID: sessionID}, nil
}

// Validate checks the descriptor invariants: every referenced slot id must
// exist, star center must not appear in its spokes, custom patterns must be
// non-empty. Violations are reported as a TOPOLOGY error.
func Validate(desc types.TopologyConfig, slotIDs []int) error {
	if !desc.Type.Valid() {
		return topologyErr("unknown topology type: %s", desc.Type)
	}

	known := make(map[int]bool, len(slotIDs))
	for _, id := range slotIDs {
		known[id] = true
	}

	switch desc.Type {
	case types.TopologyStar:
		if !known[desc.Center] {
			return topologyErr("star center %d references no slot", desc.Center)
		}
		for _, s := range desc.Spokes {
			if !known[s] {
				return topologyErr("star spoke %d references no slot", s)
			}
			if s == desc.Center {
				return topologyErr("star center %d must not appear in spokes", desc.Center)
			}
		}
		if len(desc.Spokes) == 0 {
			return topologyErr("star requires at least one spoke")
		}
	case types.TopologyCustom:
		if len(desc.Pattern) == 0 {
			return topologyErr("custom topology requires a non-empty pattern")
		}
		for _, e := range desc.Pattern {
			if !known[e.From] {
				return topologyErr("pattern edge sender %d references no slot", e.From)
			}
			if !known[e.To] {
				return topologyErr("pattern edge receiver %d references no slot", e.To)
			}
		}
	}
	return nil
}

func topologyErr(format string, args ...any) *types.Error {
	return types.NewError(types.ErrTopology, fmt.Sprintf(format, args...)).WithHTTPStatus(400)
}

// Kind returns the resolved topology type.
func (r *Resolver) Kind() types.TopologyType {
	return r.desc.Type
}

// SlotIDs returns the full ordered slot set.
func (r *Resolver) SlotIDs() []int {
	out := make([]int, len(r.slotIDs))
	copy(out, r.slotIDs)
	return out
}

// EntrySlot returns the slot seeded with the initial prompt in round 1 of a
// sequential topology: the lowest active id.
func (r *Resolver) EntrySlot(active []int) int {
	if len(active) == 0 {
		return 0
	}
	entry := active[0]
	for _, id := range active[1:] {
		if id < entry {
			entry = id
		}
	}
	return entry
}

// Resolve returns the ordered edge list for the given 1-based round over the
// active slot set. For every type except tournament the active set is the
// full slot set; tournament shrinks it as slots are eliminated.
func (r *Resolver) Resolve(round int, active []int) []types.Edge {
	ids := make([]int, len(active))
	copy(ids, active)
	sort.Ints(ids)
	n := len(ids)
	if n == 0 {
		return nil
	}

	switch r.desc.Type {
	case types.TopologyRing:
		return cycleEdges(ids)

	case types.TopologyChain:
		edges := make([]types.Edge, 0, n-1)
		for i := 0; i < n-1; i++ {
			edges = append(edges, types.Edge{From: ids[i], To: ids[i+1]})
		}
		return edges

	case types.TopologyStar:
		spokes := make([]int, len(r.desc.Spokes))
		copy(spokes, r.desc.Spokes)
		sort.Ints(spokes)
		edges := make([]types.Edge, 0, len(spokes))
		// Direction alternates on the zero-based round index: the first
		// round fans out from the seeded center.
		if (round-1)%2 == 0 {
			for _, s := range spokes {
				edges = append(edges, types.Edge{From: r.desc.Center, To: s})
			}
		} else {
			for _, s := range spokes {
				edges = append(edges, types.Edge{From: s, To: r.desc.Center})
			}
		}
		return edges

	case types.TopologyMesh:
		edges := make([]types.Edge, 0, n*(n-1))
		for _, from := range ids {
			for _, to := range ids {
				if from != to {
					edges = append(edges, types.Edge{From: from, To: to})
				}
			}
		}
		return edges

	case types.TopologyRandom:
		perm := r.roundPermutation(round, ids)
		return cycleEdges(perm)

	case types.TopologyTournament:
		edges := make([]types.Edge, 0, n)
		for i := 0; i+1 < n; i += 2 {
			a, b := ids[i], ids[i+1]
			edges = append(edges, types.Edge{From: a, To: b}, types.Edge{From: b, To: a})
		}
		// An odd trailing slot has a bye this round.
		return edges

	case types.TopologyCustom:
		edges := make([]types.Edge, len(r.desc.Pattern))
		copy(edges, r.desc.Pattern)
		return edges
	}
	return nil
}

// NextHop returns the single live edge of a sequential topology for the given
// round: the edge leaving the previous round's speaker. ok is false when the
// speaker has no outgoing edge (chain exhausted).
func (r *Resolver) NextHop(round int, lastSpeaker int, active []int) (types.Edge, bool) {
	for _, e := range r.Resolve(round, active) {
		if e.From == lastSpeaker {
			return e, true
		}
	}
	return types.Edge{}, false
}

// Pairs returns the tournament pairings for the active set in ascending
// order, plus the id of the slot receiving a bye (0 when none).
func (r *Resolver) Pairs(active []int) ([][2]int, int) {
	ids := make([]int, len(active))
	copy(ids, active)
	sort.Ints(ids)

	pairs := make([][2]int, 0, len(ids)/2)
	for i := 0; i+1 < len(ids); i += 2 {
		pairs = append(pairs, [2]int{ids[i], ids[i+1]})
	}
	if len(ids)%2 == 1 {
		return pairs, ids[len(ids)-1]
	}
	return pairs, 0
}

// cycleEdges connects the given order into a single directed cycle.
func cycleEdges(order []int) []types.Edge {
	n := len(order)
	edges := make([]types.Edge, 0, n)
	for i := 0; i < n; i++ {
		edges = append(edges, types.Edge{From: order[i], To: order[(i+1)%n]})
	}
	return edges
}

// roundPermutation shuffles the active set with a seed derived from
// (session id, round) so a replayed session reconstructs identical routing.
func (r *Resolver) roundPermutation(round int, ids []int) []int {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s:%d", r.sessionID, round)
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	perm := make([]int, len(ids))
	copy(perm, ids)
	rng.Shuffle(len(perm), func(i, j int) {
		perm[i], perm[j] = perm[j], perm[i]
	})
	return perm
}
