package types

// TopologyType selects the directed-graph rule governing which slot's output
// feeds which slot's input each round.
type TopologyType string

const (
	TopologyRing       TopologyType = "ring"
	TopologyChain      TopologyType = "chain"
	TopologyStar       TopologyType = "star"
	TopologyMesh       TopologyType = "mesh"
	TopologyRandom     TopologyType = "random"
	TopologyTournament TopologyType = "tournament"
	TopologyCustom     TopologyType = "custom"
)

// Valid reports whether t is a known topology type.
func (t TopologyType) Valid() bool {
	switch t {
	case TopologyRing, TopologyChain, TopologyStar, TopologyMesh,
		TopologyRandom, TopologyTournament, TopologyCustom:
		return true
	}
	return false
}

// Sequential reports whether the topology advances one hop per round at
// dispatch time. Sequential topologies still resolve a full per-round edge
// set; the scheduler dispatches only the edge leaving the previous speaker.
func (t TopologyType) Sequential() bool {
	switch t {
	case TopologyRing, TopologyChain, TopologyRandom:
		return true
	}
	return false
}

// Edge is one directed routing assignment: To receives From's latest output.
// From == 0 is reserved for the initial prompt source and never appears in a
// resolver edge set or a custom pattern.
type Edge struct {
	From int `json:"from" yaml:"from"`
	To   int `json:"to" yaml:"to"`
}

// TopologyConfig is the validated topology descriptor.
type TopologyConfig struct {
	Type TopologyType `json:"type" yaml:"type"`

	// Center and Spokes apply to star only. Center must not appear in Spokes.
	Center int   `json:"center,omitempty" yaml:"center,omitempty"`
	Spokes []int `json:"spokes,omitempty" yaml:"spokes,omitempty"`

	// Pattern applies to custom only: the literal edge list replayed each round.
	Pattern []Edge `json:"pattern,omitempty" yaml:"pattern,omitempty"`
}

// Clone returns a deep copy of the descriptor.
func (c TopologyConfig) Clone() TopologyConfig {
	out := c
	if c.Spokes != nil {
		out.Spokes = make([]int, len(c.Spokes))
		copy(out.Spokes, c.Spokes)
	}
	if c.Pattern != nil {
		out.Pattern = make([]Edge, len(c.Pattern))
		copy(out.Pattern, c.Pattern)
	}
	return out
}
