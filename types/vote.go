package types

// UndecidedOption is the reserved bucket for vote answers outside the
// configured option set.
const UndecidedOption = "undecided"

// VoteResult is the tallied outcome of a consensus round.
type VoteResult struct {
	Question    string         `json:"question"`
	Options     []string       `json:"options"`
	Votes       map[int]string `json:"votes"`
	Tally       map[string]int `json:"tally"`
	Winner      string         `json:"winner"`
	TallyMethod TallyMethod    `json:"tally_method"`
}

// Clone returns a deep copy.
func (v *VoteResult) Clone() *VoteResult {
	if v == nil {
		return nil
	}
	out := *v
	if v.Options != nil {
		out.Options = make([]string, len(v.Options))
		copy(out.Options, v.Options)
	}
	if v.Votes != nil {
		out.Votes = make(map[int]string, len(v.Votes))
		for k, val := range v.Votes {
			out.Votes[k] = val
		}
	}
	if v.Tally != nil {
		out.Tally = make(map[string]int, len(v.Tally))
		for k, val := range v.Tally {
			out.Tally[k] = val
		}
	}
	return &out
}
