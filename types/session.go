package types

import "time"

// Paradigm is the rule for how much prior context is assembled into a slot's
// input. Orthogonal to topology.
type Paradigm string

const (
	// ParadigmRelay delivers only the sender's latest message.
	ParadigmRelay Paradigm = "relay"
	// ParadigmMemory delivers the full ordered transcript to date.
	ParadigmMemory Paradigm = "memory"
	// ParadigmDebate is relay plus an explicit critique instruction.
	ParadigmDebate Paradigm = "debate"
	// ParadigmReport delivers a sender-produced condensation instead of the
	// raw message.
	ParadigmReport Paradigm = "report"
)

// Valid reports whether p is a known paradigm.
func (p Paradigm) Valid() bool {
	switch p {
	case ParadigmRelay, ParadigmMemory, ParadigmDebate, ParadigmReport:
		return true
	}
	return false
}

// StopConditions are the optional termination predicates evaluated after each
// round. Zero or empty values disable the corresponding condition.
type StopConditions struct {
	MaxTimeSeconds      int      `json:"max_time_seconds,omitempty" yaml:"max_time_seconds,omitempty"`
	MaxCostDollars      float64  `json:"max_cost_dollars,omitempty" yaml:"max_cost_dollars,omitempty"`
	MaxTurns            int      `json:"max_turns,omitempty" yaml:"max_turns,omitempty"`
	StopKeywords        []string `json:"stop_keywords,omitempty" yaml:"stop_keywords,omitempty"`
	RepetitionThreshold float64  `json:"repetition_threshold,omitempty" yaml:"repetition_threshold,omitempty"`
}

// Empty reports whether no stop condition is configured at all.
func (s StopConditions) Empty() bool {
	return s.MaxTimeSeconds <= 0 &&
		s.MaxCostDollars <= 0 &&
		s.MaxTurns <= 0 &&
		len(s.StopKeywords) == 0 &&
		s.RepetitionThreshold <= 0
}

// Clone returns a deep copy.
func (s StopConditions) Clone() StopConditions {
	out := s
	if s.StopKeywords != nil {
		out.StopKeywords = make([]string, len(s.StopKeywords))
		copy(out.StopKeywords, s.StopKeywords)
	}
	return out
}

// TallyMethod selects how final-vote answers are tallied.
type TallyMethod string

const (
	TallyMajority TallyMethod = "majority"
	// TallyWeighted is reserved for per-slot weighting. Until weights exist
	// it falls back to majority; the fallback is logged, never silent.
	TallyWeighted TallyMethod = "weighted"
)

// FinalRoundVote configures the optional consensus round run after normal
// termination.
type FinalRoundVote struct {
	Enabled  bool        `json:"enabled" yaml:"enabled"`
	Question string      `json:"question,omitempty" yaml:"question,omitempty"`
	Options  []string    `json:"options,omitempty" yaml:"options,omitempty"`
	Method   TallyMethod `json:"method,omitempty" yaml:"method,omitempty"`
}

// Clone returns a deep copy.
func (v FinalRoundVote) Clone() FinalRoundVote {
	out := v
	if v.Options != nil {
		out.Options = make([]string, len(v.Options))
		copy(out.Options, v.Options)
	}
	return out
}

// SessionConfig is the immutable input to a session. Validated by the session
// manager before any dispatch occurs.
type SessionConfig struct {
	Slots           []Slot         `json:"slots" yaml:"slots"`
	Topology        TopologyConfig `json:"topology" yaml:"topology"`
	Paradigm        Paradigm       `json:"paradigm" yaml:"paradigm"`
	RoundsLimit     int            `json:"rounds_limit,omitempty" yaml:"rounds_limit,omitempty"`
	Infinite        bool           `json:"infinite,omitempty" yaml:"infinite,omitempty"`
	StopConditions  StopConditions `json:"stop_conditions,omitempty" yaml:"stop_conditions,omitempty"`
	InitialPrompt   string         `json:"initial_prompt" yaml:"initial_prompt"`
	SummarizeEvery  int            `json:"summarize_every,omitempty" yaml:"summarize_every,omitempty"`
	CheckpointEvery int            `json:"checkpoint_every,omitempty" yaml:"checkpoint_every,omitempty"`
	FinalRoundVote  FinalRoundVote `json:"final_round_vote,omitempty" yaml:"final_round_vote,omitempty"`

	// MaxParallel bounds concurrent dispatches within a round; 0 uses the
	// engine default.
	MaxParallel int `json:"max_parallel,omitempty" yaml:"max_parallel,omitempty"`
	// DispatchTimeout scopes each individual invoker call; 0 uses the engine
	// default.
	DispatchTimeout time.Duration `json:"dispatch_timeout,omitempty" yaml:"dispatch_timeout,omitempty"`
}

// Clone returns a deep copy of the config.
func (c SessionConfig) Clone() SessionConfig {
	out := c
	if c.Slots != nil {
		out.Slots = make([]Slot, len(c.Slots))
		copy(out.Slots, c.Slots)
	}
	out.Topology = c.Topology.Clone()
	out.StopConditions = c.StopConditions.Clone()
	out.FinalRoundVote = c.FinalRoundVote.Clone()
	return out
}

// SessionStatus is the lifecycle state of a session. A session is terminal
// once status leaves running.
type SessionStatus string

const (
	StatusRunning SessionStatus = "running"
	// StatusCompleted means the session ran out of planned work: rounds
	// limit reached, chain exhausted, or tournament resolved.
	StatusCompleted SessionStatus = "completed"
	// StatusStopped means a configured stop condition fired.
	StatusStopped   SessionStatus = "stopped"
	StatusError     SessionStatus = "error"
	StatusCancelled SessionStatus = "cancelled"
)

// Terminal reports whether the status is final.
func (s SessionStatus) Terminal() bool {
	return s != StatusRunning && s != ""
}

// TerminationReason records why a session left the running state.
type TerminationReason string

const (
	ReasonMaxTurns           TerminationReason = "max_turns"
	ReasonMaxTime            TerminationReason = "max_time_seconds"
	ReasonMaxCost            TerminationReason = "max_cost_dollars"
	ReasonStopKeyword        TerminationReason = "stop_keyword"
	ReasonRepetition         TerminationReason = "repetition_threshold"
	ReasonRoundsLimit        TerminationReason = "rounds_limit"
	ReasonTopologyExhausted  TerminationReason = "topology_exhausted"
	ReasonTournamentResolved TerminationReason = "tournament_resolved"
	ReasonAllSlotsFailed     TerminationReason = "all_slots_failed"
	ReasonCancelled          TerminationReason = "cancelled"
)

// SessionRecord is the persisted session artifact and the published snapshot
// shape: one record per session holding the config snapshot, transcript,
// checkpoints, and the final vote result when present.
type SessionRecord struct {
	SessionID   string             `json:"session_id"`
	Config      SessionConfig      `json:"config_snapshot"`
	Transcript  []Turn             `json:"transcript"`
	Checkpoints []CheckpointRecord `json:"checkpoints,omitempty"`
	VoteResult  *VoteResult        `json:"vote_result,omitempty"`
	Status      SessionStatus      `json:"status"`
	Reason      TerminationReason  `json:"termination_reason,omitempty"`
	StartedAt   time.Time          `json:"started_at"`
	EndedAt     *time.Time         `json:"ended_at,omitempty"`
}

// Clone returns a deep copy safe to publish to external readers.
func (r *SessionRecord) Clone() *SessionRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.Config = r.Config.Clone()
	out.Transcript = CloneTurns(r.Transcript)
	if r.Checkpoints != nil {
		out.Checkpoints = make([]CheckpointRecord, len(r.Checkpoints))
		copy(out.Checkpoints, r.Checkpoints)
	}
	out.VoteResult = r.VoteResult.Clone()
	if r.EndedAt != nil {
		t := *r.EndedAt
		out.EndedAt = &t
	}
	return &out
}

// SessionSummary is the list-view projection of a session.
type SessionSummary struct {
	SessionID    string        `json:"session_id"`
	StartedAt    time.Time     `json:"started_at"`
	EndedAt      *time.Time    `json:"ended_at,omitempty"`
	Paradigm     Paradigm      `json:"paradigm"`
	Topology     TopologyType  `json:"topology"`
	Status       SessionStatus `json:"status"`
	MessageCount int           `json:"message_count"`
}

// Summary projects the record into its list view.
func (r *SessionRecord) Summary() SessionSummary {
	s := SessionSummary{
		SessionID:    r.SessionID,
		StartedAt:    r.StartedAt,
		Paradigm:     r.Config.Paradigm,
		Topology:     r.Config.Topology.Type,
		Status:       r.Status,
		MessageCount: len(r.Transcript),
	}
	if r.EndedAt != nil {
		t := *r.EndedAt
		s.EndedAt = &t
	}
	return s
}

// Preset is a stored, reusable session configuration with a display name.
type Preset struct {
	Name   string        `json:"name" yaml:"name"`
	Config SessionConfig `json:"config" yaml:"config"`
}
