// Package types provides core types used across the parley engine.
// This package has ZERO dependencies on other parley packages to avoid circular imports.
// All other packages should import types from here.
package types

import (
	"sort"
	"time"
)

// Role classifies what produced a transcript turn.
type Role string

const (
	// RoleAssistant is a normal reply produced by a slot answering an edge.
	RoleAssistant Role = "assistant"
	// RoleReport is a sender-produced condensation of its own reasoning
	// (report paradigm).
	RoleReport Role = "report"
	// RoleSummary is a running compression of the memory-paradigm transcript.
	RoleSummary Role = "summary"
	// RoleVote is a slot's answer in the final voting round.
	RoleVote Role = "vote"
)

// Turn is one append-only transcript entry. The canonical transcript order is
// (Round, SlotID), with SenderID as the tiebreak when a slot speaks more than
// once in the same round (mesh, star inbound).
type Turn struct {
	Round     int       `json:"round"`
	SlotID    int       `json:"slot_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	TokensIn  int       `json:"tokens_in"`
	TokensOut int       `json:"tokens_out"`
	Cost      float64   `json:"cost"`
	LatencyMS int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`

	// SenderID is the slot whose output this turn answers; 0 means the
	// initial prompt seeded the turn.
	SenderID int `json:"sender_id,omitempty"`

	// ErrorKind and Error mark a failed dispatch. Content is empty for
	// failed turns; the metrics fields hold whatever the invoker reported
	// before failing (usually zero).
	ErrorKind InvokeErrorKind `json:"error_kind,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Failed reports whether the turn records a failed dispatch.
func (t Turn) Failed() bool {
	return t.ErrorKind != ""
}

// NewTurn creates a successful turn for the given round and speaker.
func NewTurn(round, slotID, senderID int, role Role, content string) Turn {
	return Turn{
		Round:     round,
		SlotID:    slotID,
		SenderID:  senderID,
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewFailedTurn creates an error-marked turn for a failed dispatch.
func NewFailedTurn(round, slotID, senderID int, kind InvokeErrorKind, message string) Turn {
	return Turn{
		Round:     round,
		SlotID:    slotID,
		SenderID:  senderID,
		Role:      RoleAssistant,
		Timestamp: time.Now(),
		ErrorKind: kind,
		Error:     message,
	}
}

// SortCanonical orders turns by (Round, SlotID, SenderID) in place.
func SortCanonical(turns []Turn) {
	sort.SliceStable(turns, func(i, j int) bool {
		a, b := turns[i], turns[j]
		if a.Round != b.Round {
			return a.Round < b.Round
		}
		if a.SlotID != b.SlotID {
			return a.SlotID < b.SlotID
		}
		return a.SenderID < b.SenderID
	})
}

// CloneTurns returns a deep copy of the transcript slice. Turn holds no
// reference types, so a slice copy is sufficient.
func CloneTurns(turns []Turn) []Turn {
	if turns == nil {
		return nil
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}
