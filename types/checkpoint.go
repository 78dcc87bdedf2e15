package types

import "time"

// CheckpointRecord is a durable progress marker written every checkpoint
// interval. Written, never mutated.
type CheckpointRecord struct {
	Round            int       `json:"round"`
	TranscriptLength int       `json:"transcript_length"`
	CumulativeCost   float64   `json:"cumulative_cost"`
	CumulativeTokens int       `json:"cumulative_tokens"`
	CreatedAt        time.Time `json:"created_at"`
}
