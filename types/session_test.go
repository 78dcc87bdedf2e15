package types

import (
	"testing"
	"time"
)

func TestSessionRecord_CloneIsDeep(t *testing.T) {
	t.Parallel()

	ended := time.Now()
	rec := &SessionRecord{
		SessionID: "s-1",
		Config: SessionConfig{
			Slots:    []Slot{{SlotID: 1, ModelRef: "m1", Template: "basic"}},
			Topology: TopologyConfig{Type: TopologyRing},
			Paradigm: ParadigmRelay,
			StopConditions: StopConditions{
				StopKeywords: []string{"done"},
			},
		},
		Transcript:  []Turn{NewTurn(1, 1, 0, RoleAssistant, "hello")},
		Checkpoints: []CheckpointRecord{{Round: 2, TranscriptLength: 1}},
		VoteResult: &VoteResult{
			Votes: map[int]string{1: "a"},
			Tally: map[string]int{"a": 1},
		},
		Status:  StatusCompleted,
		EndedAt: &ended,
	}

	clone := rec.Clone()

	clone.Config.Slots[0].ModelRef = "changed"
	clone.Config.StopConditions.StopKeywords[0] = "changed"
	clone.Transcript[0].Content = "changed"
	clone.Checkpoints[0].Round = 99
	clone.VoteResult.Votes[1] = "b"
	*clone.EndedAt = ended.Add(time.Hour)

	if rec.Config.Slots[0].ModelRef != "m1" {
		t.Fatalf("slot mutated through clone")
	}
	if rec.Config.StopConditions.StopKeywords[0] != "done" {
		t.Fatalf("stop keywords mutated through clone")
	}
	if rec.Transcript[0].Content != "hello" {
		t.Fatalf("transcript mutated through clone")
	}
	if rec.Checkpoints[0].Round != 2 {
		t.Fatalf("checkpoints mutated through clone")
	}
	if rec.VoteResult.Votes[1] != "a" {
		t.Fatalf("vote result mutated through clone")
	}
	if !rec.EndedAt.Equal(ended) {
		t.Fatalf("ended_at mutated through clone")
	}
}

func TestSortCanonical(t *testing.T) {
	t.Parallel()

	turns := []Turn{
		{Round: 2, SlotID: 1},
		{Round: 1, SlotID: 2, SenderID: 3},
		{Round: 1, SlotID: 2, SenderID: 1},
		{Round: 1, SlotID: 1},
	}
	SortCanonical(turns)

	want := []struct{ round, slot, sender int }{
		{1, 1, 0}, {1, 2, 1}, {1, 2, 3}, {2, 1, 0},
	}
	for i, w := range want {
		got := turns[i]
		if got.Round != w.round || got.SlotID != w.slot || got.SenderID != w.sender {
			t.Fatalf("position %d: got (%d,%d,%d), want (%d,%d,%d)",
				i, got.Round, got.SlotID, got.SenderID, w.round, w.slot, w.sender)
		}
	}
}

func TestSessionStatus_Terminal(t *testing.T) {
	t.Parallel()

	if StatusRunning.Terminal() {
		t.Fatalf("running must not be terminal")
	}
	for _, s := range []SessionStatus{StatusCompleted, StatusStopped, StatusError, StatusCancelled} {
		if !s.Terminal() {
			t.Fatalf("%s must be terminal", s)
		}
	}
}

func TestStopConditions_Empty(t *testing.T) {
	t.Parallel()

	if !(StopConditions{}).Empty() {
		t.Fatalf("zero value must be empty")
	}
	if (StopConditions{MaxTurns: 1}).Empty() {
		t.Fatalf("max_turns set must not be empty")
	}
	if (StopConditions{StopKeywords: []string{"x"}}).Empty() {
		t.Fatalf("keywords set must not be empty")
	}
	if (StopConditions{RepetitionThreshold: 0.5}).Empty() {
		t.Fatalf("repetition threshold set must not be empty")
	}
}
