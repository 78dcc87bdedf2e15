package events

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func drain(t *testing.T, sub *Subscription, n int) []Event {
	t.Helper()
	out := make([]Event, 0, n)
	for len(out) < n {
		select {
		case ev := <-sub.C():
			out = append(out, ev)
		case <-time.After(time.Second):
			t.Fatalf("timed out after %d of %d events", len(out), n)
		}
	}
	return out
}

func TestHub_SessionFilter(t *testing.T) {
	h := NewHub(zap.NewNop())
	mine := h.Subscribe("sess-a", 8)
	defer mine.Close()
	other := h.Subscribe("sess-b", 8)
	defer other.Close()

	h.Publish(Event{Type: TypeRoundStarted, SessionID: "sess-a", Round: 1})
	h.Publish(Event{Type: TypeRoundStarted, SessionID: "sess-b", Round: 1})

	got := drain(t, mine, 1)
	if got[0].SessionID != "sess-a" {
		t.Fatalf("subscription leaked session %q", got[0].SessionID)
	}
	select {
	case ev := <-mine.C():
		t.Fatalf("unexpected extra event: %+v", ev)
	default:
	}
}

func TestHub_FirehoseSeesEverySession(t *testing.T) {
	h := NewHub(zap.NewNop())
	all := h.Subscribe("", 8)
	defer all.Close()

	h.Publish(Event{Type: TypeSessionStarted, SessionID: "one"})
	h.Publish(Event{Type: TypeSessionStarted, SessionID: "two"})

	got := drain(t, all, 2)
	if got[0].SessionID == got[1].SessionID {
		t.Fatalf("expected two distinct sessions, got %q twice", got[0].SessionID)
	}
}

func TestHub_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	h := NewHub(zap.NewNop())
	sub := h.Subscribe("s", 2)
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			h.Publish(Event{Type: TypeTurn, SessionID: "s", Round: i})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	if sub.Dropped() != 8 {
		t.Fatalf("dropped = %d, want 8", sub.Dropped())
	}
}

func TestHub_CloseDetaches(t *testing.T) {
	h := NewHub(zap.NewNop())
	sub := h.Subscribe("s", 2)
	sub.Close()

	if n := h.SubscriberCount(); n != 0 {
		t.Fatalf("subscriber count = %d after close", n)
	}
	// Publishing after close must not panic.
	h.Publish(Event{Type: TypeSessionEnded, SessionID: "s"})

	if _, ok := <-sub.C(); ok {
		t.Fatal("closed subscription channel should be drained and closed")
	}
}

func TestHub_PublishStampsTimestamp(t *testing.T) {
	h := NewHub(nil)
	sub := h.Subscribe("", 1)
	defer sub.Close()

	h.Publish(Event{Type: TypeCheckpoint, SessionID: "s"})
	ev := drain(t, sub, 1)[0]
	if ev.Timestamp.IsZero() {
		t.Fatal("hub should stamp missing timestamps")
	}
}
