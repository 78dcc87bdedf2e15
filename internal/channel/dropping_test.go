package channel

import (
	"sync"
	"testing"
)

func TestDropping_PublishAndReceive(t *testing.T) {
	d := NewDropping[int](4)
	for i := 1; i <= 3; i++ {
		if !d.Publish(i) {
			t.Fatalf("publish %d should fit", i)
		}
	}
	if d.Len() != 3 {
		t.Fatalf("len = %d, want 3", d.Len())
	}
	for want := 1; want <= 3; want++ {
		if got := <-d.C(); got != want {
			t.Fatalf("got %d, want %d", got, want)
		}
	}
}

func TestDropping_FullBufferDrops(t *testing.T) {
	d := NewDropping[string](2)
	d.Publish("a")
	d.Publish("b")

	if d.Publish("c") {
		t.Fatal("publish into a full buffer must report a drop")
	}
	if d.Dropped() != 1 {
		t.Fatalf("dropped = %d, want 1", d.Dropped())
	}
	// The buffered values survive untouched.
	if got := <-d.C(); got != "a" {
		t.Fatalf("got %q, want a", got)
	}
}

func TestDropping_PublishAfterCloseIsSafe(t *testing.T) {
	d := NewDropping[int](1)
	d.Publish(7)
	d.Close()
	d.Close() // idempotent

	if d.Publish(8) {
		t.Fatal("publish after close must report a drop")
	}
	if got, ok := <-d.C(); !ok || got != 7 {
		t.Fatalf("pending value lost: got=%d ok=%v", got, ok)
	}
	if _, ok := <-d.C(); ok {
		t.Fatal("channel should be closed")
	}
}

func TestDropping_ConcurrentPublishersNeverBlock(t *testing.T) {
	d := NewDropping[int](8)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				d.Publish(n)
			}
		}(i)
	}
	wg.Wait()

	delivered := int64(d.Len())
	if delivered+d.Dropped() != 1600 {
		t.Fatalf("accounting mismatch: buffered %d + dropped %d != 1600", delivered, d.Dropped())
	}
	d.Close()
}
