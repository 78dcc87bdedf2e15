// Package channel provides channel helpers for event fan-out.
package channel

import (
	"sync"
	"sync/atomic"
)

// Dropping is a fixed-capacity channel that never blocks the producer. When
// the buffer is full, Publish discards the value and counts the loss, so a
// slow consumer can lag but can never stall the session actor.
type Dropping[T any] struct {
	mu      sync.RWMutex
	ch      chan T
	closed  bool
	dropped atomic.Int64
}

// NewDropping creates a dropping channel. Capacities below 1 are raised to 1.
func NewDropping[T any](capacity int) *Dropping[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Dropping[T]{ch: make(chan T, capacity)}
}

// Publish offers v without blocking. It reports false when the value was
// dropped because the buffer was full or the channel is closed.
func (d *Dropping[T]) Publish(v T) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return false
	}
	select {
	case d.ch <- v:
		return true
	default:
		d.dropped.Add(1)
		return false
	}
}

// C returns the receive side. It is closed by Close after all pending values
// are delivered or discarded by the consumer.
func (d *Dropping[T]) C() <-chan T {
	return d.ch
}

// Dropped returns how many values have been discarded so far.
func (d *Dropping[T]) Dropped() int64 {
	return d.dropped.Load()
}

// Len returns the number of buffered values.
func (d *Dropping[T]) Len() int {
	return len(d.ch)
}

// Close closes the receive side. Safe to call more than once; publishes after
// Close are dropped.
func (d *Dropping[T]) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.closed {
		d.closed = true
		close(d.ch)
	}
}
