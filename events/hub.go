// Package events broadcasts session lifecycle events to live observers. The
// scheduler publishes from inside its actor loop, so delivery is strictly
// non-blocking: a subscriber that cannot keep up loses events rather than
// slowing the session.
package events

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/parley/internal/channel"
	"github.com/BaSui01/parley/types"
)

// Type identifies an event kind on the wire.
type Type string

const (
	TypeSessionStarted Type = "session_started"
	TypeRoundStarted   Type = "round_started"
	TypeTurn           Type = "turn"
	TypeRoundCompleted Type = "round_completed"
	TypeCheckpoint     Type = "checkpoint"
	TypeSummary        Type = "summary"
	TypeVoteResult     Type = "vote_result"
	TypeSessionEnded   Type = "session_ended"
)

// Event is one observable moment in a session's life.
type Event struct {
	Type      Type                    `json:"type"`
	SessionID string                  `json:"session_id"`
	Round     int                     `json:"round,omitempty"`
	Turn      *types.Turn             `json:"turn,omitempty"`
	Status    types.SessionStatus     `json:"status,omitempty"`
	Reason    types.TerminationReason `json:"reason,omitempty"`
	Detail    string                  `json:"detail,omitempty"`
	Timestamp time.Time               `json:"timestamp"`
}

// DefaultBuffer is the per-subscription buffer used when callers pass 0.
const DefaultBuffer = 256

// Hub fans events out to subscriptions. Safe for concurrent use.
type Hub struct {
	logger *zap.Logger

	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// Subscription is one observer's event queue.
type Subscription struct {
	hub       *Hub
	sessionID string
	buf       *channel.Dropping[Event]
}

// NewHub creates an event hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger: logger,
		subs:   make(map[*Subscription]struct{}),
	}
}

// Subscribe registers an observer. sessionID filters to one session; the
// empty string receives every session's events. buffer 0 selects
// DefaultBuffer. Always call Close when done.
func (h *Hub) Subscribe(sessionID string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	sub := &Subscription{
		hub:       h,
		sessionID: sessionID,
		buf:       channel.NewDropping[Event](buffer),
	}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Publish delivers ev to every matching subscription without blocking.
func (h *Hub) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs {
		if sub.sessionID != "" && sub.sessionID != ev.SessionID {
			continue
		}
		if !sub.buf.Publish(ev) {
			h.logger.Debug("event dropped for slow subscriber",
				zap.String("session_id", ev.SessionID),
				zap.String("type", string(ev.Type)))
		}
	}
}

// SubscriberCount returns the number of live subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// C returns the subscription's receive channel. It closes after Close.
func (s *Subscription) C() <-chan Event {
	return s.buf.C()
}

// Dropped returns how many events this subscription has lost.
func (s *Subscription) Dropped() int64 {
	return s.buf.Dropped()
}

// Close detaches the subscription from the hub and closes its channel.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	delete(s.hub.subs, s)
	s.hub.mu.Unlock()
	s.buf.Close()
}
