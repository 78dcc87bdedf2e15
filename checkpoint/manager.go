// Package checkpoint persists session snapshots on a round cadence.
//
// A checkpoint is not a separate artifact: it appends a CheckpointRecord to
// the session record and rewrites the whole artifact through the store. A
// failed write is logged and counted, never fatal; because every write
// carries the full record, the next boundary's write retries everything the
// failed one held.
package checkpoint

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/parley/store"
	"github.com/BaSui01/parley/types"
)

// Manager owns checkpoint cadence and persistence for one session.
type Manager struct {
	store  store.SessionStore
	logger *zap.Logger
	every  int

	failed  atomic.Int64
	pending atomic.Bool
}

// NewManager creates a manager writing through st every `every` rounds.
// Zero disables the cadence entirely.
func NewManager(st store.SessionStore, every int, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:  st,
		logger: logger.With(zap.String("component", "checkpoint")),
		every:  every,
	}
}

// Due reports whether the just-completed round is a checkpoint boundary.
func (m *Manager) Due(round int) bool {
	return m.every > 0 && round > 0 && round%m.every == 0
}

// Write appends a checkpoint record for the completed round and persists the
// session. Write errors are absorbed: the record keeps the entry in memory,
// so the next boundary's save carries it.
func (m *Manager) Write(ctx context.Context, rec *types.SessionRecord, round int, cost float64, tokens int) {
	rec.Checkpoints = append(rec.Checkpoints, types.CheckpointRecord{
		Round:            round,
		TranscriptLength: len(rec.Transcript),
		CumulativeCost:   cost,
		CumulativeTokens: tokens,
		CreatedAt:        time.Now(),
	})

	if err := m.store.SaveSession(ctx, rec); err != nil {
		m.failed.Add(1)
		m.pending.Store(true)
		m.logger.Warn("checkpoint write failed, retrying at next boundary",
			zap.String("session_id", rec.SessionID),
			zap.Int("round", round),
			zap.Error(err),
		)
		return
	}

	m.pending.Store(false)
	m.logger.Debug("checkpoint written",
		zap.String("session_id", rec.SessionID),
		zap.Int("round", round),
		zap.Int("transcript_length", len(rec.Transcript)),
		zap.Float64("cumulative_cost", cost),
	)
}

// Persist saves the record outside the cadence (creation, termination). The
// caller decides what a failure means.
func (m *Manager) Persist(ctx context.Context, rec *types.SessionRecord) error {
	if err := m.store.SaveSession(ctx, rec); err != nil {
		return err
	}
	m.pending.Store(false)
	return nil
}

// FailedWrites returns how many checkpoint writes have failed so far.
func (m *Manager) FailedWrites() int64 { return m.failed.Load() }

// Pending reports whether the latest checkpoint attempt is still unpersisted.
func (m *Manager) Pending() bool { return m.pending.Load() }
