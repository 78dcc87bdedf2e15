package store

import (
	"context"
	"sort"
	"sync"

	"github.com/BaSui01/parley/types"
)

// MemoryStore keeps everything in process memory. Records are deep-copied on
// the way in and out, so callers never share mutable state with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*types.SessionRecord
	presets  map[string]*types.Preset // keyed by filename
	closed   bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*types.SessionRecord),
		presets:  make(map[string]*types.Preset),
	}
}

func (s *MemoryStore) SaveSession(ctx context.Context, rec *types.SessionRecord) error {
	if rec == nil || rec.SessionID == "" {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.sessions[rec.SessionID] = rec.Clone()
	return nil
}

func (s *MemoryStore) GetSession(ctx context.Context, sessionID string) (*types.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	rec, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) ListSessions(ctx context.Context) ([]types.SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	out := make([]types.SessionSummary, 0, len(s.sessions))
	for _, rec := range s.sessions {
		out = append(out, rec.Summary())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].SessionID < out[j].SessionID
	})
	return out, nil
}

func (s *MemoryStore) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if _, ok := s.sessions[sessionID]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}

func (s *MemoryStore) SavePreset(ctx context.Context, p *types.Preset) (string, error) {
	if p == nil {
		return "", ErrInvalidInput
	}
	filename, err := PresetFilename(p.Name)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrStoreClosed
	}
	cp := *p
	cp.Config = p.Config.Clone()
	s.presets[filename] = &cp
	return filename, nil
}

func (s *MemoryStore) GetPreset(ctx context.Context, name string) (*types.Preset, error) {
	filename, err := PresetFilename(name)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	p, ok := s.presets[filename]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	cp.Config = p.Config.Clone()
	return &cp, nil
}

func (s *MemoryStore) ListPresets(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	out := make([]string, 0, len(s.presets))
	for filename := range s.presets {
		out = append(out, filename)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) DeletePreset(ctx context.Context, name string) error {
	filename, err := PresetFilename(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if _, ok := s.presets[filename]; !ok {
		return ErrNotFound
	}
	delete(s.presets, filename)
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ SessionStore = (*MemoryStore)(nil)
