package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/BaSui01/parley/types"
)

// FileStore persists one JSON file per session under <base>/sessions and one
// YAML file per preset under <base>/presets. Writes are atomic (temp file
// plus rename), so a crash mid-write never corrupts an existing artifact.
type FileStore struct {
	sessionDir string
	presetDir  string
	logger     *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// NewFileStore creates the storage directories and returns a file store.
func NewFileStore(cfg Config, logger *zap.Logger) (*FileStore, error) {
	sessionDir := filepath.Join(cfg.BaseDir, "sessions")
	presetDir := filepath.Join(cfg.BaseDir, "presets")
	for _, dir := range []string{sessionDir, presetDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}
	return &FileStore{
		sessionDir: sessionDir,
		presetDir:  presetDir,
		logger:     logger.With(zap.String("component", "file_store")),
	}, nil
}

// sessionPath returns the artifact path for a session id. Ids are UUIDs
// minted by the session manager; anything else is rejected to keep path
// traversal out of the store.
func (s *FileStore) sessionPath(sessionID string) (string, error) {
	if sessionID == "" || strings.ContainsAny(sessionID, `/\`) || strings.Contains(sessionID, "..") {
		return "", ErrInvalidInput
	}
	return filepath.Join(s.sessionDir, sessionID+".json"), nil
}

// writeAtomic writes data next to path and renames it into place.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *FileStore) SaveSession(ctx context.Context, rec *types.SessionRecord) error {
	if rec == nil || rec.SessionID == "" {
		return ErrInvalidInput
	}
	path, err := s.sessionPath(rec.SessionID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return writeAtomic(path, data)
}

func (s *FileStore) GetSession(ctx context.Context, sessionID string) (*types.SessionRecord, error) {
	path, err := s.sessionPath(sessionID)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec types.SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return &rec, nil
}

func (s *FileStore) ListSessions(ctx context.Context) ([]types.SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	entries, err := os.ReadDir(s.sessionDir)
	if err != nil {
		return nil, err
	}
	out := make([]types.SessionSummary, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.sessionDir, entry.Name()))
		if err != nil {
			s.logger.Warn("skipping unreadable session file",
				zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		var rec types.SessionRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			s.logger.Warn("skipping corrupt session file",
				zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
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

func (s *FileStore) DeleteSession(ctx context.Context, sessionID string) error {
	path, err := s.sessionPath(sessionID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if err := os.Remove(path); os.IsNotExist(err) {
		return ErrNotFound
	} else if err != nil {
		return err
	}
	return nil
}

func (s *FileStore) SavePreset(ctx context.Context, p *types.Preset) (string, error) {
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
	data, err := yaml.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal preset: %w", err)
	}
	if err := writeAtomic(filepath.Join(s.presetDir, filename), data); err != nil {
		return "", err
	}
	return filename, nil
}

func (s *FileStore) GetPreset(ctx context.Context, name string) (*types.Preset, error) {
	filename, err := PresetFilename(name)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	data, err := os.ReadFile(filepath.Join(s.presetDir, filename))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var p types.Preset
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode preset %s: %w", filename, err)
	}
	return &p, nil
}

func (s *FileStore) ListPresets(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	entries, err := os.ReadDir(s.presetDir)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		out = append(out, entry.Name())
	}
	sort.Strings(out)
	return out, nil
}

func (s *FileStore) DeletePreset(ctx context.Context, name string) error {
	filename, err := PresetFilename(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if err := os.Remove(filepath.Join(s.presetDir, filename)); os.IsNotExist(err) {
		return ErrNotFound
	} else if err != nil {
		return err
	}
	return nil
}

func (s *FileStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	_, err := os.Stat(s.sessionDir)
	return err
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ SessionStore = (*FileStore)(nil)
