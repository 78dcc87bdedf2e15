package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/parley/types"
)

// RedisStore persists sessions and presets in Redis. Session records live
// under one key each, with a sorted-set index scored by start time so listing
// stays cheap.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	logger    *zap.Logger
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg Config, logger *zap.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	keyPrefix := cfg.Redis.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "parley:"
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
		logger:    logger.With(zap.String("component", "redis_store")),
	}, nil
}

// NewRedisStoreFromClient wraps an existing client. Used by tests.
func NewRedisStoreFromClient(client *redis.Client, keyPrefix string, logger *zap.Logger) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "parley:"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix, logger: logger}
}

func (s *RedisStore) sessionKey(id string) string { return s.keyPrefix + "session:" + id }
func (s *RedisStore) sessionIndex() string        { return s.keyPrefix + "sessions" }
func (s *RedisStore) presetKey(file string) string {
	return s.keyPrefix + "preset:" + file
}
func (s *RedisStore) presetIndex() string { return s.keyPrefix + "presets" }

func (s *RedisStore) SaveSession(ctx context.Context, rec *types.SessionRecord) error {
	if rec == nil || rec.SessionID == "" {
		return ErrInvalidInput
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.sessionKey(rec.SessionID), data, 0)
	pipe.ZAdd(ctx, s.sessionIndex(), redis.Z{
		Score:  float64(rec.StartedAt.UnixNano()),
		Member: rec.SessionID,
	})
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) GetSession(ctx context.Context, sessionID string) (*types.SessionRecord, error) {
	data, err := s.client.Get(ctx, s.sessionKey(sessionID)).Bytes()
	if err == redis.Nil {
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

func (s *RedisStore) ListSessions(ctx context.Context) ([]types.SessionSummary, error) {
	// Newest first: the index is scored by start time.
	ids, err := s.client.ZRevRange(ctx, s.sessionIndex(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]types.SessionSummary, 0, len(ids))
	for _, id := range ids {
		rec, err := s.GetSession(ctx, id)
		if err == ErrNotFound {
			// Index entry outlived its record; heal the index.
			s.client.ZRem(ctx, s.sessionIndex(), id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec.Summary())
	}
	return out, nil
}

func (s *RedisStore) DeleteSession(ctx context.Context, sessionID string) error {
	n, err := s.client.Del(ctx, s.sessionKey(sessionID)).Result()
	if err != nil {
		return err
	}
	s.client.ZRem(ctx, s.sessionIndex(), sessionID)
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) SavePreset(ctx context.Context, p *types.Preset) (string, error) {
	if p == nil {
		return "", ErrInvalidInput
	}
	filename, err := PresetFilename(p.Name)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal preset: %w", err)
	}
	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.presetKey(filename), data, 0)
	pipe.SAdd(ctx, s.presetIndex(), filename)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", err
	}
	return filename, nil
}

func (s *RedisStore) GetPreset(ctx context.Context, name string) (*types.Preset, error) {
	filename, err := PresetFilename(name)
	if err != nil {
		return nil, err
	}
	data, err := s.client.Get(ctx, s.presetKey(filename)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var p types.Preset
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode preset %s: %w", filename, err)
	}
	return &p, nil
}

func (s *RedisStore) ListPresets(ctx context.Context) ([]string, error) {
	files, err := s.client.SMembers(ctx, s.presetIndex()).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func (s *RedisStore) DeletePreset(ctx context.Context, name string) error {
	filename, err := PresetFilename(name)
	if err != nil {
		return err
	}
	n, err := s.client.Del(ctx, s.presetKey(filename)).Result()
	if err != nil {
		return err
	}
	s.client.SRem(ctx, s.presetIndex(), filename)
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ SessionStore = (*RedisStore)(nil)
