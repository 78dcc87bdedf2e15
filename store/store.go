// Package store persists session records and presets.
//
// A session is stored as one artifact per session id: the config snapshot,
// the full transcript, checkpoint records, and the final vote result when
// present. Presets are stored one artifact per name. Backends:
//
//   - memory: development and tests (default)
//   - file: single-node deployments, one JSON file per session
//   - redis: distributed deployments
//   - database: SQL deployments via GORM (sqlite, postgres, mysql)
//   - mongo: document-store deployments
package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/BaSui01/parley/types"
)

// Common errors. Callers translate these to transport-level errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrStoreClosed  = errors.New("store is closed")
	ErrInvalidInput = errors.New("invalid input")
)

// Type selects a storage backend.
type Type string

const (
	TypeMemory   Type = "memory"
	TypeFile     Type = "file"
	TypeRedis    Type = "redis"
	TypeDatabase Type = "database"
	TypeMongo    Type = "mongo"
)

// SessionStore persists session records and presets. Implementations are safe
// for concurrent use.
type SessionStore interface {
	// SaveSession writes the full record, replacing any previous snapshot
	// for the same session id.
	SaveSession(ctx context.Context, rec *types.SessionRecord) error

	// GetSession returns the full record or ErrNotFound.
	GetSession(ctx context.Context, sessionID string) (*types.SessionRecord, error)

	// ListSessions returns list-view summaries, newest first.
	ListSessions(ctx context.Context) ([]types.SessionSummary, error)

	// DeleteSession removes a record or returns ErrNotFound.
	DeleteSession(ctx context.Context, sessionID string) error

	// SavePreset stores a named config and returns its canonical filename.
	SavePreset(ctx context.Context, p *types.Preset) (string, error)

	// GetPreset resolves a preset by name or filename, or ErrNotFound.
	GetPreset(ctx context.Context, name string) (*types.Preset, error)

	// ListPresets returns the stored preset filenames, sorted.
	ListPresets(ctx context.Context) ([]string, error)

	// DeletePreset removes a preset or returns ErrNotFound.
	DeletePreset(ctx context.Context, name string) error

	// Ping checks backend health.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Host      string `json:"host" yaml:"host" env:"HOST"`
	Port      int    `json:"port" yaml:"port" env:"PORT"`
	Password  string `json:"password" yaml:"password" env:"PASSWORD"`
	DB        int    `json:"db" yaml:"db" env:"DB"`
	PoolSize  int    `json:"pool_size" yaml:"pool_size" env:"POOL_SIZE"`
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix" env:"KEY_PREFIX"`
}

// DatabaseConfig configures the SQL backend.
type DatabaseConfig struct {
	// Driver is sqlite, postgres, or mysql.
	Driver string `json:"driver" yaml:"driver" env:"DRIVER"`
	DSN    string `json:"dsn" yaml:"dsn" env:"DSN"`

	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`

	// AutoMigrate creates the schema on open. Deployments that run the
	// migration CLI instead should disable it.
	AutoMigrate bool `json:"auto_migrate" yaml:"auto_migrate" env:"AUTO_MIGRATE"`
}

// MongoConfig configures the document backend.
type MongoConfig struct {
	URI      string `json:"uri" yaml:"uri" env:"URI"`
	Database string `json:"database" yaml:"database" env:"DATABASE"`
}

// Config selects and configures a backend.
type Config struct {
	Type     Type           `json:"type" yaml:"type" env:"TYPE"`
	BaseDir  string         `json:"base_dir" yaml:"base_dir" env:"BASE_DIR"`
	Redis    RedisConfig    `json:"redis" yaml:"redis" env:"REDIS"`
	Database DatabaseConfig `json:"database" yaml:"database" env:"DATABASE"`
	Mongo    MongoConfig    `json:"mongo" yaml:"mongo" env:"MONGO"`
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	return Config{
		Type:    TypeMemory,
		BaseDir: "./data",
		Redis: RedisConfig{
			Host:      "localhost",
			Port:      6379,
			PoolSize:  10,
			KeyPrefix: "parley:",
		},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			DSN:             "./data/parley.db",
			MaxIdleConns:    5,
			MaxOpenConns:    25,
			ConnMaxLifetime: time.Hour,
			AutoMigrate:     true,
		},
		Mongo: MongoConfig{
			URI:      "mongodb://localhost:27017",
			Database: "parley",
		},
	}
}

var presetNameRe = regexp.MustCompile(`[^a-z0-9_-]+`)

// PresetFilename derives the canonical filename for a preset name: lowercase,
// spaces collapsed to hyphens, everything else stripped, ".yaml" appended.
// Accepts an existing filename unchanged. Returns ErrInvalidInput when
// nothing survives sanitization.
func PresetFilename(name string) (string, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.TrimSuffix(n, ".yaml")
	n = strings.ReplaceAll(n, " ", "-")
	n = presetNameRe.ReplaceAllString(n, "")
	n = strings.Trim(n, "-_")
	if n == "" {
		return "", ErrInvalidInput
	}
	return n + ".yaml", nil
}
