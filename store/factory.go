package store

import (
	"fmt"

	"go.uber.org/zap"
)

// New creates a SessionStore for the configured backend.
func New(cfg Config, logger *zap.Logger) (SessionStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Type {
	case TypeMemory, "":
		return NewMemoryStore(), nil
	case TypeFile:
		return NewFileStore(cfg, logger)
	case TypeRedis:
		return NewRedisStore(cfg, logger)
	case TypeDatabase:
		return NewDatabaseStore(cfg, logger)
	case TypeMongo:
		return NewMongoStore(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Type)
	}
}
