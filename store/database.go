package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/BaSui01/parley/types"
)

// sessionRow is the SQL projection of a session record: indexed columns for
// listing plus the full JSON payload.
type sessionRow struct {
	SessionID    string `gorm:"primaryKey;size:64"`
	Status       string `gorm:"size:16;index"`
	Paradigm     string `gorm:"size:16"`
	Topology     string `gorm:"size:16"`
	MessageCount int
	StartedAt    time.Time `gorm:"index"`
	EndedAt      *time.Time
	Payload      []byte
	UpdatedAt    time.Time
}

func (sessionRow) TableName() string { return "sessions" }

type presetRow struct {
	Filename  string `gorm:"primaryKey;size:160"`
	Name      string `gorm:"size:128"`
	Payload   []byte
	UpdatedAt time.Time
}

func (presetRow) TableName() string { return "presets" }

// DatabaseStore persists sessions and presets through GORM. Supported
// drivers: sqlite (pure Go), postgres, mysql.
type DatabaseStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// OpenDialector resolves the configured driver to a GORM dialector.
func OpenDialector(cfg DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return sqlite.Open(cfg.DSN), nil
	case "postgres":
		return postgres.Open(cfg.DSN), nil
	case "mysql":
		return mysql.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: sqlite, postgres, mysql)", cfg.Driver)
	}
}

// NewDatabaseStore opens the database, applies pool settings, and optionally
// creates the schema.
func NewDatabaseStore(cfg Config, logger *zap.Logger) (*DatabaseStore, error) {
	dialector, err := OpenDialector(cfg.Database)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Discard,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrap sql.DB: %w", err)
	}
	if cfg.Database.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	}
	if cfg.Database.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}
	if cfg.Database.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	}

	if cfg.Database.AutoMigrate {
		if err := db.AutoMigrate(&sessionRow{}, &presetRow{}); err != nil {
			return nil, fmt.Errorf("auto-migrate schema: %w", err)
		}
	}

	logger.Info("database store connected", zap.String("driver", cfg.Database.Driver))
	return &DatabaseStore{
		db:     db,
		logger: logger.With(zap.String("component", "database_store")),
	}, nil
}

// NewDatabaseStoreFromDB wraps an existing GORM handle. Used by tests.
func NewDatabaseStoreFromDB(db *gorm.DB, logger *zap.Logger) (*DatabaseStore, error) {
	if err := db.AutoMigrate(&sessionRow{}, &presetRow{}); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DatabaseStore{db: db, logger: logger}, nil
}

func (s *DatabaseStore) SaveSession(ctx context.Context, rec *types.SessionRecord) error {
	if rec == nil || rec.SessionID == "" {
		return ErrInvalidInput
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	row := sessionRow{
		SessionID:    rec.SessionID,
		Status:       string(rec.Status),
		Paradigm:     string(rec.Config.Paradigm),
		Topology:     string(rec.Config.Topology.Type),
		MessageCount: len(rec.Transcript),
		StartedAt:    rec.StartedAt,
		EndedAt:      rec.EndedAt,
		Payload:      payload,
		UpdatedAt:    time.Now(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		UpdateAll: true,
	}).Create(&row).Error
}

func (s *DatabaseStore) GetSession(ctx context.Context, sessionID string) (*types.SessionRecord, error) {
	var row sessionRow
	err := s.db.WithContext(ctx).First(&row, "session_id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec types.SessionRecord
	if err := json.Unmarshal(row.Payload, &rec); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return &rec, nil
}

func (s *DatabaseStore) ListSessions(ctx context.Context) ([]types.SessionSummary, error) {
	var rows []sessionRow
	err := s.db.WithContext(ctx).
		Select("session_id", "status", "paradigm", "topology", "message_count", "started_at", "ended_at").
		Order("started_at DESC, session_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]types.SessionSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, types.SessionSummary{
			SessionID:    row.SessionID,
			StartedAt:    row.StartedAt,
			EndedAt:      row.EndedAt,
			Paradigm:     types.Paradigm(row.Paradigm),
			Topology:     types.TopologyType(row.Topology),
			Status:       types.SessionStatus(row.Status),
			MessageCount: row.MessageCount,
		})
	}
	return out, nil
}

func (s *DatabaseStore) DeleteSession(ctx context.Context, sessionID string) error {
	res := s.db.WithContext(ctx).Delete(&sessionRow{}, "session_id = ?", sessionID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *DatabaseStore) SavePreset(ctx context.Context, p *types.Preset) (string, error) {
	if p == nil {
		return "", ErrInvalidInput
	}
	filename, err := PresetFilename(p.Name)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal preset: %w", err)
	}
	row := presetRow{
		Filename:  filename,
		Name:      p.Name,
		Payload:   payload,
		UpdatedAt: time.Now(),
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "filename"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return "", err
	}
	return filename, nil
}

func (s *DatabaseStore) GetPreset(ctx context.Context, name string) (*types.Preset, error) {
	filename, err := PresetFilename(name)
	if err != nil {
		return nil, err
	}
	var row presetRow
	err = s.db.WithContext(ctx).First(&row, "filename = ?", filename).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var p types.Preset
	if err := json.Unmarshal(row.Payload, &p); err != nil {
		return nil, fmt.Errorf("decode preset %s: %w", filename, err)
	}
	return &p, nil
}

func (s *DatabaseStore) ListPresets(ctx context.Context) ([]string, error) {
	var files []string
	err := s.db.WithContext(ctx).
		Model(&presetRow{}).
		Order("filename ASC").
		Pluck("filename", &files).Error
	return files, err
}

func (s *DatabaseStore) DeletePreset(ctx context.Context, name string) error {
	filename, err := PresetFilename(name)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Delete(&presetRow{}, "filename = ?", filename)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *DatabaseStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *DatabaseStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ SessionStore = (*DatabaseStore)(nil)
