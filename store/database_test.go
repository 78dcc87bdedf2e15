package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/BaSui01/parley/types"
)

func setupTestDatabase(t *testing.T) *DatabaseStore {
	dsn := filepath.Join(t.TempDir(), "parley-test.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)

	s, err := NewDatabaseStoreFromDB(db, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestDatabaseStore(t *testing.T) {
	runSessionStoreSuite(t, func(t *testing.T) SessionStore {
		return setupTestDatabase(t)
	})
}

func TestDatabaseStore_SummaryColumns(t *testing.T) {
	ctx := context.Background()
	s := setupTestDatabase(t)
	defer s.Close()

	rec := testRecord("cols", time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	rec.Status = types.StatusStopped
	ended := rec.StartedAt.Add(42 * time.Second)
	rec.EndedAt = &ended
	require.NoError(t, s.SaveSession(ctx, rec))

	listed, err := s.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	got := listed[0]
	require.Equal(t, rec.Config.Paradigm, got.Paradigm)
	require.Equal(t, rec.Config.Topology.Type, got.Topology)
	require.Equal(t, rec.Status, got.Status)
	require.Equal(t, len(rec.Transcript), got.MessageCount)
	require.NotNil(t, got.EndedAt)
	require.True(t, got.EndedAt.Equal(ended))
}

func TestNewDatabaseStore_SQLiteDSN(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database.Driver = "sqlite"
	cfg.Database.DSN = filepath.Join(t.TempDir(), "full.db")

	s, err := NewDatabaseStore(cfg, zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.SaveSession(context.Background(), testRecord("dsn", time.Now())))
}

func TestOpenDialector_UnknownDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database.Driver = "oracle"
	_, err := OpenDialector(cfg.Database)
	require.Error(t, err)
	require.Contains(t, err.Error(), "oracle")
}

// mockStore wires a sqlmock connection behind the MySQL dialector so backend
// failures can be scripted. AutoMigrate is skipped on purpose.
func mockStore(t *testing.T) (*DatabaseStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger:               gormlogger.Discard,
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)
	return &DatabaseStore{db: gdb, logger: zap.NewNop()}, mock
}

func TestDatabaseStore_PingReportsBackendFailure(t *testing.T) {
	s, mock := mockStore(t)

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	err := s.Ping(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "connection refused")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabaseStore_SaveSurfacesExecError(t *testing.T) {
	s, mock := mockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `sessions`").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.SaveSession(context.Background(), testRecord("mock-1", time.Now()))
	require.Error(t, err)
	require.Contains(t, err.Error(), "disk full")
	require.NoError(t, mock.ExpectationsWereMet())
}
