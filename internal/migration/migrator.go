package migration

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/BaSui01/parley/store"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql migrations/mysql/*.sql
var migrationsFS embed.FS

const defaultTable = "schema_migrations"

// Config selects the target database for migrations.
type Config struct {
	// Driver is sqlite, postgres, or mysql. Common aliases (sqlite3,
	// postgresql, pg, mariadb) are accepted.
	Driver string
	// DSN is the connection string. MySQL DSNs must enable
	// multiStatements; FromStoreConfig takes care of that.
	DSN string
	// TableName overrides the migrations bookkeeping table.
	TableName string
}

// FromStoreConfig derives a migrator config from the store's database
// section, so the migrate CLI and the running service always target the
// same database.
func FromStoreConfig(cfg store.DatabaseConfig) Config {
	dsn := cfg.DSN
	if d, err := normalizeDriver(cfg.Driver); err == nil && d == "mysql" {
		dsn = ensureMultiStatements(dsn)
	}
	return Config{Driver: cfg.Driver, DSN: dsn}
}

func ensureMultiStatements(dsn string) string {
	if strings.Contains(dsn, "multiStatements=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "multiStatements=true"
}

func normalizeDriver(s string) (string, error) {
	switch strings.ToLower(s) {
	case "sqlite", "sqlite3", "":
		return "sqlite", nil
	case "postgres", "postgresql", "pg":
		return "postgres", nil
	case "mysql", "mariadb":
		return "mysql", nil
	}
	return "", fmt.Errorf("unsupported database driver: %s (supported: sqlite, postgres, mysql)", s)
}

// StepStatus describes one known migration and whether it is applied.
type StepStatus struct {
	Version uint
	Name    string
	Applied bool
	Dirty   bool
}

// Info summarizes the migration state of a database.
type Info struct {
	CurrentVersion uint
	Dirty          bool
	Total          int
	Applied        int
	Pending        int
}

// Migrator applies the embedded schema migrations to one database.
type Migrator struct {
	driver string
	m      *migrate.Migrate
	db     *sql.DB
}

// New opens the target database and prepares the embedded migrations
// for its dialect.
func New(cfg Config) (*Migrator, error) {
	driver, err := normalizeDriver(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if cfg.DSN == "" {
		return nil, errors.New("database DSN is required")
	}
	table := cfg.TableName
	if table == "" {
		table = defaultTable
	}

	// The migrate database packages register the underlying sql drivers:
	// modernc sqlite, lib/pq, go-sql-driver.
	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	var drv database.Driver
	switch driver {
	case "sqlite":
		drv, err = migratesqlite.WithInstance(db, &migratesqlite.Config{MigrationsTable: table})
	case "postgres":
		drv, err = migratepg.WithInstance(db, &migratepg.Config{MigrationsTable: table})
	case "mysql":
		drv, err = migratemysql.WithInstance(db, &migratemysql.Config{MigrationsTable: table})
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create %s migration driver: %w", driver, err)
	}

	src, err := iofs.New(migrationsFS, "migrations/"+driver)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, driver, drv)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return &Migrator{driver: driver, m: m, db: db}, nil
}

// Up applies all pending migrations.
func (mg *Migrator) Up(ctx context.Context) error {
	if err := mg.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Down rolls back the most recent migration.
func (mg *Migrator) Down(ctx context.Context) error {
	if err := mg.m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

// DownAll rolls back everything.
func (mg *Migrator) DownAll(ctx context.Context) error {
	if err := mg.m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate down all: %w", err)
	}
	return nil
}

// Steps applies n migrations forward, or backward when n is negative.
func (mg *Migrator) Steps(ctx context.Context, n int) error {
	if err := mg.m.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate steps: %w", err)
	}
	return nil
}

// Goto migrates up or down to an exact version.
func (mg *Migrator) Goto(ctx context.Context, version uint) error {
	if err := mg.m.Migrate(version); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate to version %d: %w", version, err)
	}
	return nil
}

// Force overwrites the recorded version without running migrations.
// Used to recover from a dirty state.
func (mg *Migrator) Force(ctx context.Context, version int) error {
	if err := mg.m.Force(version); err != nil {
		return fmt.Errorf("force version %d: %w", version, err)
	}
	return nil
}

// Version returns the currently applied version; zero means none.
func (mg *Migrator) Version(ctx context.Context) (uint, bool, error) {
	version, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read version: %w", err)
	}
	return version, dirty, nil
}

// Status lists every embedded migration for the dialect with its
// applied state.
func (mg *Migrator) Status(ctx context.Context) ([]StepStatus, error) {
	current, dirty, err := mg.Version(ctx)
	if err != nil {
		return nil, err
	}
	steps, err := mg.available()
	if err != nil {
		return nil, err
	}
	out := make([]StepStatus, 0, len(steps))
	for _, s := range steps {
		out = append(out, StepStatus{
			Version: s.version,
			Name:    s.name,
			Applied: s.version <= current,
			Dirty:   dirty && s.version == current,
		})
	}
	return out, nil
}

// Summary returns the aggregate migration state.
func (mg *Migrator) Summary(ctx context.Context) (*Info, error) {
	current, dirty, err := mg.Version(ctx)
	if err != nil {
		return nil, err
	}
	steps, err := mg.available()
	if err != nil {
		return nil, err
	}
	applied := 0
	for _, s := range steps {
		if s.version <= current {
			applied++
		}
	}
	return &Info{
		CurrentVersion: current,
		Dirty:          dirty,
		Total:          len(steps),
		Applied:        applied,
		Pending:        len(steps) - applied,
	}, nil
}

// Close releases the migrate instance and the database connection.
func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	if srcErr != nil {
		return srcErr
	}
	return dbErr
}

type step struct {
	version uint
	name    string
}

// available parses the embedded up-migrations for the active dialect.
// Filenames follow the 000001_name.up.sql convention.
func (mg *Migrator) available() ([]step, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations/"+mg.driver)
	if err != nil {
		return nil, fmt.Errorf("read embedded migrations: %w", err)
	}
	var steps []step
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		parts := strings.SplitN(name, "_", 2)
		if len(parts) != 2 {
			continue
		}
		version, err := strconv.ParseUint(parts[0], 10, 32)
		if err != nil {
			continue
		}
		steps = append(steps, step{
			version: uint(version),
			name:    strings.TrimSuffix(parts[1], ".up.sql"),
		})
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].version < steps[j].version })
	return steps, nil
}
