package storage

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"
)

// migration is one forward-only schema step.
type migration struct {
	version int
	name    string
	stmt    string
}

var migrations = []migration{
	{
		version: 1,
		name:    "baseline",
		stmt: `
	CREATE TABLE IF NOT EXISTS event_schedule (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		pre_reg_start_date TEXT NOT NULL,
		event_date TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		CHECK (pre_reg_start_date < event_date)
	);

	CREATE TABLE IF NOT EXISTS person (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT UNIQUE,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		promoted_at TEXT
	);

	CREATE TABLE IF NOT EXISTS attendance_record (
		id TEXT PRIMARY KEY,
		person_id TEXT NOT NULL,
		person_kind TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		type TEXT NOT NULL,
		method TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_attendance_kind_type ON attendance_record(person_kind, type);
	`,
	},
	{
		version: 2,
		name:    "attendance_person_timestamp",
		stmt: `
	CREATE INDEX IF NOT EXISTS idx_attendance_person ON attendance_record(person_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_attendance_timestamp ON attendance_record(timestamp);
	`,
	},
}

// InitDB initializes the database schema.
// PRE: db is a valid database connection
// POST: All migrations are applied, WAL mode enabled
func InitDB(db *sql.DB) error {
	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return MigrateDB(db)
}

// MigrateDB applies every migration newer than the recorded schema version.
// PRE: db is a valid database connection
// POST: SchemaVersion(db) == LatestSchemaVersion()
// INVARIANT: each migration runs in its own transaction together with its version bump
func MigrateDB(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER NOT NULL,
		applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
	)`); err != nil {
		return fmt.Errorf("failed to create schema_version: %w", err)
	}

	current, err := SchemaVersion(db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("migration %d: begin: %w", m.version, err)
		}
		if _, err := tx.Exec(m.stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: record version: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: commit: %w", m.version, err)
		}
		slog.Info("storage_event", "event", "migration_applied", "version", m.version, "name", m.name)
	}
	return nil
}

// SchemaVersion returns the highest applied migration, 0 for a fresh database.
func SchemaVersion(db *sql.DB) (int, error) {
	var v sql.NullInt64
	if err := db.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return int(v.Int64), nil
}

// LatestSchemaVersion is the version a fully migrated database reports.
func LatestSchemaVersion() int {
	return migrations[len(migrations)-1].version
}

// Open opens the SQLite file at path with WAL, busy timeout and foreign keys
// set on every pooled connection, then applies migrations.
// POST: Returns a migrated, reachable database
func Open(path string) (*sql.DB, error) {
	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(8)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}
	if err := InitDB(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
