package cache

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/ivcurve/internal/monitoring"
	"github.com/banshee-data/ivcurve/internal/timeutil"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore keeps snapshots in a single SQLite database, one row per
// bundle key. Each save gets a fresh snapshot id.
type SQLiteStore struct {
	db    *sql.DB
	clock timeutil.Clock
}

// OpenSQLite opens (creating if needed) the database at path and applies
// pending migrations.
func OpenSQLite(path string, clock timeutil.Clock) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot database: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000; PRAGMA journal_mode = WAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure snapshot database: %w", err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &SQLiteStore{db: db, clock: clock}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = migrateLogger{}

	// m is not closed: closing it would close db as well.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...interface{}) {
	monitoring.Logf("[migrate] "+format, v...)
}

func (migrateLogger) Verbose() bool { return monitoring.Verbose() }

// Load returns the snapshot stored for key.
func (s *SQLiteStore) Load(key string) (*Snapshot, error) {
	var blob []byte
	err := s.db.QueryRow(`SELECT blob FROM snapshots WHERE bundle_key = ?`, key).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}
	return Unmarshal(blob)
}

// Save replaces the snapshot stored for key in a single statement.
func (s *SQLiteStore) Save(key string, snap *Snapshot) error {
	blob, err := Marshal(snap)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO snapshots (bundle_key, snapshot_id, kind, schema_version, app_version, trace_count, saved_at, blob)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(bundle_key) DO UPDATE SET
			snapshot_id = excluded.snapshot_id,
			kind = excluded.kind,
			schema_version = excluded.schema_version,
			app_version = excluded.app_version,
			trace_count = excluded.trace_count,
			saved_at = excluded.saved_at,
			blob = excluded.blob`,
		key, uuid.NewString(), snap.Kind, snap.Schema, snap.Version, snap.TraceCount,
		s.clock.Now().UnixNano(), blob)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// Entry describes a stored snapshot without decoding it.
type Entry struct {
	Key        string
	ID         string
	Kind       string
	TraceCount int
	SavedAt    int64 // unix nanoseconds
}

// List returns the stored snapshots of the given kind ordered by key. An
// empty kind lists everything.
func (s *SQLiteStore) List(kind string) ([]Entry, error) {
	rows, err := s.db.Query(`
		SELECT bundle_key, snapshot_id, kind, trace_count, saved_at
		FROM snapshots
		WHERE ? = '' OR kind = ?
		ORDER BY bundle_key`, kind, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.ID, &e.Kind, &e.TraceCount, &e.SavedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Delete removes the snapshot stored for key, if any.
func (s *SQLiteStore) Delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM snapshots WHERE bundle_key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
