package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/Sumatoshi-tech/covfold/pkg/coverage"
)

// busyTimeout bounds how long a writer waits for a lock before the store
// reports [ErrRateLimited].
const busyTimeout = 5 * time.Second

const schema = `
CREATE TABLE IF NOT EXISTS reports (
	key        TEXT PRIMARY KEY,
	payload    BLOB NOT NULL,
	compressed INTEGER NOT NULL DEFAULT 0,
	updated_at TEXT NOT NULL
);`

const upsertReport = `
INSERT INTO reports (key, payload, compressed, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
	payload = excluded.payload,
	compressed = excluded.compressed,
	updated_at = excluded.updated_at`

// SQLiteStore keeps reports in a single SQLite table.
type SQLiteStore struct {
	db          *sql.DB
	compression Compression
}

// NewSQLiteStore opens (and if needed creates) the database at dsn.
func NewSQLiteStore(dsn string, compression Compression) (*SQLiteStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: empty dsn", ErrInvalidConfig)
	}

	if dir := filepath.Dir(dsn); dir != "." && dsn != ":memory:" {
		mkErr := os.MkdirAll(dir, dirPerm)
		if mkErr != nil {
			return nil, fmt.Errorf("sqlite store: %w", mkErr)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite store open: %w", err)
	}

	// One connection keeps in-memory databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout.Milliseconds()),
		schema,
	} {
		_, execErr := db.Exec(stmt)
		if execErr != nil {
			_ = db.Close()

			return nil, fmt.Errorf("sqlite store init: %w", mapSQLiteError(execErr))
		}
	}

	return &SQLiteStore{db: db, compression: compression}, nil
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context, key string) (*coverage.Report, error) {
	keyErr := validateKey(key)
	if keyErr != nil {
		return nil, keyErr
	}

	var payload []byte

	row := s.db.QueryRowContext(ctx, `SELECT payload FROM reports WHERE key = ?`, key)

	scanErr := row.Scan(&payload)
	if errors.Is(scanErr, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	if scanErr != nil {
		return nil, fmt.Errorf("sqlite store load: %w", mapSQLiteError(scanErr))
	}

	report, decodeErr := Decode(payload)
	if decodeErr != nil {
		return nil, fmt.Errorf("sqlite store load %s: %w", key, decodeErr)
	}

	return report, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, key string, report *coverage.Report) error {
	keyErr := validateKey(key)
	if keyErr != nil {
		return keyErr
	}

	payload, encodeErr := Encode(report, s.compression)
	if encodeErr != nil {
		return encodeErr
	}

	compressed := 0
	if IsCompressed(payload) {
		compressed = 1
	}

	_, execErr := s.db.ExecContext(ctx, upsertReport, key, payload, compressed, time.Now().UTC().Format(time.RFC3339))
	if execErr != nil {
		return fmt.Errorf("sqlite store save: %w", mapSQLiteError(execErr))
	}

	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// mapSQLiteError turns lock contention into [ErrRateLimited].
func mapSQLiteError(err error) error {
	var sqliteErr *sqlite.Error

	if !errors.As(err, &sqliteErr) {
		return err
	}

	switch sqliteErr.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return fmt.Errorf("%w: %s", ErrRateLimited, sqliteErr.Error())
	default:
		return err
	}
}
