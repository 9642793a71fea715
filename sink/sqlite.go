package sink

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const createSnapshotsTable = `
CREATE TABLE IF NOT EXISTS snapshots (
	key        TEXT PRIMARY KEY,
	payload    BLOB NOT NULL,
	created_at TEXT NOT NULL
);`

// SQLiteSink archives raw payloads in a single SQLite file. Useful for
// long-running capture sessions where thousands of per-tick files would be
// unwieldy.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink opens (or creates) the archive database at path.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite archive %s: %w", path, err)
	}
	if _, err := db.Exec(createSnapshotsTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing sqlite archive: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

// Persist inserts the payload under its artifact key. Re-persisting a key
// replaces the stored payload.
func (s *SQLiteSink) Persist(ctx context.Context, key string, payload []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (key, payload, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at`,
		key, payload, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("archiving snapshot %s: %w", key, err)
	}
	return nil
}

// Get reads back the payload stored under key.
func (s *SQLiteSink) Get(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM snapshots WHERE key = ?`, key).Scan(&payload)
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// Close releases the database handle.
func (s *SQLiteSink) Close() error { return s.db.Close() }
