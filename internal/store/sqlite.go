// Package store persists the engine's durable learning state. The blob
// interface is deliberately opaque: the conversation package owns the
// serialization format, the store only moves bytes.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dirigent/internal/logging"
	"dirigent/internal/types"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS learning_state (
	key        TEXT PRIMARY KEY,
	blob       BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
`

// blobKey is the single row key; the table is a one-slot kv store today but
// the schema leaves room for per-session rows later.
const blobKey = "learning"

// SQLiteStore is the durable BlobStore backed by an embedded database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (creating if needed) the database at path and ensures
// the schema exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("%w: create store directory: %v", types.ErrPersistence, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", types.ErrPersistence, path, err)
	}
	// A single writer avoids SQLITE_BUSY under concurrent flushes.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: create schema: %v", types.ErrPersistence, err)
	}

	logging.Store("opened learning store at %s", path)
	return &SQLiteStore{db: db, path: path}, nil
}

// Load returns the saved blob, or (nil, nil) when nothing has been saved yet.
func (s *SQLiteStore) Load() ([]byte, error) {
	var blob []byte
	err := s.db.QueryRow(
		"SELECT blob FROM learning_state WHERE key = ?", blobKey,
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		logging.StoreDebug("no saved learning state")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load: %v", types.ErrPersistence, err)
	}
	logging.StoreDebug("loaded %d bytes of learning state", len(blob))
	return blob, nil
}

// Save upserts the blob.
func (s *SQLiteStore) Save(data []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO learning_state (key, blob, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET blob = excluded.blob, updated_at = excluded.updated_at`,
		blobKey, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%w: save: %v", types.ErrPersistence, err)
	}
	logging.Store("saved %d bytes of learning state", len(data))
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
