package storage

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS kv_store (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

// SQLiteBackend stores values in a single SQLite table. The schema is created
// on first use, so constructing the backend performs no I/O.
type SQLiteBackend struct {
	db *sql.DB

	mu    sync.Mutex
	ready bool
}

// NewSQLiteBackend wraps an open database handle.
func NewSQLiteBackend(db *sql.DB) *SQLiteBackend {
	return &SQLiteBackend{db: db}
}

// OpenSQLite opens (lazily) the SQLite database at path.
func OpenSQLite(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases coherent and serializes writers.
	db.SetMaxOpenConns(1)
	return NewSQLiteBackend(db), nil
}

// ensureSchema creates the table once. A failed attempt is retried on the next call.
func (b *SQLiteBackend) ensureSchema(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ready {
		return nil
	}
	if _, err := b.db.ExecContext(ctx, sqliteSchema); err != nil {
		return err
	}
	b.ready = true
	return nil
}

// Get retrieves a value from SQLite.
func (b *SQLiteBackend) Get(ctx context.Context, key string) (string, error) {
	if err := b.ensureSchema(ctx); err != nil {
		return "", &Error{Op: "get", Key: key, Cause: err}
	}

	var val string
	err := b.db.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = ?`, key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", &Error{Op: "get", Key: key, Cause: err}
	}
	return val, nil
}

// Set stores a value in SQLite.
func (b *SQLiteBackend) Set(ctx context.Context, key, value string) error {
	if err := b.ensureSchema(ctx); err != nil {
		return &Error{Op: "set", Key: key, Cause: err}
	}

	_, err := b.db.ExecContext(ctx, `INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return &Error{Op: "set", Key: key, Cause: err}
	}
	return nil
}

// Remove deletes a value from SQLite.
func (b *SQLiteBackend) Remove(ctx context.Context, key string) error {
	if err := b.ensureSchema(ctx); err != nil {
		return &Error{Op: "remove", Key: key, Cause: err}
	}

	if _, err := b.db.ExecContext(ctx, `DELETE FROM kv_store WHERE key = ?`, key); err != nil {
		return &Error{Op: "remove", Key: key, Cause: err}
	}
	return nil
}

// Close closes the database handle.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

// Verify SQLiteBackend implements Backend
var _ Backend = (*SQLiteBackend)(nil)
