// Package sqlite implements kv.Store on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/datagata/gata/pkg/kv"
)

// Store is a kv.Store backed by a single SQLite table.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var (
	_ kv.Store   = (*Store)(nil)
	_ kv.Sweeper = (*Store)(nil)
)

const createKVTable = `
CREATE TABLE IF NOT EXISTS kv_entries (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	key TEXT NOT NULL UNIQUE,
	value BLOB NOT NULL,
	expires_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_kv_expires ON kv_entries(expires_at);
`

// New opens (or creates) the database at dbPath and runs auto-migration.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open kv db: %w", err)
	}
	// One writer keeps SQLite from returning SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure kv db: %w", err)
	}
	if _, err := db.Exec(createKVTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate kv db: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) nowMs() int64 {
	return s.now().UnixMilli()
}

// Get returns the live value stored at key.
func (s *Store) Get(ctx context.Context, key kv.Key) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv_entries WHERE key = ? AND (expires_at IS NULL OR expires_at > ?)`,
		kv.Encode(key), s.nowMs(),
	).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("kv get: %w", err)
	}
	return value, true, nil
}

// Set upserts value at key. An existing key keeps its scan position.
func (s *Store) Set(ctx context.Context, key kv.Key, value []byte, ttl time.Duration) error {
	var expires sql.NullInt64
	if exp := kv.ExpiryFor(s.now(), ttl); !exp.IsZero() {
		expires = sql.NullInt64{Int64: exp.UnixMilli(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_entries (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		kv.Encode(key), value, expires,
	)
	if err != nil {
		return fmt.Errorf("kv set: %w", err)
	}
	return nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key kv.Key) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = ?`, kv.Encode(key)); err != nil {
		return fmt.Errorf("kv delete: %w", err)
	}
	return nil
}

// List returns live entries under prefix in first-write order.
func (s *Store) List(ctx context.Context, prefix kv.Key) ([]kv.Entry, error) {
	query := `SELECT key, value, expires_at FROM kv_entries WHERE (expires_at IS NULL OR expires_at > ?)`
	args := []any{s.nowMs()}
	if len(prefix) > 0 {
		// Escaped parts never contain GLOB metacharacters.
		query += ` AND key GLOB ?`
		args = append(args, kv.Encode(prefix)+"/*")
	}
	query += ` ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("kv list: %w", err)
	}
	defer rows.Close()

	var entries []kv.Entry
	for rows.Next() {
		var enc string
		var value []byte
		var expires sql.NullInt64
		if err := rows.Scan(&enc, &value, &expires); err != nil {
			return nil, fmt.Errorf("kv list scan: %w", err)
		}
		key, err := kv.Decode(enc)
		if err != nil {
			return nil, fmt.Errorf("kv list decode %q: %w", enc, err)
		}
		e := kv.Entry{Key: key, Value: value}
		if expires.Valid {
			e.ExpiresAt = time.UnixMilli(expires.Int64).UTC()
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Sweep deletes expired rows.
func (s *Store) Sweep(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM kv_entries WHERE expires_at IS NOT NULL AND expires_at <= ?`, s.nowMs())
	if err != nil {
		return 0, fmt.Errorf("kv sweep: %w", err)
	}
	return res.RowsAffected()
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
