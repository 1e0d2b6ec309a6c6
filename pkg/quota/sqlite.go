package quota

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteBackend persists quota records so the 24h window survives a
// process restart. Durable persistence is optional; the in-memory
// backend remains the default.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens (and if needed initializes) a sqlite database
// at the given path. Use ":memory:" for an ephemeral database.
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open quota database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS quota_records (
		caller_key   TEXT PRIMARY KEY,
		generated_at INTEGER NOT NULL,
		expires_at   INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_quota_expires ON quota_records(expires_at);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize quota schema: %w", err)
	}

	return &SQLiteBackend{db: db}, nil
}

// Get returns the record for a caller key, if present
func (b *SQLiteBackend) Get(callerKey string) (Record, bool, error) {
	row := b.db.QueryRow(
		`SELECT caller_key, generated_at, expires_at FROM quota_records WHERE caller_key = ?`,
		callerKey,
	)
	var rec Record
	var generatedAt, expiresAt int64
	if err := row.Scan(&rec.CallerKey, &generatedAt, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, false, nil
		}
		return Record{}, false, err
	}
	rec.GeneratedAt = time.Unix(generatedAt, 0)
	rec.ExpiresAt = time.Unix(expiresAt, 0)
	return rec, true, nil
}

// Put inserts or overwrites a record
func (b *SQLiteBackend) Put(rec Record) error {
	_, err := b.db.Exec(
		`INSERT INTO quota_records (caller_key, generated_at, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(caller_key) DO UPDATE SET generated_at = excluded.generated_at, expires_at = excluded.expires_at`,
		rec.CallerKey, rec.GeneratedAt.Unix(), rec.ExpiresAt.Unix(),
	)
	return err
}

// Delete removes a record
func (b *SQLiteBackend) Delete(callerKey string) error {
	_, err := b.db.Exec(`DELETE FROM quota_records WHERE caller_key = ?`, callerKey)
	return err
}

// Sweep removes all records expired as of now
func (b *SQLiteBackend) Sweep(now time.Time) (int, error) {
	res, err := b.db.Exec(`DELETE FROM quota_records WHERE expires_at < ?`, now.Unix())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(n), nil
}

// Close closes the underlying database
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
