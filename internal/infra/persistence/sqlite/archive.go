// Package sqlite provides a SQLite-backed song archive using the pure Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"songstore/pkg/domain"
)

var _ domain.Archive = (*Archive)(nil)

// DefaultPath is used when NewArchive receives an empty path.
const DefaultPath = "songstore.db"

// Archive stores song records as JSON blobs in a single SQLite table.
type Archive struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// NewArchive opens (creating if needed) the database at path.
func NewArchive(path string) (*Archive, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS songs (
		name TEXT PRIMARY KEY,
		payload BLOB NOT NULL,
		updated_at TEXT NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create songs table: %w", err)
	}
	return &Archive{db: db, path: path, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Save upserts rec under name.
func (a *Archive) Save(ctx context.Context, name string, rec domain.SongRecord) error {
	if err := domain.ValidateArchiveName(name); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if _, err := a.db.ExecContext(ctx, `INSERT INTO songs(name,payload,updated_at) VALUES(?,?,?) ON CONFLICT(name) DO UPDATE SET payload=excluded.payload, updated_at=excluded.updated_at`,
		name, data, a.now().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("upsert %s: %w", name, err)
	}
	return nil
}

// Load returns the record stored under name.
func (a *Archive) Load(ctx context.Context, name string) (domain.SongRecord, error) {
	var payload []byte
	err := a.db.QueryRowContext(ctx, `SELECT payload FROM songs WHERE name = ?`, name).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SongRecord{}, domain.ErrNotFound{Entity: domain.EntitySong, ID: name}
	}
	if err != nil {
		return domain.SongRecord{}, fmt.Errorf("select %s: %w", name, err)
	}
	var rec domain.SongRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return domain.SongRecord{}, fmt.Errorf("decode %s: %w", name, err)
	}
	return rec, nil
}

// List returns the archived names in ascending order.
func (a *Archive) List(ctx context.Context) ([]string, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT name FROM songs ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("select names: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Delete removes name and reports whether it existed.
func (a *Archive) Delete(ctx context.Context, name string) (bool, error) {
	res, err := a.db.ExecContext(ctx, `DELETE FROM songs WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpdatedAt returns when name was last saved.
func (a *Archive) UpdatedAt(ctx context.Context, name string) (time.Time, error) {
	var raw string
	err := a.db.QueryRowContext(ctx, `SELECT updated_at FROM songs WHERE name = ?`, name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, domain.ErrNotFound{Entity: domain.EntitySong, ID: name}
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("select %s: %w", name, err)
	}
	return time.Parse(time.RFC3339Nano, raw)
}

// Close releases the database handle.
func (a *Archive) Close() error { return a.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (a *Archive) DB() *sql.DB { return a.db }

// Path returns the configured database path.
func (a *Archive) Path() string { return a.path }
