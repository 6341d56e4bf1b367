// Package postgres provides a Postgres-backed song archive. Snapshots are
// stored as JSONB documents keyed by name.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"songstore/pkg/domain"
)

var _ domain.Archive = (*Archive)(nil)

const (
	defaultDriver = "pgx"
	// DefaultDSN matches the OpenArchive default when no DSN is configured.
	DefaultDSN = "postgres://localhost/songstore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Archive persists song records to a single Postgres table.
type Archive struct {
	db  *sql.DB
	now func() time.Time
}

// NewArchive opens the database at dsn (DefaultDSN when empty), verifies the
// connection and ensures the songs table exists.
func NewArchive(ctx context.Context, dsn string) (*Archive, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureSongsTable(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Archive{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func ensureSongsTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS songs (
		name TEXT PRIMARY KEY,
		payload JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure songs table: %w", err)
	}
	return nil
}

// Save upserts rec under name inside a transaction.
func (a *Archive) Save(ctx context.Context, name string, rec domain.SongRecord) error {
	if err := domain.ValidateArchiveName(name); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, `INSERT INTO songs(name,payload,updated_at) VALUES($1,$2,$3) ON CONFLICT(name) DO UPDATE SET payload=EXCLUDED.payload, updated_at=EXCLUDED.updated_at`,
		name, string(data), a.now()); err != nil {
		return fmt.Errorf("upsert %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// Load returns the record stored under name.
func (a *Archive) Load(ctx context.Context, name string) (domain.SongRecord, error) {
	var payload []byte
	err := a.db.QueryRowContext(ctx, `SELECT payload FROM songs WHERE name = $1`, name).Scan(&payload)
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
			return nil, fmt.Errorf("scan name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate names: %w", err)
	}
	return names, nil
}

// Delete removes name and reports whether a row was deleted.
func (a *Archive) Delete(ctx context.Context, name string) (bool, error) {
	res, err := a.db.ExecContext(ctx, `DELETE FROM songs WHERE name = $1`, name)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Close releases the database handle.
func (a *Archive) Close() error { return a.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (a *Archive) DB() *sql.DB { return a.db }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
