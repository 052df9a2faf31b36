// Package sqlite implements the store interface for SQLite, suited to a single host running several wallet instances.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite" // register the pure go "sqlite" driver

	"github.com/tarancss/cryptowallet/lib/price/types"
	"github.com/tarancss/cryptowallet/lib/store"
)

const schema = `CREATE TABLE IF NOT EXISTS quote_cache (
	key TEXT PRIMARY KEY,
	data TEXT NOT NULL,
	source TEXT NOT NULL,
	captured_at INTEGER NOT NULL
)`

// SQLite implements a connection to a SQLite database file.
type SQLite struct {
	db *sql.DB
}

// New opens the database at dsn (a file path or ":memory:") and creates the cache table if missing.
func New(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open sqlite DB in %s: %w", dsn, err)
	}

	if err = db.Ping(); err != nil {
		db.Close()

		return nil, fmt.Errorf("cannot open sqlite DB in %s: %w", dsn, err)
	}

	// a single connection keeps ":memory:" databases alive and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		log.Warnf("Failed to set WAL mode: %v", err)
	}

	if _, err = db.Exec(schema); err != nil {
		db.Close()

		return nil, fmt.Errorf("creating quote_cache table: %w", err)
	}

	return &SQLite{db: db}, nil
}

// CloseSQLite closes the database. Must be called at termination time.
func (s *SQLite) CloseSQLite() error {
	return s.db.Close()
}

// LoadQuotes loads the snapshot stored under key.
func (s *SQLite) LoadQuotes(ctx context.Context, key string) (types.Snapshot, error) {
	r := store.Record{Key: key}

	err := s.db.QueryRowContext(ctx,
		`SELECT data, source, captured_at FROM quote_cache WHERE key = ?`, key).
		Scan(&r.Data, &r.Source, &r.CapturedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Snapshot{}, store.ErrDataNotFound
	}

	if err != nil {
		return types.Snapshot{}, fmt.Errorf("loading quotes %s: %w", key, err)
	}

	return r.Snapshot()
}

// SaveQuotes upserts the snapshot under key.
func (s *SQLite) SaveQuotes(ctx context.Context, key string, snap types.Snapshot) error {
	r, err := store.NewRecord(key, snap)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO quote_cache (key, data, source, captured_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET data = excluded.data, source = excluded.source, captured_at = excluded.captured_at`,
		r.Key, string(r.Data), r.Source, r.CapturedAt)
	if err != nil {
		return fmt.Errorf("saving quotes %s: %w", key, err)
	}

	return nil
}
