// Package postgres implements the store interface for PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq" //nolint:gci // load the postgres driver that is used by the system

	"github.com/tarancss/cryptowallet/lib/price/types"
	"github.com/tarancss/cryptowallet/lib/store"
)

const schema = `CREATE TABLE IF NOT EXISTS quote_cache (
	key TEXT PRIMARY KEY,
	data TEXT NOT NULL,
	source TEXT NOT NULL,
	captured_at BIGINT NOT NULL
)`

// Postgres implements a connection to a PostgreSQL database.
type Postgres struct {
	db *sql.DB
}

// New returns a postgres client connection to the specified database in 'connection' and creates the cache table if
// missing.
func New(connection string) (*Postgres, error) {
	db, err := sql.Open("postgres", connection)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to DB in %s: %w", connection, err)
	}

	if _, err = db.Exec(schema); err != nil {
		db.Close()

		return nil, fmt.Errorf("creating quote_cache table: %w", err)
	}

	return &Postgres{db: db}, nil
}

// ClosePostgres will close any database connection. Must be called at termination time.
func (p *Postgres) ClosePostgres() error {
	return p.db.Close()
}

// LoadQuotes loads the snapshot stored under key.
func (p *Postgres) LoadQuotes(ctx context.Context, key string) (types.Snapshot, error) {
	r := store.Record{Key: key}

	err := p.db.QueryRowContext(ctx,
		`SELECT data, source, captured_at FROM quote_cache WHERE key = $1`, key).
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
func (p *Postgres) SaveQuotes(ctx context.Context, key string, s types.Snapshot) error {
	r, err := store.NewRecord(key, s)
	if err != nil {
		return err
	}

	_, err = p.db.ExecContext(ctx,
		`INSERT INTO quote_cache (key, data, source, captured_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, source = EXCLUDED.source, captured_at = EXCLUDED.captured_at`,
		r.Key, string(r.Data), r.Source, r.CapturedAt)
	if err != nil {
		return fmt.Errorf("saving quotes %s: %w", key, err)
	}

	return nil
}
