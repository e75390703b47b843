package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

var _ Store = (*Postgres)(nil)

const defaultPostgresDSN = "postgres://localhost/flockcore?sslmode=disable"

// Postgres persists key/value pairs to a PostgreSQL table.
type Postgres struct {
	db *sql.DB
	mu sync.Mutex
}

// NewPostgres opens a postgres-backed store using the provided DSN
// (falls back to a local default).
func NewPostgres(dsn string) (*Postgres, error) {
	if dsn == "" {
		dsn = defaultPostgresDSN
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS flockcore_kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create kv table: %w", err)
	}
	return &Postgres{db: db}, nil
}

// Get returns the value stored for key.
func (p *Postgres) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := p.db.QueryRowContext(ctx, `SELECT value FROM flockcore_kv WHERE key = $1`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select %s: %w", key, err)
	}
	return v, true, nil
}

// Set upserts the value for key.
func (p *Postgres) Set(ctx context.Context, key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.db.ExecContext(ctx,
		`INSERT INTO flockcore_kv(key,value) VALUES($1,$2) ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		key, value); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (p *Postgres) Delete(ctx context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.db.ExecContext(ctx, `DELETE FROM flockcore_kv WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Keys enumerates stored keys in lexical order.
func (p *Postgres) Keys(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT key FROM flockcore_kv ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("select keys: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (p *Postgres) Close() error { return p.db.Close() }
