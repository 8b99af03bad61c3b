// Package postgres implements the datastore backend on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS datastore_files (
	container   TEXT NOT NULL,
	name        TEXT NOT NULL,
	content     TEXT NOT NULL DEFAULT '',
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (container, name)
)`

// Config holds the connection settings.
type Config struct {
	DSN      string `toml:"dsn" yaml:"dsn"`
	MaxConns int32  `toml:"max_conns" yaml:"max_conns"`
}

// Provider stores container files as rows of datastore_files.
type Provider struct {
	cfg  Config
	pool *pgxpool.Pool
}

// New creates a provider. The pool is opened lazily by Initialize so that a
// configured but unreachable database fails at start-up, not at build time.
func New(cfg Config) (*Provider, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres datastore dsn is required")
	}
	return &Provider{cfg: cfg}, nil
}

// NewWithPool wraps an existing pool.
func NewWithPool(pool *pgxpool.Pool) *Provider {
	return &Provider{pool: pool}
}

// Initialize connects and creates the schema.
func (p *Provider) Initialize(ctx context.Context) error {
	if p.pool == nil {
		poolCfg, err := pgxpool.ParseConfig(p.cfg.DSN)
		if err != nil {
			return fmt.Errorf("parse postgres dsn: %w", err)
		}
		if p.cfg.MaxConns > 0 {
			poolCfg.MaxConns = p.cfg.MaxConns
		}
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		p.pool = pool
	}
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	return nil
}

// Close releases the pool.
func (p *Provider) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

// Ping checks the database is reachable.
func (p *Provider) Ping(ctx context.Context) error {
	if p.pool == nil {
		return fmt.Errorf("postgres datastore not initialized")
	}
	return p.pool.Ping(ctx)
}

func (p *Provider) Read(ctx context.Context, container, name string) (string, bool, error) {
	var content string
	err := p.pool.QueryRow(ctx,
		`SELECT content FROM datastore_files WHERE container = $1 AND name = $2`, container, name,
	).Scan(&content)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return content, true, nil
}

func (p *Provider) Write(ctx context.Context, container, name, data string) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO datastore_files (container, name, content) VALUES ($1, $2, $3)
		 ON CONFLICT (container, name) DO UPDATE SET content = EXCLUDED.content, updated_at = now()`,
		container, name, data,
	)
	return err
}

func (p *Provider) WriteIfAbsent(ctx context.Context, container, name, data string) (bool, error) {
	tag, err := p.pool.Exec(ctx,
		`INSERT INTO datastore_files (container, name, content) VALUES ($1, $2, $3)
		 ON CONFLICT (container, name) DO NOTHING`,
		container, name, data,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (p *Provider) Append(ctx context.Context, container, name, data string) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO datastore_files (container, name, content) VALUES ($1, $2, $3)
		 ON CONFLICT (container, name) DO UPDATE SET content = datastore_files.content || EXCLUDED.content, updated_at = now()`,
		container, name, data,
	)
	return err
}

func (p *Provider) Remove(ctx context.Context, container, name string) error {
	_, err := p.pool.Exec(ctx,
		`DELETE FROM datastore_files WHERE container = $1 AND name = $2`, container, name,
	)
	return err
}

func (p *Provider) List(ctx context.Context, container string) ([]string, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT name FROM datastore_files WHERE container = $1 ORDER BY name`, container,
	)
	if err != nil {
		return nil, err
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}
