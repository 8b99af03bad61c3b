// Package sqlite implements the datastore backend on a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS datastore_files (
	container   TEXT NOT NULL,
	name        TEXT NOT NULL,
	content     TEXT NOT NULL DEFAULT '',
	updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (container, name)
);
`

// Provider stores container files as rows keyed by (container, name).
type Provider struct {
	db *sql.DB
}

// New opens (and creates when missing) the database at path.
func New(path string) (*Provider, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	// Single connection: SQLite serializes writers anyway and ":memory:" is
	// per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return &Provider{db: db}, nil
}

// Initialize creates the schema.
func (p *Provider) Initialize(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (p *Provider) Close() error {
	return p.db.Close()
}

// Ping checks the database is reachable.
func (p *Provider) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Provider) Read(ctx context.Context, container, name string) (string, bool, error) {
	var content string
	err := p.db.QueryRowContext(ctx,
		`SELECT content FROM datastore_files WHERE container = ? AND name = ?`, container, name,
	).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return content, true, nil
}

func (p *Provider) Write(ctx context.Context, container, name, data string) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO datastore_files (container, name, content, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(container, name) DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at`,
		container, name, data, time.Now().UTC(),
	)
	return err
}

func (p *Provider) WriteIfAbsent(ctx context.Context, container, name, data string) (bool, error) {
	res, err := p.db.ExecContext(ctx,
		`INSERT INTO datastore_files (container, name, content, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(container, name) DO NOTHING`,
		container, name, data, time.Now().UTC(),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (p *Provider) Append(ctx context.Context, container, name, data string) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO datastore_files (container, name, content, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(container, name) DO UPDATE SET content = datastore_files.content || excluded.content, updated_at = excluded.updated_at`,
		container, name, data, time.Now().UTC(),
	)
	return err
}

func (p *Provider) Remove(ctx context.Context, container, name string) error {
	_, err := p.db.ExecContext(ctx,
		`DELETE FROM datastore_files WHERE container = ? AND name = ?`, container, name,
	)
	return err
}

func (p *Provider) List(ctx context.Context, container string) ([]string, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT name FROM datastore_files WHERE container = ? ORDER BY name`, container,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
