package probe

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteProber checks a SQLite database file. Mostly useful for local
// development and for exercising the gate without a server, but the
// smoke test is the real thing: a write+delete against a scratch table.
type SQLiteProber struct {
	db         *sql.DB
	smokeTable string
	path       string
}

// NewSQLite creates a prober for a database file path
func NewSQLite(path, smokeTable string) (*SQLiteProber, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite database path is required")
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("invalid sqlite target: %w", err)
	}
	db.SetMaxOpenConns(1)

	return &SQLiteProber{
		db:         db,
		smokeTable: smokeTable,
		path:       path,
	}, nil
}

// Ping runs a trivial query. Opening a SQLite handle always succeeds, so
// reachability only means anything once a statement executes.
func (p *SQLiteProber) Ping(ctx context.Context) error {
	var one int
	if err := p.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("sqlite ping: %w", err)
	}
	return nil
}

// Smoke inserts a marker row into the scratch table and deletes it again
func (p *SQLiteProber) Smoke(ctx context.Context) error {
	schema := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts TIMESTAMP NOT NULL,
		msg TEXT NOT NULL
	)`, p.smokeTable)
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("smoke schema: %w", err)
	}

	insert := fmt.Sprintf("INSERT INTO %s (ts, msg) VALUES (?, ?)", p.smokeTable)
	res, err := p.db.ExecContext(ctx, insert, time.Now().UTC(), "readiness smoke test")
	if err != nil {
		return fmt.Errorf("smoke insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("smoke insert id: %w", err)
	}

	del := fmt.Sprintf("DELETE FROM %s WHERE id = ?", p.smokeTable)
	if _, err := p.db.ExecContext(ctx, del, id); err != nil {
		return fmt.Errorf("smoke cleanup: %w", err)
	}
	return nil
}

// Target returns the database file path (no credentials to redact)
func (p *SQLiteProber) Target() string {
	return p.path
}

// Close releases the database handle
func (p *SQLiteProber) Close(ctx context.Context) error {
	return p.db.Close()
}
