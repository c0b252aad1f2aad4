package probe

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/TheBearodactyl/apiodactyl-v2/pkg/config"
)

// PostgresProber checks a PostgreSQL server via database/sql
type PostgresProber struct {
	db         *sql.DB
	smokeTable string
	target     string
}

// NewPostgres creates a prober for a postgres:// or postgresql:// DSN.
// sql.Open validates the DSN without dialing, so construction succeeds
// even while the server is still coming up.
func NewPostgres(dsn, smokeTable string) (*PostgresProber, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres target: %w", err)
	}

	// One connection is all a sequential gate ever needs
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &PostgresProber{
		db:         db,
		smokeTable: smokeTable,
		target:     config.Redact(dsn),
	}, nil
}

// Ping performs one connectivity+authentication round trip
func (p *PostgresProber) Ping(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	return nil
}

// Smoke inserts a marker row into the scratch table and deletes it again.
// The table name is validated against identifier characters at
// construction time, so the Sprintf here cannot inject.
func (p *PostgresProber) Smoke(ctx context.Context) error {
	schema := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id SERIAL PRIMARY KEY,
		ts TIMESTAMPTZ NOT NULL,
		msg TEXT NOT NULL
	)`, p.smokeTable)
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("smoke schema: %w", err)
	}

	var id int64
	insert := fmt.Sprintf("INSERT INTO %s (ts, msg) VALUES ($1, $2) RETURNING id", p.smokeTable)
	err := p.db.QueryRowContext(ctx, insert, time.Now().UTC(), "readiness smoke test").Scan(&id)
	if err != nil {
		return fmt.Errorf("smoke insert: %w", err)
	}

	del := fmt.Sprintf("DELETE FROM %s WHERE id = $1", p.smokeTable)
	if _, err := p.db.ExecContext(ctx, del, id); err != nil {
		// The marker row stays behind; tolerated, same as a failed probe
		return fmt.Errorf("smoke cleanup: %w", err)
	}
	return nil
}

// Target returns the endpoint with credentials redacted
func (p *PostgresProber) Target() string {
	return p.target
}

// Close releases the connection pool
func (p *PostgresProber) Close(ctx context.Context) error {
	return p.db.Close()
}
