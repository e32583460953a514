// Package pgsink implements persistence.RecordSink over sqlx+lib/pq,
// grounded on the teacher's internal/persistence/postgres/trades_repo.go
// query/timeout/error-wrapping shape.
package pgsink

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Sink is a RecordSink backed by a PostgreSQL table with (key text primary
// key, value bytea, created_at timestamptz default now()).
type Sink struct {
	db      *sqlx.DB
	table   string
	timeout time.Duration
}

// New creates a Sink writing into table. timeout bounds every call; 0
// defaults to 2s.
func New(db *sqlx.DB, table string, timeout time.Duration) *Sink {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Sink{db: db, table: table, timeout: timeout}
}

// Put upserts value under key.
func (s *Sink) Put(ctx context.Context, key string, value []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := fmt.Sprintf(`
		INSERT INTO %s (key, value, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, created_at = now()`, s.table)
	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("pgsink: put %q: %w", key, err)
	}
	return nil
}

// Get retrieves the record stored under key, if any.
func (s *Sink) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var value []byte
	query := fmt.Sprintf(`SELECT value FROM %s WHERE key = $1`, s.table)
	err := s.db.QueryRowxContext(ctx, query, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("pgsink: get %q: %w", key, err)
	}
	return value, true, nil
}
