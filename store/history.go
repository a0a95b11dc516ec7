package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// RunRecord is one row of run history: enough to audit what a run was
// given and how it went without keeping its full result set.
type RunRecord struct {
	ID          string
	SubmittedAt time.Time
	Periods     int
	NodeCount   int
	ErrorCount  int
	Overrides   []string
}

// PostgresHistory persists RunRecords, one row per run.
type PostgresHistory struct {
	db *sql.DB
}

// NewPostgresHistory dials the history database and returns a ready
// PostgresHistory.
func NewPostgresHistory(ctx context.Context, cfg DBConfig) (*PostgresHistory, error) {
	db, err := dial(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &PostgresHistory{db: db}, nil
}

// EnsureSchema creates the runs table if it does not already exist.
func (h *PostgresHistory) EnsureSchema(ctx context.Context) error {
	_, err := h.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id           TEXT PRIMARY KEY,
			submitted_at TIMESTAMPTZ NOT NULL,
			periods      INTEGER NOT NULL,
			node_count   INTEGER NOT NULL,
			error_count  INTEGER NOT NULL,
			overrides    TEXT[] NOT NULL DEFAULT '{}'
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure runs schema: %w", err)
	}
	return nil
}

// RecordRun inserts one run-history row. Will fail if a run with the same
// id already exists, since a run id is never reused.
func (h *PostgresHistory) RecordRun(ctx context.Context, r RunRecord) error {
	_, err := h.db.ExecContext(ctx, `
		INSERT INTO runs (id, submitted_at, periods, node_count, error_count, overrides)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, r.ID, r.SubmittedAt, r.Periods, r.NodeCount, r.ErrorCount, pq.Array(r.Overrides))
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.ID, err)
	}
	return nil
}

// GetRun retrieves a single run-history row by id.
func (h *PostgresHistory) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	row := h.db.QueryRowContext(ctx, `
		SELECT id, submitted_at, periods, node_count, error_count, overrides
		FROM runs WHERE id = $1
	`, id)

	var r RunRecord
	if err := row.Scan(&r.ID, &r.SubmittedAt, &r.Periods, &r.NodeCount, &r.ErrorCount, pq.Array(&r.Overrides)); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan run %s: %w", id, err)
	}
	return &r, nil
}

// Close releases the underlying database connection.
func (h *PostgresHistory) Close() error {
	return h.db.Close()
}
