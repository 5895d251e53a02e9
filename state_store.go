package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// MonitorStateStore is the durable cross-check record of a monitor's last
// known status. Lookup and upsert failures are hard errors: the caller must
// be able to tell "the site is down" apart from "we could not record the
// check".
type MonitorStateStore interface {
	// Get returns nil without error when no state exists yet (first check).
	Get(ctx context.Context, monitorID string) (*MonitorState, error)
	Upsert(ctx context.Context, state MonitorState) error
}

// DuckDBStateStore keeps one row per monitor. The upsert is atomic per
// monitor id with last-writer-wins semantics; streak accounting across a
// concurrent read+write pair for the same monitor is delegated to the
// scheduler's single-flight discipline.
type DuckDBStateStore struct {
	db *sql.DB
}

func NewDuckDBStateStore(db *sql.DB) *DuckDBStateStore {
	return &DuckDBStateStore{db: db}
}

func (s *DuckDBStateStore) Get(ctx context.Context, monitorID string) (*MonitorState, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting db connection: %w", err)
	}
	defer conn.Close()

	var state MonitorState
	err = conn.QueryRowContext(ctx, `
		SELECT monitor_id, status, consecutive_failures, last_change_at, last_checked_at
		FROM monitor_state
		WHERE monitor_id = ?
	`, monitorID).Scan(&state.MonitorID, &state.Status, &state.ConsecutiveFailures, &state.LastChangeAt, &state.LastCheckedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying monitor state: %w", err)
	}

	return &state, nil
}

func (s *DuckDBStateStore) Upsert(ctx context.Context, state MonitorState) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("getting db connection: %w", err)
	}
	defer conn.Close()

	_, err = conn.ExecContext(ctx, `
		INSERT INTO monitor_state (monitor_id, status, consecutive_failures, last_change_at, last_checked_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (monitor_id) DO UPDATE
		SET
			status = EXCLUDED.status,
			consecutive_failures = EXCLUDED.consecutive_failures,
			last_change_at = EXCLUDED.last_change_at,
			last_checked_at = EXCLUDED.last_checked_at
	`, state.MonitorID, int(state.Status), state.ConsecutiveFailures, state.LastChangeAt, state.LastCheckedAt)
	if err != nil {
		return fmt.Errorf("upserting monitor state: %w", err)
	}

	return nil
}
