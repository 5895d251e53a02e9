package main

import (
	"context"
	"database/sql"
	"fmt"
)

// Migrate applies the DuckDB schema. With force set, existing tables are
// replaced (used by tests); otherwise creation is idempotent.
func Migrate(db *sql.DB, ctx context.Context, force bool) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("getting db connection: %w", err)
	}
	defer conn.Close()

	create := "CREATE TABLE IF NOT EXISTS"
	if force {
		create = "CREATE OR REPLACE TABLE"
	}

	statements := []string{
		create + ` monitor_state (
			monitor_id TEXT PRIMARY KEY,
			status SMALLINT NOT NULL,
			consecutive_failures INTEGER NOT NULL,
			last_change_at TIMESTAMP NOT NULL,
			last_checked_at TIMESTAMP NOT NULL
		)`,
		create + ` check_results (
			monitor_id TEXT NOT NULL,
			url TEXT NOT NULL,
			status SMALLINT NOT NULL,
			http_code INTEGER NOT NULL,
			ttfb_ms BIGINT NOT NULL,
			total_ms BIGINT NOT NULL,
			redirect_count INTEGER NOT NULL,
			response_bytes BIGINT NOT NULL,
			content_hash TEXT NOT NULL,
			error TEXT NOT NULL,
			failure_streak INTEGER NOT NULL,
			previous_status SMALLINT,
			probe_region TEXT NOT NULL,
			probe_ip TEXT NOT NULL,
			check_type TEXT NOT NULL,
			user_agent TEXT NOT NULL,
			ssl_valid SMALLINT NOT NULL,
			ssl_expiry BIGINT NOT NULL,
			json_data TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
		create + ` alarm_trigger_history (
			alarm_id TEXT NOT NULL,
			monitor_id TEXT NOT NULL,
			trigger_event TEXT NOT NULL,
			triggered_at TIMESTAMP NOT NULL,
			notifications_sent TEXT NOT NULL,
			metadata TEXT NOT NULL
		)`,
	}

	for _, statement := range statements {
		if _, err := conn.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("applying migration: %w", err)
		}
	}

	return nil
}
