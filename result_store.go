package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/guregu/null/v5"
)

// CheckResultStore is the time-series side of the pipeline: one append-only
// row per check invocation. Writes are best-effort from the check's point of
// view; the ingest worker owns them.
type CheckResultStore struct {
	db *sql.DB
}

func NewCheckResultStore(db *sql.DB) *CheckResultStore {
	return &CheckResultStore{db: db}
}

func (s *CheckResultStore) Insert(ctx context.Context, result CheckResult) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("getting db connection: %w", err)
	}
	defer conn.Close()

	var previousStatus any
	if result.PreviousStatus.Valid {
		previousStatus = int(result.PreviousStatus.V)
	}
	var jsonData any
	if result.JsonData.Valid {
		jsonData = result.JsonData.String
	}

	_, err = conn.ExecContext(ctx, `
		INSERT INTO check_results
			(
				monitor_id,
				url,
				status,
				http_code,
				ttfb_ms,
				total_ms,
				redirect_count,
				response_bytes,
				content_hash,
				error,
				failure_streak,
				previous_status,
				probe_region,
				probe_ip,
				check_type,
				user_agent,
				ssl_valid,
				ssl_expiry,
				json_data,
				created_at
			)
		VALUES
			(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		result.MonitorID,
		result.Url,
		int(result.Status),
		result.HttpCode,
		result.TtfbMs,
		result.TotalMs,
		result.RedirectCount,
		result.ResponseBytes,
		result.ContentHash,
		result.Error,
		result.FailureStreak,
		previousStatus,
		result.ProbeRegion,
		result.ProbeIp,
		result.CheckType,
		result.UserAgent,
		result.SslValid,
		result.SslExpiry,
		jsonData,
		result.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("inserting check result: %w", err)
	}

	return nil
}

// RecentByMonitor returns the newest rows for a monitor, newest first.
func (s *CheckResultStore) RecentByMonitor(ctx context.Context, monitorID string, limit int) ([]CheckResult, error) {
	if limit <= 0 {
		limit = 50
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting db connection: %w", err)
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, `
		SELECT
			monitor_id, url, status, http_code, ttfb_ms, total_ms, redirect_count,
			response_bytes, content_hash, error, failure_streak, previous_status,
			probe_region, probe_ip, check_type, user_agent, ssl_valid, ssl_expiry,
			json_data, created_at
		FROM check_results
		WHERE monitor_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, monitorID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying check results: %w", err)
	}
	defer rows.Close()

	var results []CheckResult
	for rows.Next() {
		var result CheckResult
		var previousStatus sql.NullInt64
		var jsonData sql.NullString
		if err := rows.Scan(
			&result.MonitorID, &result.Url, &result.Status, &result.HttpCode,
			&result.TtfbMs, &result.TotalMs, &result.RedirectCount,
			&result.ResponseBytes, &result.ContentHash, &result.Error,
			&result.FailureStreak, &previousStatus, &result.ProbeRegion,
			&result.ProbeIp, &result.CheckType, &result.UserAgent,
			&result.SslValid, &result.SslExpiry, &jsonData, &result.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scanning check result: %w", err)
		}
		if previousStatus.Valid {
			result.PreviousStatus = null.NewValue(MonitorStatus(previousStatus.Int64), true)
		}
		if jsonData.Valid {
			result.JsonData = null.StringFrom(jsonData.String)
		}
		results = append(results, result)
	}

	return results, nil
}

// Prune removes rows older than the retention horizon and returns how many
// were deleted.
func (s *CheckResultStore) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("getting db connection: %w", err)
	}
	defer conn.Close()

	execResult, err := conn.ExecContext(ctx, `DELETE FROM check_results WHERE created_at < ?`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("pruning check results: %w", err)
	}

	deleted, err := execResult.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return deleted, nil
}
