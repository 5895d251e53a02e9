package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// TriggerHistoryStore is the append-only audit log of fired notifications.
// Rows are never mutated; the only read pattern is "most recent trigger of
// this event type for this alarm and monitor", which drives cooldown and
// downtime-duration math.
type TriggerHistoryStore interface {
	Append(ctx context.Context, record AlarmTriggerHistoryRecord) error
	// LastTrigger returns nil without error when the alarm has never fired
	// for the event type.
	LastTrigger(ctx context.Context, alarmID string, monitorID string, triggerEvent string) (*AlarmTriggerHistoryRecord, error)
}

type DuckDBTriggerHistoryStore struct {
	db *sql.DB
}

func NewDuckDBTriggerHistoryStore(db *sql.DB) *DuckDBTriggerHistoryStore {
	return &DuckDBTriggerHistoryStore{db: db}
}

func (s *DuckDBTriggerHistoryStore) Append(ctx context.Context, record AlarmTriggerHistoryRecord) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("getting db connection: %w", err)
	}
	defer conn.Close()

	notificationsSent, err := json.Marshal(record.NotificationsSent)
	if err != nil {
		return fmt.Errorf("marshaling notifications sent: %w", err)
	}
	metadata, err := json.Marshal(record.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling trigger metadata: %w", err)
	}

	_, err = conn.ExecContext(ctx, `
		INSERT INTO alarm_trigger_history
			(alarm_id, monitor_id, trigger_event, triggered_at, notifications_sent, metadata)
		VALUES
			(?, ?, ?, ?, ?, ?)
	`, record.AlarmID, record.MonitorID, record.TriggerEvent, record.TriggeredAt, string(notificationsSent), string(metadata))
	if err != nil {
		return fmt.Errorf("inserting trigger history: %w", err)
	}

	return nil
}

func (s *DuckDBTriggerHistoryStore) LastTrigger(ctx context.Context, alarmID string, monitorID string, triggerEvent string) (*AlarmTriggerHistoryRecord, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting db connection: %w", err)
	}
	defer conn.Close()

	var record AlarmTriggerHistoryRecord
	var notificationsSent string
	var metadata string
	err = conn.QueryRowContext(ctx, `
		SELECT alarm_id, monitor_id, trigger_event, triggered_at, notifications_sent, metadata
		FROM alarm_trigger_history
		WHERE alarm_id = ? AND monitor_id = ? AND trigger_event = ?
		ORDER BY triggered_at DESC
		LIMIT 1
	`, alarmID, monitorID, triggerEvent).Scan(
		&record.AlarmID, &record.MonitorID, &record.TriggerEvent,
		&record.TriggeredAt, &notificationsSent, &metadata,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying trigger history: %w", err)
	}

	if err := json.Unmarshal([]byte(notificationsSent), &record.NotificationsSent); err != nil {
		return nil, fmt.Errorf("unmarshaling notifications sent: %w", err)
	}
	if err := json.Unmarshal([]byte(metadata), &record.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshaling trigger metadata: %w", err)
	}

	return &record, nil
}
