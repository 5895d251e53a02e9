package main

import (
	"time"

	"github.com/guregu/null/v5"
)

// CheckResult is produced once per check invocation. It is immutable once
// assembled: downstream consumers (the result ingester and the alarm
// evaluator) receive copies over the task queue and never write it back.
type CheckResult struct {
	MonitorID string    `json:"monitor_id"`
	Url       string    `json:"url"`
	Timestamp time.Time `json:"timestamp"`

	Status MonitorStatus `json:"status"`
	// HttpCode is 0 when the transport never completed (DNS, TCP, TLS or
	// timeout failures).
	HttpCode      int    `json:"http_code"`
	TtfbMs        int64  `json:"ttfb_ms"`
	TotalMs       int64  `json:"total_ms"`
	RedirectCount int    `json:"redirect_count"`
	ResponseBytes int64  `json:"response_bytes"`
	ContentHash   string `json:"content_hash"`
	Error         string `json:"error"`

	// FailureStreak is copied from the post-update MonitorState.
	// PreviousStatus is the pre-update status; invalid means no prior state
	// existed (first check ever).
	FailureStreak  int                       `json:"failure_streak"`
	PreviousStatus null.Value[MonitorStatus] `json:"previous_status"`

	ProbeRegion string `json:"probe_region"`
	ProbeIp     string `json:"probe_ip"`
	CheckType   string `json:"check_type"`
	UserAgent   string `json:"user_agent"`

	// SslValid is a boolean-as-int (1 valid, 0 otherwise) and SslExpiry is
	// epoch milliseconds, 0 when not applicable or unavailable.
	SslValid  int   `json:"ssl_valid"`
	SslExpiry int64 `json:"ssl_expiry"`

	JsonData null.String `json:"json_data,omitzero"`
}

// AlarmTriggerHistoryRecord is an append-only row written once per fired
// notification event, used to answer "when did this alarm last fire for
// this event type" for cooldown and downtime-duration math.
type AlarmTriggerHistoryRecord struct {
	AlarmID           string          `json:"alarm_id"`
	MonitorID         string          `json:"monitor_id"`
	TriggerEvent      string          `json:"trigger_event"` // "down" or "up"
	TriggeredAt       time.Time       `json:"triggered_at"`
	NotificationsSent map[string]bool `json:"notifications_sent"`
	Metadata          map[string]any  `json:"metadata"`
}

const (
	TriggerEventDown = "down"
	TriggerEventUp   = "up"
)

// AlarmEvaluationTask is the message handed from the check pipeline to the
// alarm pipeline over the task queue. Streak and previous status ride along
// explicitly so the evaluator does not need to re-read monitor state.
type AlarmEvaluationTask struct {
	MonitorID           string                    `json:"monitor_id"`
	Result              CheckResult               `json:"result"`
	ConsecutiveFailures int                       `json:"consecutive_failures"`
	PreviousStatus      null.Value[MonitorStatus] `json:"previous_status"`
}
