package main

import "time"

// MonitorStatus is the observed state of a monitored endpoint.
// The numeric values are stored as-is and must stay stable.
type MonitorStatus int

const (
	StatusDown MonitorStatus = iota
	StatusUp
	StatusPending
	StatusMaintenance
)

func (s MonitorStatus) String() string {
	switch s {
	case StatusDown:
		return "down"
	case StatusUp:
		return "up"
	case StatusPending:
		return "pending"
	case StatusMaintenance:
		return "maintenance"
	default:
		return "unknown"
	}
}

// MonitorState is the durable per-monitor record read before and written
// after every check. ConsecutiveFailures resets to 0 the moment the status
// becomes up, is set to 1 on the first down observation after an up or
// unknown state, and increments by 1 on each consecutive down observation.
// LastChangeAt only moves when the status actually transitions.
type MonitorState struct {
	MonitorID           string        `db:"monitor_id" json:"monitor_id"`
	Status              MonitorStatus `db:"status" json:"status"`
	ConsecutiveFailures int           `db:"consecutive_failures" json:"consecutive_failures"`
	LastChangeAt        time.Time     `db:"last_change_at" json:"last_change_at"`
	LastCheckedAt       time.Time     `db:"last_checked_at" json:"last_checked_at"`
}
