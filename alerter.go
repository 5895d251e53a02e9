package main

import (
	"context"
	"errors"
)

const (
	PriorityUrgent = "urgent"
	PriorityNormal = "normal"
)

// NotificationPayload is the channel-independent rendering of an alarm
// event. Each channel adapter maps it onto its own wire format.
type NotificationPayload struct {
	Title    string         `json:"title"`
	Message  string         `json:"message"`
	Priority string         `json:"priority"`
	Metadata map[string]any `json:"metadata"`
}

// ErrChannelRateLimited is returned when a delivery endpoint has rate
// limited the channel and cannot accept additional notifications until the
// limit period has passed.
var ErrChannelRateLimited = errors.New("notification channel rate limited")

// ErrChannelDropped is returned when a notification cannot be delivered,
// for example when a webhook endpoint answers with a non-2xx response.
var ErrChannelDropped = errors.New("notification dropped")

// NotificationChannel is one delivery target. Implementations are
// independent failure domains: an error from Send must carry enough context
// to log, and must never depend on another channel's outcome.
type NotificationChannel interface {
	// Kind identifies the channel in per-channel outcome maps.
	Kind() string
	// Configured reports whether the channel has a destination. Unconfigured
	// channels are skipped by the dispatcher, not counted as failures.
	Configured() bool
	Send(ctx context.Context, payload NotificationPayload) error
}
