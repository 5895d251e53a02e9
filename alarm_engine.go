package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/guregu/null/v5"
)

// AlarmEngine evaluates alarms against one check result and dispatches
// notifications. It never propagates errors to the caller: a broken alarm,
// store or channel is logged and contained so alarm evaluation can never
// break the check pipeline. Under at-least-once delivery of the same check
// result this is idempotent-safe in the common case: the down path is gated
// by cooldown, and a replayed recovery no longer sees previousStatus down
// because monitor state was already advanced before the engine ran. That is
// a best-effort guarantee, not exactly-once.
type AlarmEngine struct {
	alarms           AlarmStore
	history          TriggerHistoryStore
	dispatcher       *NotificationDispatcher
	emailSettings    EmailSettings
	dashboardBaseUrl string
	httpClient       *http.Client
	now              func() time.Time
}

type AlarmEngineOptions struct {
	Alarms           AlarmStore
	History          TriggerHistoryStore
	Dispatcher       *NotificationDispatcher
	EmailSettings    EmailSettings
	DashboardBaseUrl string
	HttpClient       *http.Client
	Now              func() time.Time
}

func NewAlarmEngine(options AlarmEngineOptions) (*AlarmEngine, error) {
	if options.Alarms == nil {
		return nil, fmt.Errorf("alarm engine requires an alarm store")
	}
	if options.History == nil {
		return nil, fmt.Errorf("alarm engine requires a trigger history store")
	}
	if options.Dispatcher == nil {
		options.Dispatcher = NewNotificationDispatcher()
	}
	if options.HttpClient == nil {
		options.HttpClient = http.DefaultClient
	}
	if options.Now == nil {
		options.Now = time.Now
	}
	return &AlarmEngine{
		alarms:           options.Alarms,
		history:          options.History,
		dispatcher:       options.Dispatcher,
		emailSettings:    options.EmailSettings,
		dashboardBaseUrl: options.DashboardBaseUrl,
		httpClient:       options.HttpClient,
		now:              options.Now,
	}, nil
}

// CheckAndTriggerAlarms evaluates every enabled alarm scoped to the monitor
// against the given check result.
func (e *AlarmEngine) CheckAndTriggerAlarms(ctx context.Context, monitorID string, result CheckResult, consecutiveFailures int, previousStatus null.Value[MonitorStatus]) {
	span := sentry.StartSpan(ctx, "function", sentry.WithDescription("Check And Trigger Alarms"))
	ctx = span.Context()
	defer span.Finish()

	alarms, err := e.alarms.ListEnabledForMonitor(ctx, monitorID)
	if err != nil {
		slog.ErrorContext(ctx, "listing alarms for monitor",
			slog.String("monitor_id", monitorID),
			slog.String("error", err.Error()))
		return
	}

	for _, alarm := range alarms {
		e.evaluateAlarm(ctx, alarm, monitorID, result, consecutiveFailures, previousStatus)
	}
}

// evaluateAlarm contains all failure modes of a single alarm so the
// remaining alarms for the monitor still get evaluated.
func (e *AlarmEngine) evaluateAlarm(ctx context.Context, alarm Alarm, monitorID string, result CheckResult, consecutiveFailures int, previousStatus null.Value[MonitorStatus]) {
	defer func() {
		if recovered := recover(); recovered != nil {
			if hub := sentry.GetHubFromContext(ctx); hub != nil {
				hub.CaptureException(fmt.Errorf("alarm evaluation panicked: %v", recovered))
			}
			slog.ErrorContext(ctx, "alarm evaluation panicked",
				slog.String("alarm_id", alarm.ID),
				slog.Any("panic", recovered))
		}
	}()

	switch {
	case result.Status == StatusDown:
		e.evaluateDownEvent(ctx, alarm, monitorID, result, consecutiveFailures)
	case result.Status == StatusUp && previousStatus.Valid && previousStatus.V == StatusDown:
		e.evaluateRecoveryEvent(ctx, alarm, monitorID, result)
	}
}

func (e *AlarmEngine) evaluateDownEvent(ctx context.Context, alarm Alarm, monitorID string, result CheckResult, consecutiveFailures int) {
	conditions := alarm.ResolvedTriggerConditions()

	// Fires exactly once per outage, on the check whose streak reaches the
	// threshold. The streak grows by one per failed check, so a sustained
	// outage crosses the threshold once and never re-fires, even after the
	// cooldown has expired; cooldown only matters when the monitor flaps
	// back down inside the window.
	if consecutiveFailures != conditions.ConsecutiveFailures {
		return
	}

	lastDown, err := e.history.LastTrigger(ctx, alarm.ID, monitorID, TriggerEventDown)
	if err != nil {
		slog.ErrorContext(ctx, "looking up last down trigger",
			slog.String("alarm_id", alarm.ID),
			slog.String("error", err.Error()))
		return
	}

	now := e.now()
	if lastDown != nil {
		cooldownUntil := lastDown.TriggeredAt.Add(time.Duration(conditions.CooldownMinutes) * time.Minute)
		if now.Before(cooldownUntil) {
			slog.InfoContext(ctx, "suppressing down alarm inside cooldown",
				slog.String("alarm_id", alarm.ID),
				slog.String("monitor_id", monitorID),
				slog.Time("cooldown_until", cooldownUntil))
			return
		}
	}

	// Anchored to the check that crossed the threshold; the earlier failed
	// checks were below the alerting threshold.
	downSince := result.Timestamp

	metadata := map[string]any{
		"url":              result.Url,
		"http_status":      result.HttpCode,
		"error":            result.Error,
		"down_since":       humanizeRelativeTime(now.Sub(downSince)),
		"failure_streak":   consecutiveFailures,
		"response_time_ms": result.TotalMs,
		"probe_region":     result.ProbeRegion,
	}
	if e.dashboardBaseUrl != "" {
		metadata["dashboard_url"] = fmt.Sprintf("%s/monitors/%s", e.dashboardBaseUrl, monitorID)
	}

	payload := NotificationPayload{
		Title:    fmt.Sprintf("Monitor down: %s", alarm.Name),
		Message:  e.renderDownMessage(result, consecutiveFailures),
		Priority: PriorityUrgent,
		Metadata: metadata,
	}

	e.dispatchAndRecord(ctx, alarm, monitorID, TriggerEventDown, payload, map[string]any{
		"http_status":      result.HttpCode,
		"response_time_ms": result.TotalMs,
		"failure_streak":   consecutiveFailures,
		"error":            result.Error,
	})
}

func (e *AlarmEngine) evaluateRecoveryEvent(ctx context.Context, alarm Alarm, monitorID string, result CheckResult) {
	now := e.now()

	// Recovery notifications are not cooldown gated: every recovery from a
	// genuine down state notifies. Missing history degrades to a zero
	// downtime duration rather than failing.
	downtimeStart := now
	lastDown, err := e.history.LastTrigger(ctx, alarm.ID, monitorID, TriggerEventDown)
	if err != nil {
		slog.ErrorContext(ctx, "looking up last down trigger for recovery",
			slog.String("alarm_id", alarm.ID),
			slog.String("error", err.Error()))
	} else if lastDown != nil {
		downtimeStart = lastDown.TriggeredAt
	}
	downtime := formatDowntime(now.Sub(downtimeStart))

	metadata := map[string]any{
		"url":               result.Url,
		"http_status":       result.HttpCode,
		"downtime_duration": downtime,
		"recovered_at":      result.Timestamp.UTC().Format(time.RFC3339),
		"response_time_ms":  result.TotalMs,
		"probe_region":      result.ProbeRegion,
	}
	if e.dashboardBaseUrl != "" {
		metadata["dashboard_url"] = fmt.Sprintf("%s/monitors/%s", e.dashboardBaseUrl, monitorID)
	}

	payload := NotificationPayload{
		Title:    fmt.Sprintf("Monitor recovered: %s", alarm.Name),
		Message:  fmt.Sprintf("%s is reachable again after %s of downtime (HTTP %d, %dms).", result.Url, downtime, result.HttpCode, result.TotalMs),
		Priority: PriorityNormal,
		Metadata: metadata,
	}

	e.dispatchAndRecord(ctx, alarm, monitorID, TriggerEventUp, payload, map[string]any{
		"http_status":       result.HttpCode,
		"response_time_ms":  result.TotalMs,
		"downtime_duration": downtime,
	})
}

// dispatchAndRecord sends the payload to the alarm's channels and appends a
// trigger-history row. The row is written regardless of per-channel
// delivery outcomes so cooldown math keeps working through flaky channels.
func (e *AlarmEngine) dispatchAndRecord(ctx context.Context, alarm Alarm, monitorID string, triggerEvent string, payload NotificationPayload, metadata map[string]any) {
	outcomes := e.dispatcher.Dispatch(ctx, payload, e.channelsFor(alarm))

	record := AlarmTriggerHistoryRecord{
		AlarmID:           alarm.ID,
		MonitorID:         monitorID,
		TriggerEvent:      triggerEvent,
		TriggeredAt:       e.now(),
		NotificationsSent: outcomes,
		Metadata:          metadata,
	}
	if err := e.history.Append(ctx, record); err != nil {
		if hub := sentry.GetHubFromContext(ctx); hub != nil {
			hub.CaptureException(fmt.Errorf("appending trigger history: %w", err))
		}
		slog.ErrorContext(ctx, "appending trigger history",
			slog.String("alarm_id", alarm.ID),
			slog.String("trigger_event", triggerEvent),
			slog.String("error", err.Error()))
		return
	}

	slog.InfoContext(ctx, "alarm triggered",
		slog.String("alarm_id", alarm.ID),
		slog.String("monitor_id", monitorID),
		slog.String("trigger_event", triggerEvent),
		slog.Any("notifications_sent", outcomes))
}

func (e *AlarmEngine) channelsFor(alarm Alarm) []NotificationChannel {
	return []NotificationChannel{
		NewSlackChannel(alarm.Channels.SlackWebhookUrl, e.httpClient),
		NewDiscordChannel(alarm.Channels.DiscordWebhookUrl, e.httpClient),
		NewEmailChannel(e.emailSettings, alarm.Channels.EmailRecipients),
		NewGenericWebhookChannel(alarm.Channels.WebhookUrl, alarm.Channels.WebhookHmacSecret, alarm.Channels.WebhookHeaders, e.httpClient),
	}
}

func (e *AlarmEngine) renderDownMessage(result CheckResult, consecutiveFailures int) string {
	reason := result.Error
	if reason == "" {
		reason = fmt.Sprintf("HTTP %d", result.HttpCode)
	}
	return fmt.Sprintf("%s failed %d consecutive checks: %s", result.Url, consecutiveFailures, reason)
}

// formatDowntime renders a duration as minutes, or hours plus minutes once
// it crosses the hour.
func formatDowntime(duration time.Duration) string {
	if duration < 0 {
		duration = 0
	}
	minutes := int(duration.Minutes())
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

func humanizeRelativeTime(elapsed time.Duration) string {
	if elapsed < time.Minute {
		return "just now"
	}
	return formatDowntime(elapsed) + " ago"
}
