package main

import (
	"context"
	"log/slog"
)

// NotificationDispatcher fans a payload out to a set of channels. Channels
// are independent failure domains: one channel failing or panicking never
// prevents delivery attempts to the others. The returned map holds one
// boolean per attempted channel; unconfigured channels are absent from it.
type NotificationDispatcher struct{}

func NewNotificationDispatcher() *NotificationDispatcher {
	return &NotificationDispatcher{}
}

func (d *NotificationDispatcher) Dispatch(ctx context.Context, payload NotificationPayload, channels []NotificationChannel) map[string]bool {
	outcomes := make(map[string]bool)

	for _, channel := range channels {
		if channel == nil || !channel.Configured() {
			continue
		}
		outcomes[channel.Kind()] = d.send(ctx, payload, channel)
	}

	return outcomes
}

func (d *NotificationDispatcher) send(ctx context.Context, payload NotificationPayload, channel NotificationChannel) (delivered bool) {
	defer func() {
		if recovered := recover(); recovered != nil {
			slog.ErrorContext(ctx, "notification channel panicked",
				slog.String("channel", channel.Kind()),
				slog.Any("panic", recovered))
			delivered = false
		}
	}()

	if err := channel.Send(ctx, payload); err != nil {
		slog.ErrorContext(ctx, "sending notification",
			slog.String("channel", channel.Kind()),
			slog.String("error", err.Error()))
		return false
	}
	return true
}
