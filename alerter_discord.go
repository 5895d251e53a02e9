package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// DiscordChannel delivers to a Discord webhook.
type DiscordChannel struct {
	webhookURL string
	httpClient *http.Client
}

func NewDiscordChannel(webhookURL string, httpClient *http.Client) *DiscordChannel {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &DiscordChannel{webhookURL: webhookURL, httpClient: httpClient}
}

func (d *DiscordChannel) Kind() string { return "discord" }

func (d *DiscordChannel) Configured() bool { return d.webhookURL != "" }

type discordWebhookPayload struct {
	Content string `json:"content"`
}

func (d *DiscordChannel) Send(ctx context.Context, payload NotificationPayload) error {
	content := fmt.Sprintf("**%s**\n%s", payload.Title, payload.Message)
	if details := renderMetadataLines(payload.Metadata); details != "" {
		content += "\n" + details
	}

	requestBody, err := json.Marshal(discordWebhookPayload{Content: content})
	if err != nil {
		return fmt.Errorf("marshaling discord payload: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(requestBody))
	if err != nil {
		return fmt.Errorf("creating discord request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("User-Agent", "vigil-notifier/1.0")

	response, err := d.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("sending discord notification: %w", err)
	}
	defer func() {
		if response.Body != nil {
			_ = response.Body.Close()
		}
	}()

	if response.StatusCode == http.StatusTooManyRequests {
		return ErrChannelRateLimited
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("%w: discord returned status code %d", ErrChannelDropped, response.StatusCode)
	}
	return nil
}
