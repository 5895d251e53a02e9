package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// SlackChannel delivers to a Slack incoming webhook.
type SlackChannel struct {
	webhookURL string
	httpClient *http.Client
}

func NewSlackChannel(webhookURL string, httpClient *http.Client) *SlackChannel {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &SlackChannel{webhookURL: webhookURL, httpClient: httpClient}
}

func (s *SlackChannel) Kind() string { return "slack" }

func (s *SlackChannel) Configured() bool { return s.webhookURL != "" }

type slackWebhookPayload struct {
	Text string `json:"text"`
}

func (s *SlackChannel) Send(ctx context.Context, payload NotificationPayload) error {
	text := fmt.Sprintf("*%s*\n%s", payload.Title, payload.Message)
	if details := renderMetadataLines(payload.Metadata); details != "" {
		text += "\n" + details
	}

	requestBody, err := json.Marshal(slackWebhookPayload{Text: text})
	if err != nil {
		return fmt.Errorf("marshaling slack payload: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(requestBody))
	if err != nil {
		return fmt.Errorf("creating slack request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("User-Agent", "vigil-notifier/1.0")

	response, err := s.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("sending slack notification: %w", err)
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
		return fmt.Errorf("%w: slack returned status code %d", ErrChannelDropped, response.StatusCode)
	}
	return nil
}

// renderMetadataLines flattens payload metadata into stable "key: value"
// lines for the chat-oriented channels.
func renderMetadataLines(metadata map[string]any) string {
	if len(metadata) == 0 {
		return ""
	}
	keys := make([]string, 0, len(metadata))
	for key := range metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var builder strings.Builder
	for i, key := range keys {
		if i > 0 {
			builder.WriteString("\n")
		}
		fmt.Fprintf(&builder, "%s: %v", key, metadata[key])
	}
	return builder.String()
}
