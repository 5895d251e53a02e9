package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSlackChannel_Send(t *testing.T) {
	var received slackWebhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode slack payload: %v", err)
		}
	}))
	defer server.Close()

	channel := NewSlackChannel(server.URL, nil)
	err := channel.Send(t.Context(), NotificationPayload{
		Title:    "Monitor down: api",
		Message:  "https://api.example.com failed 3 consecutive checks: Service Unavailable",
		Priority: PriorityUrgent,
		Metadata: map[string]any{"failure_streak": 3, "http_status": 503},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasPrefix(received.Text, "*Monitor down: api*\n") {
		t.Errorf("expected bold title prefix, got %q", received.Text)
	}
	if !strings.Contains(received.Text, "failure_streak: 3") {
		t.Errorf("expected metadata line, got %q", received.Text)
	}
}

func TestSlackChannel_ErrorMapping(t *testing.T) {
	t.Run("rate limited", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		err := NewSlackChannel(server.URL, nil).Send(t.Context(), NotificationPayload{})
		if !errors.Is(err, ErrChannelRateLimited) {
			t.Errorf("expected ErrChannelRateLimited, got %v", err)
		}
	})

	t.Run("dropped", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		err := NewSlackChannel(server.URL, nil).Send(t.Context(), NotificationPayload{})
		if !errors.Is(err, ErrChannelDropped) {
			t.Errorf("expected ErrChannelDropped, got %v", err)
		}
	})
}

func TestDiscordChannel_Send(t *testing.T) {
	var received discordWebhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode discord payload: %v", err)
		}
	}))
	defer server.Close()

	channel := NewDiscordChannel(server.URL, nil)
	err := channel.Send(t.Context(), NotificationPayload{
		Title:   "Monitor recovered: api",
		Message: "back online",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasPrefix(received.Content, "**Monitor recovered: api**\n") {
		t.Errorf("expected bold title prefix, got %q", received.Content)
	}
}

func TestGenericWebhookChannel_SignsBody(t *testing.T) {
	const secret = "webhook-secret"

	var body []byte
	var signature, customHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		body, err = io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("failed to read webhook body: %v", err)
		}
		signature = r.Header.Get("X-Signature")
		customHeader = r.Header.Get("X-Custom")
	}))
	defer server.Close()

	channel := NewGenericWebhookChannel(server.URL, secret, map[string]string{"X-Custom": "yes"}, nil)
	payload := NotificationPayload{
		Title:    "Monitor down: api",
		Priority: PriorityUrgent,
		Metadata: map[string]any{"url": "https://api.example.com"},
	}
	if err := channel.Send(t.Context(), payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if signature != hex.EncodeToString(mac.Sum(nil)) {
		t.Error("expected signature over the exact request body")
	}
	if customHeader != "yes" {
		t.Errorf("expected custom header, got %q", customHeader)
	}

	var decoded NotificationPayload
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("webhook body is not the payload json: %v", err)
	}
	if decoded.Title != payload.Title || decoded.Priority != payload.Priority {
		t.Errorf("unexpected payload content: %+v", decoded)
	}
}

func TestGenericWebhookChannel_NoSignatureWithoutSecret(t *testing.T) {
	var signaturePresent bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signaturePresent = r.Header.Get("X-Signature") != ""
	}))
	defer server.Close()

	channel := NewGenericWebhookChannel(server.URL, "", nil, nil)
	if err := channel.Send(t.Context(), NotificationPayload{Title: "x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if signaturePresent {
		t.Error("expected no signature header without a secret")
	}
}

func TestChannelConfiguration(t *testing.T) {
	if NewSlackChannel("", nil).Configured() {
		t.Error("slack channel without url must not be configured")
	}
	if NewDiscordChannel("", nil).Configured() {
		t.Error("discord channel without url must not be configured")
	}
	if NewGenericWebhookChannel("", "secret", nil, nil).Configured() {
		t.Error("webhook channel without url must not be configured")
	}
	if NewEmailChannel(EmailSettings{}, []string{"ops@example.com"}).Configured() {
		t.Error("email channel without relay must not be configured")
	}
	if NewEmailChannel(EmailSettings{Host: "smtp.example.com", From: "vigil@example.com"}, nil).Configured() {
		t.Error("email channel without recipients must not be configured")
	}
	if !NewEmailChannel(EmailSettings{Host: "smtp.example.com", From: "vigil@example.com"}, []string{"ops@example.com"}).Configured() {
		t.Error("fully specified email channel must be configured")
	}
}

func TestRenderMetadataLines(t *testing.T) {
	got := renderMetadataLines(map[string]any{"b": 2, "a": "one"})
	if got != "a: one\nb: 2" {
		t.Errorf("expected sorted metadata lines, got %q", got)
	}
	if renderMetadataLines(nil) != "" {
		t.Error("expected empty output for nil metadata")
	}
}
