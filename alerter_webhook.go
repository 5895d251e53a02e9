package main

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/http"
)

// GenericWebhookChannel posts the full notification payload as JSON to an
// arbitrary endpoint, optionally signing the body with HMAC-SHA256 so the
// receiver can authenticate it.
type GenericWebhookChannel struct {
	webhookURL    string
	hmacSecret    string
	customHeaders map[string]string
	httpClient    *http.Client
}

func NewGenericWebhookChannel(webhookURL string, hmacSecret string, customHeaders map[string]string, httpClient *http.Client) *GenericWebhookChannel {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &GenericWebhookChannel{
		webhookURL:    webhookURL,
		hmacSecret:    hmacSecret,
		customHeaders: customHeaders,
		httpClient:    httpClient,
	}
}

func (w *GenericWebhookChannel) Kind() string { return "webhook" }

func (w *GenericWebhookChannel) Configured() bool { return w.webhookURL != "" }

func (w *GenericWebhookChannel) Send(ctx context.Context, payload NotificationPayload) error {
	requestBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling webhook payload: %w", err)
	}

	var signature string
	if w.hmacSecret != "" {
		signer := hmac.New(sha256.New, []byte(w.hmacSecret))
		signer.Write(requestBody)
		signature = fmt.Sprintf("%x", signer.Sum(nil))
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, w.webhookURL, bytes.NewReader(requestBody))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("User-Agent", "vigil-notifier/1.0")
	for key, value := range w.customHeaders {
		request.Header.Set(key, value)
	}
	if signature != "" {
		request.Header.Set("X-Signature", signature)
	}

	response, err := w.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("sending webhook notification: %w", err)
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
		return fmt.Errorf("%w: received non-2xx response code %d", ErrChannelDropped, response.StatusCode)
	}

	return nil
}
