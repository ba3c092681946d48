// Package notify implements the two outbound alert channels of spec.md
// §4.8: an SMTP email sender (with None/SslTls/StartTls security modes)
// and a webhook POST sender.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sitewatch/sitewatch/internal/httpclient"
)

// WebhookPayload is the exact JSON shape spec.md §4.7 requires for the
// webhook body.
type WebhookPayload struct {
	EventType     string `json:"eventType"`
	InstanceID    string `json:"instanceId"`
	TargetID      string `json:"targetId"`
	URL           string `json:"url"`
	IsUp          bool   `json:"isUp"`
	StateSinceUtc string `json:"stateSinceUtc"`
	TimestampUtc  string `json:"timestampUtc"`
	Summary       string `json:"summary"`
}

// WebhookSender is the capability surface consumed by the alert evaluator,
// mockable for tests (spec.md §9).
type WebhookSender interface {
	Send(ctx context.Context, endpointURL string, payload WebhookPayload) error
}

// HTTPWebhookSender POSTs the payload as application/json and expects a 2xx
// response, retrying transient 429/403/5xx responses through
// internal/httpclient.DoWithRetry. Grounded on the teacher's
// internal/httpclient.Default/DoWithRetry (timeout-scoped client plus
// shared retry-with-backoff) and other-examples bryonbaker-beacon's
// notifier.go (build-request → send → classify-status-code shape).
type HTTPWebhookSender struct {
	client *http.Client
	policy httpclient.RetryPolicy
}

// NewWebhookSender returns a sender using httpclient's shared timeout-scoped
// client and its more aggressive WebhookRetryPolicy.
func NewWebhookSender() *HTTPWebhookSender {
	return &HTTPWebhookSender{
		client: httpclient.Default(),
		policy: httpclient.WebhookRetryPolicy,
	}
}

func (s *HTTPWebhookSender) Send(ctx context.Context, endpointURL string, payload WebhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpclient.DoWithRetry(ctx, s.client, req, s.policy)
	if err != nil {
		return fmt.Errorf("notify: webhook request to %s: %w", endpointURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify: webhook %s returned status %d", endpointURL, resp.StatusCode)
	}
	return nil
}
