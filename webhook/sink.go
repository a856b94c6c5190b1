// Package webhook delivers pickup events to an HTTP endpoint.
//
// The Emitter implements pickup.NotificationService: it queues events and
// a pool of workers posts them through a Sink, retrying failed deliveries
// with a retry.Strategy.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/coregx/pickup/retry"
)

// Header names set on every webhook request.
const (
	HeaderSignature = "X-Webhook-Signature"
	HeaderTopic     = "X-Webhook-Topic"
	HeaderID        = "X-Webhook-ID"
)

// Sink sends one webhook payload.
type Sink interface {
	SendWebhook(ctx context.Context, topic string, payload interface{}) error
}

// HTTPSink posts JSON payloads to <BaseURL>/topic/<topic>/.
// When Secret is set, the body is signed with HMAC-SHA256 and the hex
// digest is sent in the X-Webhook-Signature header.
type HTTPSink struct {
	BaseURL string
	Secret  string
	Client  *http.Client
}

// NewHTTPSink creates an HTTPSink with a 10 second client timeout.
func NewHTTPSink(baseURL, secret string) *HTTPSink {
	return &HTTPSink{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Secret:  secret,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SendWebhook implements Sink.
//
// A 4xx answer is returned as a permanent error; network errors and 5xx
// answers are retryable.
func (s *HTTPSink) SendWebhook(ctx context.Context, topic string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return retry.Permanent(fmt.Errorf("encode webhook payload: %w", err))
	}

	url := fmt.Sprintf("%s/topic/%s/", s.BaseURL, topic)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(fmt.Errorf("build webhook request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderTopic, topic)
	req.Header.Set(HeaderID, uuid.NewString())
	if s.Secret != "" {
		req.Header.Set(HeaderSignature, Sign(body, s.Secret))
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return retry.Permanent(fmt.Errorf("webhook rejected: status %d", resp.StatusCode))
	default:
		return fmt.Errorf("webhook failed: status %d", resp.StatusCode)
	}
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(body []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// Verify reports whether signature matches body under secret.
func Verify(body []byte, secret, signature string) bool {
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return hmac.Equal(h.Sum(nil), expected)
}
