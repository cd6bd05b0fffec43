package alerting

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// SignatureHeader carries the hex HMAC-SHA256 of the body when a secret is configured.
const SignatureHeader = "X-EventPulse-Signature"

// WebhookPayload is the JSON document posted to webhook receivers.
type WebhookPayload struct {
	ID          string          `json:"id"`
	SeriesKey   string          `json:"series_key"`
	Bucket      time.Time       `json:"bucket"`
	Label       string          `json:"label,omitempty"`
	Value       decimal.Decimal `json:"value"`
	ZScore      decimal.Decimal `json:"z_score"`
	Threshold   decimal.Decimal `json:"threshold"`
	ExpectedMin decimal.Decimal `json:"expected_min"`
	ExpectedMax decimal.Decimal `json:"expected_max"`
	Kind        string          `json:"kind"`
	Trend       string          `json:"trend,omitempty"`
	Simulated   bool            `json:"simulated,omitempty"`
	Text        string          `json:"text"`
}

// WebhookNotifier posts alerts as JSON to an arbitrary endpoint.
type WebhookNotifier struct {
	url    string
	secret []byte
	client *http.Client
	logger zerolog.Logger
}

// NewWebhookNotifier constructs a webhook notifier.
func NewWebhookNotifier(url, secret string, timeout time.Duration, logger zerolog.Logger) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		url:    url,
		secret: []byte(secret),
		client: &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "alert_webhook").Logger(),
	}
}

// Notify posts the payload and expects a 2xx response.
func (n *WebhookNotifier) Notify(ctx context.Context, note Notification) error {
	payload := WebhookPayload{
		ID:          uuid.NewString(),
		SeriesKey:   note.SeriesKey,
		Bucket:      note.Bucket.UTC(),
		Label:       note.Label,
		Value:       note.Value,
		ZScore:      note.ZScore,
		Threshold:   note.Threshold,
		ExpectedMin: note.ExpectedMin,
		ExpectedMax: note.ExpectedMax,
		Kind:        note.Kind,
		Trend:       note.Trend,
		Simulated:   note.Simulated,
		Text:        renderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if len(n.secret) > 0 {
		req.Header.Set(SignatureHeader, Sign(n.secret, body))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook unexpected status: %d", resp.StatusCode)
	}

	n.logger.Info().Str("series", note.SeriesKey).
		Str("delivery_id", payload.ID).
		Msg("alert sent (webhook)")
	return nil
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

var _ Notifier = (*WebhookNotifier)(nil)
