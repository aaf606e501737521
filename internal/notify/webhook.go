package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Webhook POSTs each message as JSON. When Secret is set the body is
// signed into X-Signature.
type Webhook struct {
	URL    string
	Secret string
	HTTP   *http.Client
}

func NewWebhook(url, secret string) *Webhook {
	return &Webhook{URL: url, Secret: secret, HTTP: &http.Client{Timeout: 5 * time.Second}}
}

func (w *Webhook) Name() string { return "webhook:" + w.URL }

func (w *Webhook) Publish(ctx context.Context, text string) error {
	body, err := json.Marshal(NewMessage("", text))
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", "orders.changed")
	if w.Secret != "" {
		req.Header.Set("X-Signature", SignHMAC(w.Secret, body))
	}
	resp, err := w.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("notify: %s: %w", w.Name(), err)
	}
	return checkResponse(w.Name(), resp)
}
