package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"deadlinemaster/internal/domain"
)

const defaultWebhookTimeout = 10 * time.Second

// Webhook POSTs each alert as {"title","body"} JSON.
type Webhook struct {
	URL    string
	Client *http.Client
}

func NewWebhook(url string, timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return &Webhook{URL: url, Client: &http.Client{Timeout: timeout}}
}

type webhookPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (w *Webhook) Name() string { return "webhook" }

func (w *Webhook) RequestPermission(context.Context) domain.Permission { return w.Permission() }

func (w *Webhook) Permission() domain.Permission {
	if w.URL == "" {
		return domain.PermissionDenied
	}
	return domain.PermissionGranted
}

func (w *Webhook) Deliver(ctx context.Context, title, body string) error {
	if w.URL == "" {
		return fmt.Errorf("URL is required")
	}
	data, err := json.Marshal(webhookPayload{Title: title, Body: body})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.Client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("HTTP %d error: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
