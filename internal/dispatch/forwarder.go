package dispatch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"courier/internal/config"
	"courier/internal/queue"
)

// Forwarder replays queued items as real HTTP requests. Its Dispatch
// method satisfies delivery.Dispatch.
type Forwarder struct {
	client    *http.Client
	userAgent string
}

// NewForwarder builds a forwarder from the delivery settings.
func NewForwarder(cfg *config.Config) *Forwarder {
	timeout := time.Duration(cfg.Delivery.DispatchTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Forwarder{
		client:    &http.Client{Timeout: timeout},
		userAgent: strings.TrimSpace(cfg.Delivery.UserAgent),
	}
}

// Dispatch performs the item's HTTP call. Any transport error or a
// response of 300 or above counts as a failed attempt.
func (f *Forwarder) Dispatch(ctx context.Context, item queue.Item) error {
	target, err := url.Parse(strings.TrimSpace(item.Target))
	if err != nil {
		return fmt.Errorf("parse target: %w", err)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return fmt.Errorf("unsupported target scheme %q", target.Scheme)
	}

	var body io.Reader
	if item.Payload != "" {
		body = strings.NewReader(item.Payload)
	}
	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(item.Method), target.String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	if item.Payload != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range item.Headers {
		req.Header.Set(key, value)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("dispatch %s %s: %w", item.Method, item.Target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("target returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
