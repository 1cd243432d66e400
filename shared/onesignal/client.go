// Package onesignal is a minimal REST client for the push provider. The
// dispatcher prepares the full payload; this client only signs and posts it.
package onesignal

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const defaultEndpoint = "https://onesignal.com/api/v1/notifications"

// Config holds push provider credentials.
type Config struct {
	Endpoint string
	RESTKey  string
	Timeout  time.Duration
}

// Client posts prepared notification payloads to the provider.
type Client struct {
	endpoint string
	restKey  string
	http     *http.Client
	logger   *slog.Logger
}

// NewClient creates a push client.
func NewClient(config *Config, logger *slog.Logger) *Client {
	endpoint := config.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		endpoint: endpoint,
		restKey:  config.RESTKey,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Deliver posts one notification payload and returns the raw provider
// response body.
func (c *Client) Deliver(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+c.restKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to post push notification: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read push response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return body, fmt.Errorf("push provider returned %d: %s", resp.StatusCode, body)
	}

	c.logger.Debug("Push notification delivered",
		slog.Int("status", resp.StatusCode),
		slog.Int("body_size", len(payload)),
	)

	return body, nil
}
