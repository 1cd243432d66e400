// Package smsgateway is a small HTTP client for the text-message provider.
package smsgateway

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Config holds SMS provider settings.
type Config struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// Client sends individual text messages.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	logger   *slog.Logger
}

// NewClient creates an SMS client.
func NewClient(config *Config, logger *slog.Logger) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		endpoint: config.Endpoint,
		apiKey:   config.APIKey,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Send delivers one message and returns the provider status string.
func (c *Client) Send(ctx context.Context, from, to, body string) (string, error) {
	form := url.Values{
		"from":    {from},
		"to":      {to},
		"message": {body},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build SMS request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to post SMS: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read SMS response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("SMS provider returned %d: %s", resp.StatusCode, respBody)
	}

	c.logger.Debug("SMS delivered",
		slog.String("to", to),
		slog.Int("status", resp.StatusCode),
	)

	return strings.TrimSpace(string(respBody)), nil
}
