// Package adminlog forwards operational events to the admin logging
// collaborator. Delivery is fire-and-forget: failures are logged locally and
// never surfaced to the request path.
package adminlog

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// DefaultTimeout bounds one admin-log delivery.
const DefaultTimeout = 10 * time.Second

// Opts holds configuration options for the admin logger.
type Opts struct {
	URL       string
	AuthToken string
	HTTP      *http.Client
}

// Option defines a configuration option for the admin logger.
type Option func(*Opts)

// WithURL sets the admin logging endpoint URL.
func WithURL(url string) Option {
	return func(o *Opts) { o.URL = url }
}

// WithAuthToken sets the bearer token sent on each event.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithHTTPClient injects a custom HTTP client (used in tests).
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTP = c }
}

// Client posts free-text events to the admin logging collaborator.
// A nil Client is valid and drops all events.
type Client struct {
	url       string
	authToken string
	http      *http.Client
}

// NewClient creates an admin log client. An empty URL yields a nil client,
// which silently drops events.
func NewClient(opts ...Option) *Client {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.URL == "" {
		slog.Debug("adminlog: no URL configured, events will be dropped")
		return nil
	}
	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{url: cfg.URL, authToken: cfg.AuthToken, http: httpClient}
}

// Log delivers one event message. All failures are swallowed after local
// logging; the caller's control flow never depends on the outcome.
func (c *Client) Log(ctx context.Context, msg string) {
	if c == nil {
		return
	}
	body, err := json.Marshal(map[string]string{"message": msg})
	if err != nil {
		slog.Error("adminlog: failed to encode event", "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		slog.Error("adminlog: failed to build request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		slog.Error("adminlog: event delivery failed", "error", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		slog.Warn("adminlog: collaborator rejected event", "status", resp.StatusCode)
		return
	}
	slog.Debug("adminlog: event delivered")
}
