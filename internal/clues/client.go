// Package clues wraps the next-clue collaborator endpoint that backs the
// get_next_clue tool.
package clues

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultTimeout bounds one next-clue call.
const DefaultTimeout = 15 * time.Second

// Opts holds configuration options for the next-clue client.
type Opts struct {
	URL       string
	AuthToken string
	HTTP      *http.Client
}

// Option defines a configuration option for the next-clue client.
type Option func(*Opts)

// WithURL sets the collaborator endpoint URL.
func WithURL(url string) Option {
	return func(o *Opts) { o.URL = url }
}

// WithAuthToken sets the bearer token sent on each call.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithHTTPClient injects a custom HTTP client (used in tests).
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTP = c }
}

// Client calls the next-clue collaborator over HTTP.
type Client struct {
	url       string
	authToken string
	http      *http.Client
}

// NewClient creates a next-clue client from the provided options.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("next-clue URL must be provided")
	}
	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{url: cfg.URL, authToken: cfg.AuthToken, http: httpClient}, nil
}

// GetNextClue advances the user's progress and returns the next-clue dynamic
// variable bundle. When the collaborator wraps its result in a
// dynamic_variables field, that object is returned; otherwise the whole body.
func (c *Client) GetNextClue(ctx context.Context, phoneNumber string) (map[string]interface{}, error) {
	body, err := json.Marshal(map[string]string{"phone_number": phoneNumber})
	if err != nil {
		return nil, fmt.Errorf("failed to encode next-clue request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build next-clue request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		slog.Error("Clues.GetNextClue request failed", "error", err, "phone", phoneNumber)
		return nil, fmt.Errorf("next-clue request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read next-clue response: %w", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to decode next-clue response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		slog.Error("Clues.GetNextClue returned non-OK status", "status", resp.StatusCode, "phone", phoneNumber)
		return nil, fmt.Errorf("get_next_clue failed: %s", string(raw))
	}

	if vars, ok := result["dynamic_variables"].(map[string]interface{}); ok {
		return vars, nil
	}
	slog.Debug("Clues.GetNextClue succeeded", "phone", phoneNumber)
	return result, nil
}
