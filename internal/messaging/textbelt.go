package messaging

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

// DefaultSendTimeout bounds one send-text call.
const DefaultSendTimeout = 15 * time.Second

// TextbeltOpts holds configuration options for the Textbelt-style sender.
type TextbeltOpts struct {
	URL       string
	AuthToken string
	HTTP      *http.Client
}

// TextbeltOption defines a configuration option for the Textbelt-style sender.
type TextbeltOption func(*TextbeltOpts)

// WithSendTextURL sets the send-text collaborator endpoint URL.
func WithSendTextURL(url string) TextbeltOption {
	return func(o *TextbeltOpts) { o.URL = url }
}

// WithSendTextAuthToken sets the bearer token sent on each call.
func WithSendTextAuthToken(token string) TextbeltOption {
	return func(o *TextbeltOpts) { o.AuthToken = token }
}

// WithSendTextHTTPClient injects a custom HTTP client (used in tests).
func WithSendTextHTTPClient(c *http.Client) TextbeltOption {
	return func(o *TextbeltOpts) { o.HTTP = c }
}

// TextbeltService delivers replies through the send-text collaborator, which
// fronts the Textbelt SMS relay.
type TextbeltService struct {
	url       string
	authToken string
	http      *http.Client
}

// NewTextbeltService creates a Textbelt-style sender from the provided options.
func NewTextbeltService(opts ...TextbeltOption) (*TextbeltService, error) {
	var cfg TextbeltOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("send-text URL must be provided")
	}
	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultSendTimeout}
	}
	return &TextbeltService{url: cfg.URL, authToken: cfg.AuthToken, http: httpClient}, nil
}

// sendTextRequest is the send-text collaborator request body.
type sendTextRequest struct {
	PhoneNumber string `json:"phone_number"`
	Message     string `json:"message"`
	TextID      string `json:"textId"` // relay correlation id for threading
	MessageType string `json:"messageType"`
}

// SendMessage posts the reply to the send-text collaborator.
func (s *TextbeltService) SendMessage(ctx context.Context, to, body, relayID string) error {
	payload, err := json.Marshal(sendTextRequest{
		PhoneNumber: to,
		Message:     body,
		TextID:      relayID,
		MessageType: MessageTypeAgent,
	})
	if err != nil {
		return fmt.Errorf("failed to encode send-text request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build send-text request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.authToken)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		slog.Error("TextbeltService.SendMessage request failed", "error", err, "to", to)
		return fmt.Errorf("send-text request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		slog.Error("TextbeltService.SendMessage rejected", "status", resp.StatusCode, "to", to)
		return fmt.Errorf("send text failed: %s", string(raw))
	}

	slog.Debug("TextbeltService.SendMessage succeeded", "to", to, "relayID", relayID)
	return nil
}
