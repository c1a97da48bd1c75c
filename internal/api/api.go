// Package api provides the HTTP server and webhook handler for HuntRelay.
//
// It exposes the inbound SMS reply webhook and wires together the store,
// run orchestrator, collaborator clients and SMS sender.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/huntworks/huntrelay/internal/adminlog"
	"github.com/huntworks/huntrelay/internal/clues"
	"github.com/huntworks/huntrelay/internal/genai"
	"github.com/huntworks/huntrelay/internal/messaging"
	"github.com/huntworks/huntrelay/internal/models"
	"github.com/huntworks/huntrelay/internal/store"
)

// DefaultAddr is the default listen address for the API server.
const DefaultAddr = ":8080"

// SMS backend selectors.
const (
	SMSBackendTextbelt = "textbelt"
	SMSBackendTwilio   = "twilio"
)

// responseGenerator is the run orchestrator surface used by the handler.
type responseGenerator interface {
	GenerateResponse(ctx context.Context, userMessage, conversationID string, user *models.User) models.AIResult
}

// adminNotifier forwards operational events; delivery is best-effort.
type adminNotifier interface {
	Log(ctx context.Context, msg string)
}

// Opts holds configuration options for the API server.
type Opts struct {
	Addr        string
	SendTextURL string
	AdminLogURL string
	NextClueURL string
	AuthToken   string
	SMSBackend  string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithSendTextURL sets the send-text collaborator endpoint.
func WithSendTextURL(url string) Option {
	return func(o *Opts) { o.SendTextURL = url }
}

// WithAdminLogURL sets the admin logging collaborator endpoint.
func WithAdminLogURL(url string) Option {
	return func(o *Opts) { o.AdminLogURL = url }
}

// WithNextClueURL sets the next-clue collaborator endpoint.
func WithNextClueURL(url string) Option {
	return func(o *Opts) { o.NextClueURL = url }
}

// WithServiceAuthToken sets the bearer token used on collaborator calls.
func WithServiceAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithSMSBackend selects the SMS relay backend ("textbelt" or "twilio").
func WithSMSBackend(backend string) Option {
	return func(o *Opts) { o.SMSBackend = backend }
}

// Server handles the inbound SMS reply webhook.
type Server struct {
	store     store.Store
	responder responseGenerator
	sender    messaging.Sender
	admin     adminNotifier
}

// NewServer creates a Server from prebuilt collaborators. admin may be nil.
func NewServer(st store.Store, responder responseGenerator, sender messaging.Sender, admin adminNotifier) *Server {
	return &Server{store: st, responder: responder, sender: sender, admin: admin}
}

// Handler returns the HTTP handler serving the webhook.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.webhookHandler)
	return mux
}

// Run builds all modules from the provided option slices and serves the
// webhook until the listener fails.
func Run(storeOpts []store.Option, genaiOpts []genai.Option, apiOpts []Option) error {
	var cfg Opts
	for _, opt := range apiOpts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	st, err := buildStore(storeOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	admin := adminlog.NewClient(
		adminlog.WithURL(cfg.AdminLogURL),
		adminlog.WithAuthToken(cfg.AuthToken),
	)

	clueClient, err := clues.NewClient(
		clues.WithURL(cfg.NextClueURL),
		clues.WithAuthToken(cfg.AuthToken),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize next-clue client: %w", err)
	}

	sender, err := buildSender(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize SMS sender: %w", err)
	}

	responder, err := genai.NewResponder(st, clueClient, admin, genaiOpts...)
	if err != nil {
		return fmt.Errorf("failed to initialize responder: %w", err)
	}

	server := NewServer(st, responder, sender, admin)
	slog.Info("HuntRelay API listening", "addr", cfg.Addr)
	return http.ListenAndServe(cfg.Addr, server.Handler())
}

// buildStore selects a backend from the DSN: Postgres URLs get the Postgres
// store, anything else is treated as an SQLite path. No DSN falls back to the
// non-durable in-memory store.
func buildStore(storeOpts []store.Option) (store.Store, error) {
	var sCfg store.Opts
	for _, opt := range storeOpts {
		opt(&sCfg)
	}
	if sCfg.DSN == "" {
		slog.Warn("No database DSN configured, using in-memory store (non-durable)")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(sCfg.DSN) == "postgres" {
		return store.NewPostgresStore(storeOpts...)
	}
	return store.NewSQLiteStore(storeOpts...)
}

func buildSender(cfg Opts) (messaging.Sender, error) {
	switch cfg.SMSBackend {
	case SMSBackendTwilio:
		return messaging.NewTwilioService()
	case "", SMSBackendTextbelt:
		return messaging.NewTextbeltService(
			messaging.WithSendTextURL(cfg.SendTextURL),
			messaging.WithSendTextAuthToken(cfg.AuthToken),
		)
	default:
		return nil, fmt.Errorf("unknown SMS backend: %s", cfg.SMSBackend)
	}
}
