// Package store provides storage backends for HuntRelay.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/huntworks/huntrelay/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run Postgres migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

// GetUserByPhone resolves a canonical phone number to a user record.
// Returns (nil, nil) when no user matches.
func (s *PostgresStore) GetUserByPhone(phone string) (*models.User, error) {
	row := s.db.QueryRow(`SELECT id, hunt_id, clue_id, first_name, last_name, payment_status, phone_number
		FROM users WHERE phone_number = $1 LIMIT 1`, phone)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore.GetUserByPhone: not found", "phone", phone)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore.GetUserByPhone failed", "error", err, "phone", phone)
		return nil, fmt.Errorf("failed to query user by phone: %w", err)
	}
	return u, nil
}

// GetClue retrieves the clue row for a progress marker.
// Returns (nil, nil) when no clue matches.
func (s *PostgresStore) GetClue(clueID int) (*models.Clue, error) {
	row := s.db.QueryRow(`SELECT clue_id, hunt_id, clue_name, clue_description, clue_solution, clue_type, text_message
		FROM clues WHERE clue_id = $1 LIMIT 1`, clueID)
	c, err := scanClue(row)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore.GetClue: not found", "clueID", clueID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore.GetClue failed", "error", err, "clueID", clueID)
		return nil, fmt.Errorf("failed to query clue %d: %w", clueID, err)
	}
	return c, nil
}

// GetLatestText returns the newest ledger row for a phone created at or after
// the given instant, or (nil, nil) when none exists.
func (s *PostgresStore) GetLatestText(phone string, since time.Time) (*models.TextMessage, error) {
	row := s.db.QueryRow(`SELECT `+textColumns+` FROM texts
		WHERE phone_number = $1 AND created_at >= $2
		ORDER BY created_at DESC LIMIT 1`, phone, since)
	t, err := scanText(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore.GetLatestText failed", "error", err, "phone", phone)
		return nil, fmt.Errorf("failed to query latest text: %w", err)
	}
	return t, nil
}

// GetConversationThreadID returns the most recent non-empty thread reference
// recorded for a conversation, or "" when none exists.
func (s *PostgresStore) GetConversationThreadID(conversationID string) (string, error) {
	var threadID string
	err := s.db.QueryRow(`SELECT openai_thread_id FROM texts
		WHERE conversation_id = $1 AND openai_thread_id IS NOT NULL AND openai_thread_id <> ''
		ORDER BY created_at DESC LIMIT 1`, conversationID).Scan(&threadID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		slog.Error("PostgresStore.GetConversationThreadID failed", "error", err, "conversationID", conversationID)
		return "", fmt.Errorf("failed to query conversation thread: %w", err)
	}
	return threadID, nil
}

// AddText appends one row to the texts ledger.
func (s *PostgresStore) AddText(msg models.TextMessage) error {
	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.Exec(`INSERT INTO texts
		(direction, message, message_type, user_id, hunt_id, clue_id, conversation_id,
		 textbelt_id, phone_number, ai_model_used, response_time_ms, status, error_message,
		 openai_thread_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		string(msg.Direction), msg.Message, string(msg.MessageType), msg.UserID, msg.HuntID,
		msg.ClueID, msg.ConversationID, nilIfEmpty(msg.TextbeltID), msg.PhoneNumber,
		nilIfEmpty(msg.AIModel), msg.ResponseTimeMs, string(msg.Status),
		nilIfEmpty(msg.ErrorMessage), nilIfEmpty(msg.ThreadID), createdAt)
	if err != nil {
		slog.Error("PostgresStore.AddText failed", "error", err, "phone", msg.PhoneNumber, "direction", msg.Direction)
		return fmt.Errorf("failed to insert text for %s: %w", msg.PhoneNumber, err)
	}
	slog.Debug("PostgresStore.AddText succeeded", "phone", msg.PhoneNumber, "direction", msg.Direction, "conversationID", msg.ConversationID)
	return nil
}

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close PostgreSQL database", "error", err)
	}
	return err
}
