// Package store provides storage backends for HuntRelay.
//
// This file implements the SQLite-backed store used as the local default.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/huntworks/huntrelay/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("SQLiteStore.NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	if dir := filepath.Dir(dsn); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
			slog.Error("Failed to create SQLite database directory", "error", err, "dir", dir)
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite database", "error", err, "dsn", dsn)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")
	return &SQLiteStore{db: db}, nil
}

// GetUserByPhone resolves a canonical phone number to a user record.
// Returns (nil, nil) when no user matches.
func (s *SQLiteStore) GetUserByPhone(phone string) (*models.User, error) {
	row := s.db.QueryRow(`SELECT id, hunt_id, clue_id, first_name, last_name, payment_status, phone_number
		FROM users WHERE phone_number = ? LIMIT 1`, phone)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore.GetUserByPhone: not found", "phone", phone)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore.GetUserByPhone failed", "error", err, "phone", phone)
		return nil, fmt.Errorf("failed to query user by phone: %w", err)
	}
	return u, nil
}

// GetClue retrieves the clue row for a progress marker.
// Returns (nil, nil) when no clue matches.
func (s *SQLiteStore) GetClue(clueID int) (*models.Clue, error) {
	row := s.db.QueryRow(`SELECT clue_id, hunt_id, clue_name, clue_description, clue_solution, clue_type, text_message
		FROM clues WHERE clue_id = ? LIMIT 1`, clueID)
	c, err := scanClue(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore.GetClue: not found", "clueID", clueID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore.GetClue failed", "error", err, "clueID", clueID)
		return nil, fmt.Errorf("failed to query clue %d: %w", clueID, err)
	}
	return c, nil
}

// GetLatestText returns the newest ledger row for a phone created at or after
// the given instant, or (nil, nil) when none exists.
func (s *SQLiteStore) GetLatestText(phone string, since time.Time) (*models.TextMessage, error) {
	row := s.db.QueryRow(`SELECT `+textColumns+` FROM texts
		WHERE phone_number = ? AND created_at >= ?
		ORDER BY created_at DESC LIMIT 1`, phone, since)
	t, err := scanText(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore.GetLatestText failed", "error", err, "phone", phone)
		return nil, fmt.Errorf("failed to query latest text: %w", err)
	}
	return t, nil
}

// GetConversationThreadID returns the most recent non-empty thread reference
// recorded for a conversation, or "" when none exists.
func (s *SQLiteStore) GetConversationThreadID(conversationID string) (string, error) {
	var threadID string
	err := s.db.QueryRow(`SELECT openai_thread_id FROM texts
		WHERE conversation_id = ? AND openai_thread_id IS NOT NULL AND openai_thread_id <> ''
		ORDER BY created_at DESC LIMIT 1`, conversationID).Scan(&threadID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		slog.Error("SQLiteStore.GetConversationThreadID failed", "error", err, "conversationID", conversationID)
		return "", fmt.Errorf("failed to query conversation thread: %w", err)
	}
	return threadID, nil
}

// AddText appends one row to the texts ledger.
func (s *SQLiteStore) AddText(msg models.TextMessage) error {
	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.Exec(`INSERT INTO texts
		(direction, message, message_type, user_id, hunt_id, clue_id, conversation_id,
		 textbelt_id, phone_number, ai_model_used, response_time_ms, status, error_message,
		 openai_thread_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(msg.Direction), msg.Message, string(msg.MessageType), msg.UserID, msg.HuntID,
		msg.ClueID, msg.ConversationID, nilIfEmpty(msg.TextbeltID), msg.PhoneNumber,
		nilIfEmpty(msg.AIModel), msg.ResponseTimeMs, string(msg.Status),
		nilIfEmpty(msg.ErrorMessage), nilIfEmpty(msg.ThreadID), createdAt)
	if err != nil {
		slog.Error("SQLiteStore.AddText failed", "error", err, "phone", msg.PhoneNumber, "direction", msg.Direction)
		return fmt.Errorf("failed to insert text for %s: %w", msg.PhoneNumber, err)
	}
	slog.Debug("SQLiteStore.AddText succeeded", "phone", msg.PhoneNumber, "direction", msg.Direction, "conversationID", msg.ConversationID)
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
