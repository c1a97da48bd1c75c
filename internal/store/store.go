// Package store provides storage backends for HuntRelay.
//
// It exposes read access to hunt users and clue reference data and an
// append-only writer for the texts ledger, with in-memory, SQLite and
// PostgreSQL implementations.
package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/huntworks/huntrelay/internal/models"
)

// Store defines the datastore collaborator surface used by the webhook path.
//
// Lookup methods follow the nil-nil convention: a nil record with a nil error
// means "not found", while a non-nil error means the datastore itself failed.
// Callers must not conflate the two.
type Store interface {
	// GetUserByPhone resolves a canonical phone number to a user record.
	GetUserByPhone(phone string) (*models.User, error)

	// GetClue retrieves the clue row for a progress marker.
	GetClue(clueID int) (*models.Clue, error)

	// GetLatestText returns the most recent ledger row for a phone number
	// created at or after the given instant, or nil if none exists.
	GetLatestText(phone string, since time.Time) (*models.TextMessage, error)

	// GetConversationThreadID returns the most recent non-empty AI thread
	// reference recorded for a conversation, or "" if none exists.
	GetConversationThreadID(conversationID string) (string, error)

	// AddText appends one row to the texts ledger.
	AddText(msg models.TextMessage) error

	// Close releases any underlying resources.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithDSN sets the database connection string (Postgres URL or SQLite path).
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType classifies a DSN as "postgres" or "sqlite3" so callers can
// pick a backend without a separate driver flag.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite3"
}

// InMemoryStore is a non-durable Store used in tests and local development.
type InMemoryStore struct {
	mu     sync.RWMutex
	users  map[string]models.User
	clues  map[int]models.Clue
	texts  []models.TextMessage
	nextID int64
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users: make(map[string]models.User),
		clues: make(map[int]models.Clue),
	}
}

// SeedUser registers a user keyed by canonical phone number.
func (s *InMemoryStore) SeedUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.PhoneNumber] = u
}

// SeedClue registers a clue keyed by its id.
func (s *InMemoryStore) SeedClue(c models.Clue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clues[c.ClueID] = c
}

// GetUserByPhone resolves a canonical phone number to a user record.
func (s *InMemoryStore) GetUserByPhone(phone string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[phone]
	if !ok {
		return nil, nil
	}
	copied := u
	return &copied, nil
}

// GetClue retrieves the clue row for a progress marker.
func (s *InMemoryStore) GetClue(clueID int) (*models.Clue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clues[clueID]
	if !ok {
		return nil, nil
	}
	copied := c
	return &copied, nil
}

// GetLatestText returns the newest ledger row for a phone within the window.
func (s *InMemoryStore) GetLatestText(phone string, since time.Time) (*models.TextMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *models.TextMessage
	for i := range s.texts {
		t := s.texts[i]
		if t.PhoneNumber != phone || t.CreatedAt.Before(since) {
			continue
		}
		if latest == nil || t.CreatedAt.After(latest.CreatedAt) {
			copied := t
			latest = &copied
		}
	}
	return latest, nil
}

// GetConversationThreadID returns the most recent non-empty thread reference
// for a conversation.
func (s *InMemoryStore) GetConversationThreadID(conversationID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	candidates := make([]models.TextMessage, 0, len(s.texts))
	for _, t := range s.texts {
		if t.ConversationID == conversationID && t.ThreadID != "" {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		return "", nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
	})
	return candidates[0].ThreadID, nil
}

// AddText appends one row to the ledger.
func (s *InMemoryStore) AddText(msg models.TextMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	msg.ID = s.nextID
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	s.texts = append(s.texts, msg)
	return nil
}

// Texts returns a copy of all ledger rows, oldest first (for tests).
func (s *InMemoryStore) Texts() []models.TextMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.TextMessage, len(s.texts))
	copy(out, s.texts)
	return out
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }
