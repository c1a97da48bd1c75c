package flow

import (
	"errors"
	"testing"
	"time"

	"github.com/huntworks/huntrelay/internal/models"
	"github.com/huntworks/huntrelay/internal/store"
)

type failingLedger struct{}

func (failingLedger) GetLatestText(phone string, since time.Time) (*models.TextMessage, error) {
	return nil, errors.New("connection refused")
}

func TestResolveConversationContinuesRecentConversation(t *testing.T) {
	s := store.NewInMemoryStore()
	now := time.Now()
	phone := "+15555550123"

	if err := s.AddText(models.TextMessage{
		PhoneNumber:    phone,
		ConversationID: "conv-1",
		CreatedAt:      now.Add(-2 * time.Hour),
	}); err != nil {
		t.Fatalf("AddText failed: %v", err)
	}

	got := ResolveConversation(s, phone, now)
	if got != "conv-1" {
		t.Errorf("expected conv-1, got %q", got)
	}
}

func TestResolveConversationExpiresAfterWindow(t *testing.T) {
	s := store.NewInMemoryStore()
	now := time.Now()
	phone := "+15555550123"

	if err := s.AddText(models.TextMessage{
		PhoneNumber:    phone,
		ConversationID: "conv-stale",
		CreatedAt:      now.Add(-ConversationWindow - time.Minute),
	}); err != nil {
		t.Fatalf("AddText failed: %v", err)
	}

	got := ResolveConversation(s, phone, now)
	if got == "conv-stale" {
		t.Error("conversation outside the window should not be continued")
	}
	if got == "" {
		t.Error("expected a fresh conversation id, got empty string")
	}
}

func TestResolveConversationFreshForUnknownPhone(t *testing.T) {
	s := store.NewInMemoryStore()
	first := ResolveConversation(s, "+15555550123", time.Now())
	second := ResolveConversation(s, "+15555550123", time.Now())
	if first == "" || second == "" {
		t.Fatal("expected non-empty conversation ids")
	}
	if first == second {
		t.Error("each resolution without ledger history should mint a distinct id")
	}
}

func TestResolveConversationDegradesOnStoreError(t *testing.T) {
	got := ResolveConversation(failingLedger{}, "+15555550123", time.Now())
	if got == "" {
		t.Error("store failure should still yield a fresh conversation id")
	}
}
