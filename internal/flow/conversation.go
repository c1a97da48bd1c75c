package flow

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/huntworks/huntrelay/internal/models"
)

// ConversationWindow is the sliding continuity window: a message within this
// span of the phone's most recent ledger row joins that row's conversation.
const ConversationWindow = 24 * time.Hour

// ledgerReader is the slice of the store needed to resolve conversations.
type ledgerReader interface {
	GetLatestText(phone string, since time.Time) (*models.TextMessage, error)
}

// ResolveConversation maps (phone, now) to a conversation id. The most recent
// ledger row within the trailing 24 hours decides the id; otherwise a fresh
// UUID is generated. Store faults degrade to a fresh id rather than
// propagating, since continuity is best-effort.
func ResolveConversation(ledger ledgerReader, phone string, now time.Time) string {
	since := now.Add(-ConversationWindow)
	latest, err := ledger.GetLatestText(phone, since)
	if err != nil {
		slog.Error("ResolveConversation: ledger lookup failed, starting new conversation", "error", err, "phone", phone)
		return uuid.NewString()
	}
	if latest != nil && latest.ConversationID != "" {
		slog.Debug("ResolveConversation: continuing conversation", "phone", phone, "conversationID", latest.ConversationID)
		return latest.ConversationID
	}
	id := uuid.NewString()
	slog.Debug("ResolveConversation: new conversation", "phone", phone, "conversationID", id)
	return id
}
