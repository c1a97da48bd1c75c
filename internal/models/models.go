// Package models defines the core data structures for HuntRelay.
//
// It includes types for hunt users, clue reference data, the append-only text
// ledger, and the AI response envelope, which are shared across modules.
package models

import (
	"encoding/json"
	"errors"
	"time"
)

// MessageDirection indicates whether a ledger row was received or sent.
type MessageDirection string

const (
	// MessageDirectionInbound marks a message received from the user.
	MessageDirectionInbound MessageDirection = "inbound"
	// MessageDirectionOutbound marks a message sent to the user.
	MessageDirectionOutbound MessageDirection = "outbound"
)

// MessageType tags the author role of a ledger row.
type MessageType string

const (
	// MessageTypeSystem marks system-generated messages.
	MessageTypeSystem MessageType = "system"
	// MessageTypeUser marks messages authored by the participant.
	MessageTypeUser MessageType = "user"
	// MessageTypeAgent marks AI-generated messages.
	MessageTypeAgent MessageType = "agent"
)

// MessageStatus tracks delivery state of a ledger row.
type MessageStatus string

const (
	// MessageStatusSent is the default status for recorded inbound messages.
	MessageStatusSent MessageStatus = "sent"
	// MessageStatusPending marks an outbound message handed to the relay.
	MessageStatusPending MessageStatus = "pending"
	// MessageStatusFailed marks an outbound message whose generation failed.
	MessageStatusFailed MessageStatus = "failed"
)

// ClueCompleted is the reserved progress marker meaning the hunt is finished.
const ClueCompleted = 777

// MaxReplyLength bounds outbound SMS bodies to a single segment.
const MaxReplyLength = 160

// Error variables for better error handling and testability
var (
	ErrInvalidPhoneNumber = errors.New("invalid phone number")
	ErrMissingFields      = errors.New("missing required fields")
	ErrUserNotFound       = errors.New("user not found")
	ErrRunTimeout         = errors.New("run polling deadline exceeded")
)

// User is a hunt participant as stored in the users table. Read-only from
// this service's perspective.
type User struct {
	ID            int64  `json:"id"`
	HuntID        int    `json:"hunt_id"`
	ClueID        int    `json:"clue_id"` // 0 = not started, ClueCompleted = done
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	PaymentStatus bool   `json:"payment_status"`
	PhoneNumber   string `json:"phone_number"` // canonical +1XXXXXXXXXX
}

// Clue is one unit of the scripted progression, keyed by the user's current
// progress marker. Immutable reference data.
type Clue struct {
	ClueID          int    `json:"clue_id"`
	HuntID          int    `json:"hunt_id"`
	ClueName        string `json:"clue_name"`
	ClueDescription string `json:"clue_description"`
	ClueSolution    string `json:"clue_solution"`
	ClueType        string `json:"clue_type"`
	TextMessage     string `json:"text_message,omitempty"`
}

// TextMessage is one row of the append-only texts ledger. Rows are never
// updated or deleted once written.
type TextMessage struct {
	ID             int64            `json:"id"`
	Direction      MessageDirection `json:"direction"`
	Message        string           `json:"message"`
	MessageType    MessageType      `json:"message_type"`
	UserID         int64            `json:"user_id"`
	HuntID         int              `json:"hunt_id"`
	ClueID         int              `json:"clue_id"`
	ConversationID string           `json:"conversation_id"`
	TextbeltID     string           `json:"textbelt_id"`
	PhoneNumber    string           `json:"phone_number"`
	AIModel        string           `json:"ai_model_used,omitempty"`
	ResponseTimeMs int64            `json:"response_time_ms,omitempty"`
	Status         MessageStatus    `json:"status"`
	ErrorMessage   string           `json:"error_message,omitempty"`
	ThreadID       string           `json:"openai_thread_id,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// WebhookPayload is the inbound SMS reply webhook body.
type WebhookPayload struct {
	TextID     string          `json:"textId"`
	FromNumber string          `json:"fromNumber"`
	Text       string          `json:"text"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// Validate checks that all required webhook fields are present.
func (p *WebhookPayload) Validate() error {
	if p.TextID == "" || p.FromNumber == "" || p.Text == "" {
		return ErrMissingFields
	}
	return nil
}

// AIResult is the uniform outcome of one run orchestration. The orchestrator
// never surfaces a raw error to callers; failures arrive here as a fallback
// message with Success=false and the triggering error text.
type AIResult struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	ResponseTimeMs int64  `json:"response_time_ms"`
	Model          string `json:"model"`
	Error          string `json:"error,omitempty"`
	UsedFallback   bool   `json:"used_fallback"`
	ThreadID       string `json:"thread_id,omitempty"`
}
