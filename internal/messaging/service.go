// Package messaging provides the SMS send collaborator used to deliver agent
// replies. Two backends are available: the Textbelt-style send-text endpoint
// and Twilio.
package messaging

import "context"

// MessageTypeAgent tags relay sends as AI-generated responses.
const MessageTypeAgent = "agent"

// Sender defines a pluggable SMS delivery abstraction.
type Sender interface {
	// SendMessage delivers a message body to a canonical phone number.
	// relayID is the inbound relay correlation id used for conversation
	// threading on the relay side.
	SendMessage(ctx context.Context, to, body, relayID string) error
}
