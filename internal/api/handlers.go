package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/huntworks/huntrelay/internal/flow"
	"github.com/huntworks/huntrelay/internal/models"
	"github.com/huntworks/huntrelay/internal/util"
)

// webhookHandler receives inbound SMS reply webhooks and routes them through
// the conversation pipeline: normalize, look up the user, resolve the
// conversation, run the orchestrator, record both ledger rows, dispatch the
// reply.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	slog.Info("Webhook received", "method", r.Method, "path", r.URL.Path)

	// Orchestration and side effects continue even if the inbound connection
	// drops; ledger writes and the SMS send must still occur.
	ctx := context.Background()

	if r.Method == http.MethodGet {
		s.logAdmin(ctx, "AGENT SMITH EVENT: Webhook health check")
		writeTextResponse(w, http.StatusOK, "HuntRelay webhook is active")
		return
	}
	if r.Method != http.MethodPost {
		s.logAdmin(ctx, "AGENT SMITH ERROR: Webhook received non-POST request")
		writeTextResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var payload models.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		slog.Error("Webhook JSON decode failed", "error", err)
		s.logAdmin(ctx, fmt.Sprintf("AGENT SMITH ERROR: Failed to parse webhook JSON: %v", err))
		writeTextResponse(w, http.StatusBadRequest, "Bad JSON")
		return
	}
	if err := payload.Validate(); err != nil {
		s.logAdmin(ctx, fmt.Sprintf("AGENT SMITH ERROR: Missing webhook fields - textId: %s, fromNumber: %s", payload.TextID, payload.FromNumber))
		writeTextResponse(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	phone, err := util.NormalizePhone(payload.FromNumber)
	if err != nil {
		slog.Warn("Webhook phone normalization failed", "fromNumber", payload.FromNumber)
		writeTextResponse(w, http.StatusBadRequest, "Invalid phone number")
		return
	}

	s.logAdmin(ctx, fmt.Sprintf("AGENT SMITH EVENT: Received SMS Reply\nFrom: %s\nText: %s\nTextId: %s", phone, payload.Text, payload.TextID))

	user, err := s.store.GetUserByPhone(phone)
	if err != nil {
		// Datastore fault, not a missing user; the two are never conflated.
		slog.Error("Webhook user lookup failed", "error", err, "phone", phone)
		s.logAdmin(ctx, fmt.Sprintf("AGENT SMITH ERROR: Webhook processing failed\nError: %v", err))
		writeTextResponse(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if user == nil {
		s.logAdmin(ctx, fmt.Sprintf("AGENT SMITH ERROR: User not found for phone %s", phone))
		writeTextResponse(w, http.StatusNotFound, "User not found")
		return
	}

	conversationID := flow.ResolveConversation(s.store, phone, time.Now())

	result := s.responder.GenerateResponse(ctx, payload.Text, conversationID, user)

	// Two ledger writes per cycle. Failures are logged and never block the
	// user-facing response.
	inbound := models.TextMessage{
		Direction:      models.MessageDirectionInbound,
		Message:        payload.Text,
		MessageType:    models.MessageTypeUser,
		UserID:         user.ID,
		HuntID:         user.HuntID,
		ClueID:         user.ClueID,
		ConversationID: conversationID,
		TextbeltID:     payload.TextID,
		PhoneNumber:    phone,
		Status:         models.MessageStatusSent,
		ThreadID:       result.ThreadID,
	}
	if err := s.store.AddText(inbound); err != nil {
		slog.Error("Webhook inbound ledger write failed", "error", err, "conversationID", conversationID)
	}

	outboundStatus := models.MessageStatusPending
	if !result.Success {
		outboundStatus = models.MessageStatusFailed
	}
	outbound := models.TextMessage{
		Direction:      models.MessageDirectionOutbound,
		Message:        result.Message,
		MessageType:    models.MessageTypeAgent,
		UserID:         user.ID,
		HuntID:         user.HuntID,
		ClueID:         user.ClueID,
		ConversationID: conversationID,
		TextbeltID:     payload.TextID,
		PhoneNumber:    phone,
		AIModel:        result.Model,
		ResponseTimeMs: result.ResponseTimeMs,
		Status:         outboundStatus,
		ErrorMessage:   result.Error,
		ThreadID:       result.ThreadID,
	}
	if err := s.store.AddText(outbound); err != nil {
		slog.Error("Webhook outbound ledger write failed", "error", err, "conversationID", conversationID)
	}

	if err := s.sender.SendMessage(ctx, phone, result.Message, payload.TextID); err != nil {
		slog.Error("Webhook response dispatch failed", "error", err, "phone", phone)
		s.logAdmin(ctx, fmt.Sprintf("AGENT SMITH ERROR: Failed to send response\nTo: %s\nError: %v", phone, err))
		writeTextResponse(w, http.StatusInternalServerError, "Failed to send response")
		return
	}

	s.logAdmin(ctx, fmt.Sprintf("AGENT SMITH EVENT: AI Response Sent\nTo: %s\nResponse: %s\nConversation: %s", phone, result.Message, conversationID))
	writeTextResponse(w, http.StatusOK, "Response sent successfully")
}

func (s *Server) logAdmin(ctx context.Context, msg string) {
	if s.admin != nil {
		s.admin.Log(ctx, msg)
	}
}
