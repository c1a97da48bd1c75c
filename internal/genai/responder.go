package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/huntworks/huntrelay/internal/flow"
	"github.com/huntworks/huntrelay/internal/models"
)

// GenerateResponse runs one full orchestration cycle: resolve the assistant
// and thread, append the user's message, drive the run to completion while
// servicing tool calls, and extract the final reply. Failures anywhere are
// converted into the fixed fallback result; the caller never sees an error.
// Elapsed wall-clock time is reported regardless of outcome.
func (r *Responder) GenerateResponse(ctx context.Context, userMessage, conversationID string, user *models.User) models.AIResult {
	start := time.Now()

	reply, threadID, err := r.generate(ctx, userMessage, conversationID, user)
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		slog.Error("Responder.GenerateResponse failed, using fallback", "error", err, "conversationID", conversationID)
		return models.AIResult{
			Success:        false,
			Message:        flow.FallbackMessage,
			ResponseTimeMs: elapsed,
			Model:          r.model,
			Error:          err.Error(),
			UsedFallback:   true,
		}
	}

	return models.AIResult{
		Success:        true,
		Message:        reply,
		ResponseTimeMs: elapsed,
		Model:          r.model,
		ThreadID:       threadID,
	}
}

func (r *Responder) generate(ctx context.Context, userMessage, conversationID string, user *models.User) (reply, threadID string, err error) {
	assistantID, err := r.ensureAssistant(ctx)
	if err != nil {
		return "", "", fmt.Errorf("assistant resolution failed: %w", err)
	}

	threadID, err = r.getOrCreateThread(ctx, conversationID)
	if err != nil {
		return "", "", fmt.Errorf("thread resolution failed: %w", err)
	}

	instructions := r.buildInstructions(user)

	if _, err := r.client.CreateMessage(ctx, threadID, openai.MessageRequest{
		Role:    openai.ChatMessageRoleUser,
		Content: userMessage,
	}); err != nil {
		return "", threadID, fmt.Errorf("message append failed: %w", err)
	}

	temperature := r.temperature
	run, err := r.client.CreateRun(ctx, threadID, openai.RunRequest{
		AssistantID:         assistantID,
		Instructions:        instructions, // overrides the assistant's static instructions
		MaxCompletionTokens: r.maxCompletionTokens,
		Temperature:         &temperature,
	})
	if err != nil {
		return "", threadID, fmt.Errorf("run start failed: %w", err)
	}

	run, err = r.pollRun(ctx, threadID, run, user)
	if err != nil {
		return "", threadID, err
	}
	if run.Status != openai.RunStatusCompleted {
		return "", threadID, fmt.Errorf("run ended with status %s", run.Status)
	}

	reply, err = r.extractReply(ctx, threadID)
	if err != nil {
		return "", threadID, fmt.Errorf("message retrieval failed: %w", err)
	}
	return TruncateReply(reply, models.MaxReplyLength), threadID, nil
}

// ensureAssistant returns the process-wide assistant id, creating the remote
// assistant on first use when no identity was configured. Once set, the
// cached id is never recreated for the lifetime of the process.
func (r *Responder) ensureAssistant(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cachedAssistantID != "" {
		return r.cachedAssistantID, nil
	}
	if r.configuredAssistantID != "" {
		r.cachedAssistantID = r.configuredAssistantID
		slog.Debug("Responder.ensureAssistant: using configured assistant", "assistantID", r.cachedAssistantID)
		return r.cachedAssistantID, nil
	}

	name := flow.AgentName
	instructions := "Dynamic instructions will be provided per conversation based on user context."
	temperature := r.temperature
	assistant, err := r.client.CreateAssistant(ctx, openai.AssistantRequest{
		Model:        r.model,
		Name:         &name,
		Instructions: &instructions,
		Tools:        []openai.AssistantTool{nextClueToolDefinition()},
		Temperature:  &temperature,
	})
	if err != nil {
		return "", fmt.Errorf("assistant creation failed: %w", err)
	}

	r.cachedAssistantID = assistant.ID
	slog.Info("Responder.ensureAssistant: created assistant", "assistantID", assistant.ID)
	r.logAdmin(ctx, fmt.Sprintf("AGENT SMITH EVENT: Created new OpenAI Assistant\nID: %s", assistant.ID))
	return r.cachedAssistantID, nil
}

// getOrCreateThread reuses the conversation's recorded thread when the ledger
// holds one, else creates a fresh thread. A ledger lookup fault is logged and
// treated as "no thread" so the conversation can still proceed.
func (r *Responder) getOrCreateThread(ctx context.Context, conversationID string) (string, error) {
	threadID, err := r.store.GetConversationThreadID(conversationID)
	if err != nil {
		slog.Error("Responder.getOrCreateThread: ledger lookup failed", "error", err, "conversationID", conversationID)
	}
	if threadID != "" {
		slog.Debug("Responder.getOrCreateThread: reusing thread", "conversationID", conversationID, "threadID", threadID)
		return threadID, nil
	}

	thread, err := r.client.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return "", fmt.Errorf("thread creation failed: %w", err)
	}
	slog.Debug("Responder.getOrCreateThread: created thread", "conversationID", conversationID, "threadID", thread.ID)
	return thread.ID, nil
}

// buildInstructions renders the dynamic instruction block for one run.
func (r *Responder) buildInstructions(user *models.User) string {
	var clue *models.Clue
	huntID := 1
	clueNumber := 0
	if user != nil {
		if user.HuntID != 0 {
			huntID = user.HuntID
		}
		clueNumber = user.ClueID
		if user.ClueID != 0 {
			var err error
			clue, err = r.store.GetClue(user.ClueID)
			if err != nil {
				// Reference data is an enrichment; run with what we have.
				slog.Error("Responder.buildInstructions: clue lookup failed", "error", err, "clueID", user.ClueID)
			}
		}
	}
	vars := flow.BuildDynamicVariables(user, clue, huntID, clueNumber)
	return flow.SubstituteVariables(flow.InstructionsTemplate, vars)
}

// pollRun drives the run state machine at a fixed interval until it leaves
// the queued/in_progress/requires_action states or the poll deadline passes.
func (r *Responder) pollRun(ctx context.Context, threadID string, run openai.Run, user *models.User) (openai.Run, error) {
	deadline := time.Now().Add(r.pollTimeout)

	for run.Status == openai.RunStatusQueued || run.Status == openai.RunStatusInProgress || run.Status == openai.RunStatusRequiresAction {
		if run.Status == openai.RunStatusRequiresAction &&
			run.RequiredAction != nil &&
			run.RequiredAction.Type == openai.RequiredActionTypeSubmitToolOutputs &&
			run.RequiredAction.SubmitToolOutputs != nil {
			outputs := r.executeToolCalls(ctx, run.RequiredAction.SubmitToolOutputs.ToolCalls, user)
			if _, err := r.client.SubmitToolOutputs(ctx, threadID, run.ID, openai.SubmitToolOutputsRequest{
				ToolOutputs: outputs,
			}); err != nil {
				return run, fmt.Errorf("tool outputs submission failed: %w", err)
			}
		}

		if time.Now().After(deadline) {
			return run, fmt.Errorf("%w after %s (status %s)", models.ErrRunTimeout, r.pollTimeout, run.Status)
		}

		select {
		case <-ctx.Done():
			return run, ctx.Err()
		case <-time.After(r.pollInterval):
		}

		var err error
		run, err = r.client.RetrieveRun(ctx, threadID, run.ID)
		if err != nil {
			return run, fmt.Errorf("run status poll failed: %w", err)
		}
	}
	return run, nil
}

// executeToolCalls services one requires_action batch. Every requested call
// produces an output: unknown functions and collaborator failures yield an
// error payload instead of aborting the batch.
func (r *Responder) executeToolCalls(ctx context.Context, calls []openai.ToolCall, user *models.User) []openai.ToolOutput {
	outputs := make([]openai.ToolOutput, 0, len(calls))
	for _, call := range calls {
		result := r.executeToolCall(ctx, call, user)
		payload, err := json.Marshal(result)
		if err != nil {
			slog.Error("Responder.executeToolCalls: result marshal failed", "error", err, "tool", call.Function.Name)
			payload = []byte(`{"error":"tool result serialization failed"}`)
		}
		outputs = append(outputs, openai.ToolOutput{
			ToolCallID: call.ID,
			Output:     string(payload),
		})
	}
	return outputs
}

// executeToolCall dispatches one tool invocation by function name. Only
// get_next_clue is recognized. The caller's phone number is injected when the
// model omitted it.
func (r *Responder) executeToolCall(ctx context.Context, call openai.ToolCall, user *models.User) interface{} {
	fc := models.FunctionCall{Name: call.Function.Name, Arguments: json.RawMessage(call.Function.Arguments)}

	params, err := fc.ParseNextClueParams()
	if err != nil {
		slog.Error("Responder.executeToolCall: unrecognized or malformed tool call", "error", err, "tool", call.Function.Name)
		return models.ToolError{Error: err.Error()}
	}
	if params.PhoneNumber == "" && user != nil {
		params.PhoneNumber = user.PhoneNumber
	}

	result, err := r.clues.GetNextClue(ctx, params.PhoneNumber)
	if err != nil {
		slog.Error("Responder.executeToolCall: get_next_clue failed", "error", err, "phone", params.PhoneNumber)
		return models.ToolError{Error: err.Error()}
	}

	r.logAdmin(ctx, fmt.Sprintf("AGENT SMITH EVENT: Function Called\nFunction: %s\nPhone: %s", call.Function.Name, params.PhoneNumber))
	return result
}

// extractReply selects the most recent assistant-authored message text.
func (r *Responder) extractReply(ctx context.Context, threadID string) (string, error) {
	limit := 20
	order := "desc"
	list, err := r.client.ListMessage(ctx, threadID, &limit, &order, nil, nil, nil)
	if err != nil {
		return "", err
	}

	for _, msg := range list.Messages {
		if msg.Role != openai.ChatMessageRoleAssistant {
			continue
		}
		for _, content := range msg.Content {
			if content.Text != nil && content.Text.Value != "" {
				return content.Text.Value, nil
			}
		}
	}
	return flow.DefaultReply, nil
}

func (r *Responder) logAdmin(ctx context.Context, msg string) {
	if r.admin != nil {
		r.admin.Log(ctx, msg)
	}
}

// TruncateReply shortens a reply to at most max characters, appending a "..."
// marker when it was cut. Counting is rune-based so multibyte characters are
// never split.
func TruncateReply(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
