package genai

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/huntworks/huntrelay/internal/flow"
	"github.com/huntworks/huntrelay/internal/models"
)

// fakeAssistantService scripts the remote run state machine. CreateRun returns
// the first run in the sequence; each RetrieveRun returns the next one,
// sticking on the last.
type fakeAssistantService struct {
	runs   []openai.Run
	runIdx int

	createAssistantCalls int
	createThreadCalls    int
	createMessageCalls   int
	submitted            []openai.SubmitToolOutputsRequest
	messages             openai.MessagesList

	err error
}

func (f *fakeAssistantService) CreateAssistant(ctx context.Context, req openai.AssistantRequest) (openai.Assistant, error) {
	f.createAssistantCalls++
	if f.err != nil {
		return openai.Assistant{}, f.err
	}
	return openai.Assistant{ID: "asst_1", Model: req.Model}, nil
}

func (f *fakeAssistantService) CreateThread(ctx context.Context, req openai.ThreadRequest) (openai.Thread, error) {
	f.createThreadCalls++
	if f.err != nil {
		return openai.Thread{}, f.err
	}
	return openai.Thread{ID: "thread_1"}, nil
}

func (f *fakeAssistantService) CreateMessage(ctx context.Context, threadID string, req openai.MessageRequest) (openai.Message, error) {
	f.createMessageCalls++
	if f.err != nil {
		return openai.Message{}, f.err
	}
	return openai.Message{ID: "msg_user"}, nil
}

func (f *fakeAssistantService) CreateRun(ctx context.Context, threadID string, req openai.RunRequest) (openai.Run, error) {
	if f.err != nil {
		return openai.Run{}, f.err
	}
	f.runIdx = 0
	return f.currentRun(), nil
}

func (f *fakeAssistantService) RetrieveRun(ctx context.Context, threadID, runID string) (openai.Run, error) {
	if f.err != nil {
		return openai.Run{}, f.err
	}
	if f.runIdx < len(f.runs)-1 {
		f.runIdx++
	}
	return f.currentRun(), nil
}

func (f *fakeAssistantService) SubmitToolOutputs(ctx context.Context, threadID, runID string, req openai.SubmitToolOutputsRequest) (openai.Run, error) {
	f.submitted = append(f.submitted, req)
	if f.err != nil {
		return openai.Run{}, f.err
	}
	return f.currentRun(), nil
}

func (f *fakeAssistantService) ListMessage(ctx context.Context, threadID string, limit *int, order *string, after *string, before *string, runID *string) (openai.MessagesList, error) {
	if f.err != nil {
		return openai.MessagesList{}, f.err
	}
	return f.messages, nil
}

func (f *fakeAssistantService) currentRun() openai.Run {
	if len(f.runs) == 0 {
		return openai.Run{ID: "run_1", Status: openai.RunStatusCompleted}
	}
	return f.runs[f.runIdx]
}

type fakeContextStore struct {
	threadID  string
	threadErr error
	clue      *models.Clue
}

func (f *fakeContextStore) GetConversationThreadID(conversationID string) (string, error) {
	return f.threadID, f.threadErr
}

func (f *fakeContextStore) GetClue(clueID int) (*models.Clue, error) {
	return f.clue, nil
}

type fakeClueFetcher struct {
	result map[string]interface{}
	err    error
	phone  string
}

func (f *fakeClueFetcher) GetNextClue(ctx context.Context, phoneNumber string) (map[string]interface{}, error) {
	f.phone = phoneNumber
	return f.result, f.err
}

type recordingAdminLogger struct {
	events []string
}

func (l *recordingAdminLogger) Log(ctx context.Context, msg string) {
	l.events = append(l.events, msg)
}

func assistantMessage(text string) openai.MessagesList {
	return openai.MessagesList{Messages: []openai.Message{{
		ID:   "msg_reply",
		Role: openai.ChatMessageRoleAssistant,
		Content: []openai.MessageContent{{
			Type: "text",
			Text: &openai.MessageText{Value: text},
		}},
	}}}
}

func requiresActionRun(calls ...openai.ToolCall) openai.Run {
	return openai.Run{
		ID:     "run_1",
		Status: openai.RunStatusRequiresAction,
		RequiredAction: &openai.RunRequiredAction{
			Type: openai.RequiredActionTypeSubmitToolOutputs,
			SubmitToolOutputs: &openai.SubmitToolOutputs{
				ToolCalls: calls,
			},
		},
	}
}

func fastOpts() Opts {
	return Opts{PollInterval: time.Millisecond, PollTimeout: time.Second}
}

func TestGenerateResponseServicesToolCalls(t *testing.T) {
	svc := &fakeAssistantService{
		runs: []openai.Run{
			requiresActionRun(openai.ToolCall{
				ID:   "call_1",
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      string(models.ToolTypeNextClue),
					Arguments: "{}",
				},
			}),
			{ID: "run_1", Status: openai.RunStatusCompleted},
		},
		messages: assistantMessage("Look behind the statue"),
	}
	clues := &fakeClueFetcher{result: map[string]interface{}{"clue_number": "3"}}
	admin := &recordingAdminLogger{}
	user := &models.User{ID: 7, PhoneNumber: "+15555550123", FirstName: "Trinity", ClueID: 2}

	r := newResponder(svc, &fakeContextStore{}, clues, admin, fastOpts())
	result := r.GenerateResponse(context.Background(), "where is the next clue", "conv-1", user)

	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.Message != "Look behind the statue" {
		t.Errorf("unexpected reply: %q", result.Message)
	}
	if result.ThreadID != "thread_1" {
		t.Errorf("expected thread_1, got %q", result.ThreadID)
	}
	if result.Model != DefaultModel {
		t.Errorf("expected model %q, got %q", DefaultModel, result.Model)
	}

	if clues.phone != "+15555550123" {
		t.Errorf("expected caller's phone injected into tool call, got %q", clues.phone)
	}
	if len(svc.submitted) != 1 {
		t.Fatalf("expected one tool output submission, got %d", len(svc.submitted))
	}
	outputs := svc.submitted[0].ToolOutputs
	if len(outputs) != 1 || outputs[0].ToolCallID != "call_1" {
		t.Fatalf("unexpected tool outputs: %+v", outputs)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(outputs[0].Output.(string)), &payload); err != nil {
		t.Fatalf("tool output is not valid JSON: %v", err)
	}
	if payload["clue_number"] != "3" {
		t.Errorf("collaborator result not forwarded: %v", payload)
	}
}

func TestGenerateResponseFallbackOnServiceError(t *testing.T) {
	svc := &fakeAssistantService{err: errors.New("api unavailable")}
	r := newResponder(svc, &fakeContextStore{}, &fakeClueFetcher{}, nil, fastOpts())

	result := r.GenerateResponse(context.Background(), "hello", "conv-1", nil)

	if result.Success {
		t.Fatal("expected failure result")
	}
	if !result.UsedFallback || result.Message != flow.FallbackMessage {
		t.Errorf("expected fallback message, got %+v", result)
	}
	if result.Error == "" {
		t.Error("expected the triggering error to be recorded")
	}
}

func TestGenerateResponseFallbackOnFailedRun(t *testing.T) {
	svc := &fakeAssistantService{
		runs: []openai.Run{{ID: "run_1", Status: openai.RunStatusFailed}},
	}
	r := newResponder(svc, &fakeContextStore{}, &fakeClueFetcher{}, nil, fastOpts())

	result := r.GenerateResponse(context.Background(), "hello", "conv-1", nil)

	if result.Success || !result.UsedFallback {
		t.Fatalf("expected fallback for failed run, got %+v", result)
	}
	if !strings.Contains(result.Error, string(openai.RunStatusFailed)) {
		t.Errorf("expected terminal status in error, got %q", result.Error)
	}
}

func TestGenerateResponseTimesOut(t *testing.T) {
	svc := &fakeAssistantService{
		runs:     []openai.Run{{ID: "run_1", Status: openai.RunStatusInProgress}},
		messages: assistantMessage("never delivered"),
	}
	r := newResponder(svc, &fakeContextStore{}, &fakeClueFetcher{}, nil, Opts{
		PollInterval: time.Millisecond,
		PollTimeout:  5 * time.Millisecond,
	})

	result := r.GenerateResponse(context.Background(), "hello", "conv-1", nil)

	if result.Success || !result.UsedFallback {
		t.Fatalf("expected fallback on timeout, got %+v", result)
	}
	if !strings.Contains(result.Error, models.ErrRunTimeout.Error()) {
		t.Errorf("expected timeout error, got %q", result.Error)
	}
}

func TestGenerateResponseTruncatesLongReplies(t *testing.T) {
	long := strings.Repeat("x", 200)
	svc := &fakeAssistantService{messages: assistantMessage(long)}
	r := newResponder(svc, &fakeContextStore{}, &fakeClueFetcher{}, nil, fastOpts())

	result := r.GenerateResponse(context.Background(), "hello", "conv-1", nil)

	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if len([]rune(result.Message)) > models.MaxReplyLength {
		t.Errorf("reply exceeds %d characters: %d", models.MaxReplyLength, len([]rune(result.Message)))
	}
	if !strings.HasSuffix(result.Message, "...") {
		t.Errorf("expected truncation marker, got %q", result.Message[len(result.Message)-10:])
	}
}

func TestGenerateResponseDefaultReplyWhenNoAssistantMessage(t *testing.T) {
	svc := &fakeAssistantService{messages: openai.MessagesList{}}
	r := newResponder(svc, &fakeContextStore{}, &fakeClueFetcher{}, nil, fastOpts())

	result := r.GenerateResponse(context.Background(), "hello", "conv-1", nil)

	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.Message != flow.DefaultReply {
		t.Errorf("expected default reply, got %q", result.Message)
	}
}

func TestEnsureAssistantCreatesOnce(t *testing.T) {
	svc := &fakeAssistantService{messages: assistantMessage("ok")}
	r := newResponder(svc, &fakeContextStore{}, &fakeClueFetcher{}, nil, fastOpts())

	for i := 0; i < 2; i++ {
		if result := r.GenerateResponse(context.Background(), "hello", "conv-1", nil); !result.Success {
			t.Fatalf("call %d failed: %+v", i, result)
		}
	}
	if svc.createAssistantCalls != 1 {
		t.Errorf("expected exactly one assistant creation, got %d", svc.createAssistantCalls)
	}
}

func TestEnsureAssistantUsesConfiguredIdentity(t *testing.T) {
	svc := &fakeAssistantService{messages: assistantMessage("ok")}
	cfg := fastOpts()
	cfg.AssistantID = "asst_prewired"
	r := newResponder(svc, &fakeContextStore{}, &fakeClueFetcher{}, nil, cfg)

	if result := r.GenerateResponse(context.Background(), "hello", "conv-1", nil); !result.Success {
		t.Fatalf("unexpected failure: %+v", result)
	}
	if svc.createAssistantCalls != 0 {
		t.Errorf("configured assistant must suppress creation, got %d creations", svc.createAssistantCalls)
	}
}

func TestGetOrCreateThreadReusesLedgerThread(t *testing.T) {
	svc := &fakeAssistantService{messages: assistantMessage("ok")}
	st := &fakeContextStore{threadID: "thread_existing"}
	r := newResponder(svc, st, &fakeClueFetcher{}, nil, fastOpts())

	result := r.GenerateResponse(context.Background(), "hello", "conv-1", nil)

	if !result.Success {
		t.Fatalf("unexpected failure: %+v", result)
	}
	if result.ThreadID != "thread_existing" {
		t.Errorf("expected recorded thread to be reused, got %q", result.ThreadID)
	}
	if svc.createThreadCalls != 0 {
		t.Errorf("expected no thread creation, got %d", svc.createThreadCalls)
	}
}

func TestGetOrCreateThreadToleratesLedgerFault(t *testing.T) {
	svc := &fakeAssistantService{messages: assistantMessage("ok")}
	st := &fakeContextStore{threadErr: errors.New("connection reset")}
	r := newResponder(svc, st, &fakeClueFetcher{}, nil, fastOpts())

	result := r.GenerateResponse(context.Background(), "hello", "conv-1", nil)

	if !result.Success {
		t.Fatalf("ledger fault must not fail the run: %+v", result)
	}
	if result.ThreadID != "thread_1" {
		t.Errorf("expected fresh thread, got %q", result.ThreadID)
	}
}

func TestExecuteToolCallsReportsCollaboratorFailure(t *testing.T) {
	svc := &fakeAssistantService{
		runs: []openai.Run{
			requiresActionRun(openai.ToolCall{
				ID:   "call_1",
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      string(models.ToolTypeNextClue),
					Arguments: `{"phone_number":"+15555550123"}`,
				},
			}),
			{ID: "run_1", Status: openai.RunStatusCompleted},
		},
		messages: assistantMessage("ok"),
	}
	clues := &fakeClueFetcher{err: errors.New("no such user")}
	r := newResponder(svc, &fakeContextStore{}, clues, nil, fastOpts())

	result := r.GenerateResponse(context.Background(), "hello", "conv-1", nil)

	if !result.Success {
		t.Fatalf("a tool failure must not abort the run: %+v", result)
	}
	if len(svc.submitted) != 1 {
		t.Fatalf("expected tool outputs despite failure, got %d submissions", len(svc.submitted))
	}
	var payload models.ToolError
	if err := json.Unmarshal([]byte(svc.submitted[0].ToolOutputs[0].Output.(string)), &payload); err != nil {
		t.Fatalf("tool output is not valid JSON: %v", err)
	}
	if payload.Error != "no such user" {
		t.Errorf("expected collaborator error surfaced to the model, got %q", payload.Error)
	}
}

func TestExecuteToolCallsUnknownFunction(t *testing.T) {
	svc := &fakeAssistantService{
		runs: []openai.Run{
			requiresActionRun(openai.ToolCall{
				ID:   "call_1",
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      "open_pod_bay_doors",
					Arguments: "{}",
				},
			}),
			{ID: "run_1", Status: openai.RunStatusCompleted},
		},
		messages: assistantMessage("ok"),
	}
	r := newResponder(svc, &fakeContextStore{}, &fakeClueFetcher{}, nil, fastOpts())

	result := r.GenerateResponse(context.Background(), "hello", "conv-1", nil)

	if !result.Success {
		t.Fatalf("unknown tools must not abort the run: %+v", result)
	}
	var payload models.ToolError
	if err := json.Unmarshal([]byte(svc.submitted[0].ToolOutputs[0].Output.(string)), &payload); err != nil {
		t.Fatalf("tool output is not valid JSON: %v", err)
	}
	if payload.Error == "" {
		t.Error("expected an error payload for the unknown function")
	}
}

func TestTruncateReply(t *testing.T) {
	if got := TruncateReply("short", 160); got != "short" {
		t.Errorf("short reply must pass through, got %q", got)
	}

	exact := strings.Repeat("a", 160)
	if got := TruncateReply(exact, 160); got != exact {
		t.Errorf("reply at the limit must pass through unchanged")
	}

	long := strings.Repeat("a", 161)
	got := TruncateReply(long, 160)
	if len([]rune(got)) != 160 {
		t.Errorf("expected 160 characters, got %d", len([]rune(got)))
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected truncation marker, got %q", got)
	}

	multibyte := strings.Repeat("é", 200)
	got = TruncateReply(multibyte, 160)
	if len([]rune(got)) != 160 {
		t.Errorf("rune counting failed for multibyte input: %d", len([]rune(got)))
	}
	if strings.Contains(got, "�") {
		t.Error("multibyte character was split")
	}
}

func TestGenerateResponseLogsAssistantCreation(t *testing.T) {
	svc := &fakeAssistantService{messages: assistantMessage("ok")}
	admin := &recordingAdminLogger{}
	r := newResponder(svc, &fakeContextStore{}, &fakeClueFetcher{}, admin, fastOpts())

	if result := r.GenerateResponse(context.Background(), "hello", "conv-1", nil); !result.Success {
		t.Fatalf("unexpected failure: %+v", result)
	}
	if len(admin.events) != 1 || !strings.Contains(admin.events[0], "Created new OpenAI Assistant") {
		t.Errorf("expected assistant creation event, got %v", admin.events)
	}
}
