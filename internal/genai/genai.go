// Package genai drives the OpenAI Assistants API for HuntRelay.
//
// It owns the assistant/thread lifecycle, runs the remote run state machine
// to completion while servicing tool calls, and converts every failure into a
// uniform fallback result so callers never see a raw error.
package genai

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/huntworks/huntrelay/internal/models"
)

// Default run configuration, matching the agent's production settings.
const (
	// DefaultModel is the model used for assistant runs.
	DefaultModel = "gpt-4.1"
	// DefaultTemperature is the sampling temperature for assistant runs.
	DefaultTemperature float32 = 0.7
	// DefaultMaxCompletionTokens bounds the length of one run's output.
	DefaultMaxCompletionTokens = 1000
	// DefaultPollInterval is the fixed delay between run status checks.
	DefaultPollInterval = 1 * time.Second
	// DefaultPollTimeout is the ceiling on total run polling time.
	DefaultPollTimeout = 120 * time.Second
)

// assistantService is the slice of the OpenAI client used by the Responder.
// Extracted as an interface so tests can drive the run state machine with a
// fake backend.
type assistantService interface {
	CreateAssistant(ctx context.Context, request openai.AssistantRequest) (openai.Assistant, error)
	CreateThread(ctx context.Context, request openai.ThreadRequest) (openai.Thread, error)
	CreateMessage(ctx context.Context, threadID string, request openai.MessageRequest) (openai.Message, error)
	CreateRun(ctx context.Context, threadID string, request openai.RunRequest) (openai.Run, error)
	RetrieveRun(ctx context.Context, threadID, runID string) (openai.Run, error)
	SubmitToolOutputs(ctx context.Context, threadID, runID string, request openai.SubmitToolOutputsRequest) (openai.Run, error)
	ListMessage(ctx context.Context, threadID string, limit *int, order *string, after *string, before *string, runID *string) (openai.MessagesList, error)
}

// contextStore is the slice of the datastore needed to resolve threads and
// clue reference data.
type contextStore interface {
	GetConversationThreadID(conversationID string) (string, error)
	GetClue(clueID int) (*models.Clue, error)
}

// clueFetcher invokes the next-clue collaborator for the get_next_clue tool.
type clueFetcher interface {
	GetNextClue(ctx context.Context, phoneNumber string) (map[string]interface{}, error)
}

// adminLogger forwards operational events; implementations must tolerate
// failure silently.
type adminLogger interface {
	Log(ctx context.Context, msg string)
}

// Opts holds configuration options for the Responder.
type Opts struct {
	APIKey              string
	Model               string
	AssistantID         string
	Temperature         float32
	MaxCompletionTokens int
	PollInterval        time.Duration
	PollTimeout         time.Duration
}

// Option defines a configuration option for the Responder.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the run model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithAssistantID supplies a pre-provisioned assistant identity. When set,
// the Responder never creates an assistant of its own.
func WithAssistantID(id string) Option {
	return func(o *Opts) { o.AssistantID = id }
}

// WithPollInterval overrides the delay between run status checks.
func WithPollInterval(d time.Duration) Option {
	return func(o *Opts) { o.PollInterval = d }
}

// WithPollTimeout overrides the ceiling on total run polling time.
func WithPollTimeout(d time.Duration) Option {
	return func(o *Opts) { o.PollTimeout = d }
}

// Responder orchestrates one request-response cycle against the AI backend.
type Responder struct {
	client assistantService
	store  contextStore
	clues  clueFetcher
	admin  adminLogger

	model               string
	temperature         float32
	maxCompletionTokens int
	pollInterval        time.Duration
	pollTimeout         time.Duration

	configuredAssistantID string

	// cachedAssistantID is set at most once per process lifetime.
	mu                sync.Mutex
	cachedAssistantID string
}

// NewResponder creates a Responder backed by the real OpenAI client. The API
// key falls back to the OPENAI_API_KEY environment variable.
func NewResponder(st contextStore, clues clueFetcher, admin adminLogger, opts ...Option) (*Responder, error) {
	cfg := Opts{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	return newResponder(openai.NewClient(cfg.APIKey), st, clues, admin, cfg), nil
}

// newResponder wires a Responder around any assistantService, applying
// defaults for unset options.
func newResponder(client assistantService, st contextStore, clues clueFetcher, admin adminLogger, cfg Opts) *Responder {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.MaxCompletionTokens == 0 {
		cfg.MaxCompletionTokens = DefaultMaxCompletionTokens
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.PollTimeout == 0 {
		cfg.PollTimeout = DefaultPollTimeout
	}
	return &Responder{
		client:                client,
		store:                 st,
		clues:                 clues,
		admin:                 admin,
		model:                 cfg.Model,
		temperature:           cfg.Temperature,
		maxCompletionTokens:   cfg.MaxCompletionTokens,
		pollInterval:          cfg.PollInterval,
		pollTimeout:           cfg.PollTimeout,
		configuredAssistantID: cfg.AssistantID,
	}
}

// nextClueToolDefinition is the function tool schema advertised to the model.
func nextClueToolDefinition() openai.AssistantTool {
	return openai.AssistantTool{
		Type: openai.AssistantToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        string(models.ToolTypeNextClue),
			Description: "Get the next clue for the user and advance their progress",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"phone_number": {
						Type:        jsonschema.String,
						Description: "The user's phone number in E.164 format",
					},
				},
				Required: []string{"phone_number"},
			},
		},
	}
}
