// Package models defines tool structures for LLM function calling.
package models

import (
	"encoding/json"
	"fmt"
)

// ToolType defines the type of tool available to the LLM.
type ToolType string

const (
	// ToolTypeNextClue advances the user's progress and returns the next clue.
	ToolTypeNextClue ToolType = "get_next_clue"
)

// NextClueParams defines the parameters for the get_next_clue tool call.
type NextClueParams struct {
	PhoneNumber string `json:"phone_number"` // User's phone number in E.164 format
}

// Validate ensures the next-clue tool parameters are usable.
func (p *NextClueParams) Validate() error {
	if p.PhoneNumber == "" {
		return fmt.Errorf("phone_number is required")
	}
	return nil
}

// FunctionCall represents the function details within a tool call.
type FunctionCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolCall represents an LLM tool function call.
type ToolCall struct {
	ID       string       `json:"id"`       // Tool call ID from OpenAI
	Type     string       `json:"type"`     // Always "function" for OpenAI
	Function FunctionCall `json:"function"` // Function details
}

// ParseNextClueParams parses the arguments as NextClueParams.
func (fc *FunctionCall) ParseNextClueParams() (*NextClueParams, error) {
	if fc.Name != string(ToolTypeNextClue) {
		return nil, fmt.Errorf("function name %s is not a next-clue function", fc.Name)
	}

	var params NextClueParams
	if len(fc.Arguments) > 0 {
		if err := json.Unmarshal(fc.Arguments, &params); err != nil {
			return nil, fmt.Errorf("failed to parse next-clue parameters: %w", err)
		}
	}

	return &params, nil
}

// ToolError is the payload returned to the model when a tool invocation
// fails. Per-tool failures never abort the output batch.
type ToolError struct {
	Error string `json:"error"`
}
