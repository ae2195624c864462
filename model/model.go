package model

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hupe1980/vaxmesh/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// NewFunctionDefinition builds a function ToolDefinition.
func NewFunctionDefinition(name, description string, parameters map[string]any) ToolDefinition {
	return ToolDefinition{
		Type:     "function",
		Function: FunctionDefinition{Name: name, Description: description, Parameters: parameters},
	}
}

// Request captures the normalized model input produced by the turn loop.
type Request struct {
	Instructions string           `json:"instructions"` // Resolved system prompt
	Messages     []core.Message   `json:"messages"`     // Ordered conversation history
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model.
//
// Partial chunks carry text fragments only, in arrival order. The final chunk
// carries the complete assistant message: its full text and/or every tool
// call in the order the model issued them.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"`
	Message      core.Message `json:"message"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "scripted", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by the turn loop to drive generation.
//
// Generate returns a response channel and an error channel. Both are closed
// when generation ends; at most one error is sent.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// ResultText renders a tool result payload as the text handed back to a provider.
func ResultText(res core.ToolExecutionResult) string {
	var body string

	switch v := res.Content.(type) {
	case nil:
		body = ""
	case string:
		body = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			body = fmt.Sprintf("%v", v)
		} else {
			body = string(b)
		}
	}

	if res.IsError {
		return "error: " + body
	}

	return body
}
