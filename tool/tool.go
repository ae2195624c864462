// Package tool implements the capability layer agents call through the model:
// direct tools with schema validated arguments, delegate tools that only resolve
// a handoff target, and the closed catalog both are registered in.
package tool

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/vaxmesh/core"
	"github.com/hupe1980/vaxmesh/internal/util"
)

// Tool defines the interface for a capability an agent may call.
//
// Tools are registered in a Catalog under a closed set of ids and bound to
// agents by name. Implementations must be safe for concurrent use since one
// tool value serves every session.
type Tool interface {
	// Name returns the unique identifier for this tool (snake_case).
	Name() string

	// Description returns the text shown to the model to decide when to call the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	Parameters() map[string]any

	// Call executes the tool with validated arguments. Tools touch session
	// state only through toolCtx.
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// Error codes carried by ToolError.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodeStore      = "STORE_ERROR"
	CodeTimeout    = "TIMEOUT"
)

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details

	cause error
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *ToolError) Unwrap() error { return e.cause }

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}

// WrapToolError creates a ToolError that unwraps to cause.
func WrapToolError(tool, code string, cause error) *ToolError {
	return &ToolError{Tool: tool, Message: cause.Error(), Code: code, cause: cause}
}

// ParseArguments decodes the JSON argument payload of call. An empty payload
// decodes to an empty map; malformed JSON yields a *core.ToolArgumentError.
func ParseArguments(call core.ToolCall) (map[string]any, error) {
	raw := strings.TrimSpace(call.Arguments)
	if raw == "" || raw == "null" {
		return map[string]any{}, nil
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, &core.ToolArgumentError{Tool: call.Name, Cause: fmt.Errorf("arguments are not a JSON object: %w", err)}
	}

	if args == nil {
		args = map[string]any{}
	}

	return args, nil
}
