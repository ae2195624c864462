package core

// Part represents a polymorphic segment of a message. Concrete part types
// implement the unexported isPart marker enabling a closed set.
type Part interface{ isPart() }

// TextPart is a plain text content segment.
type TextPart struct {
	Text string
}

// isPart implements the Part interface for TextPart.
func (TextPart) isPart() {}

// DataPart is a structured data segment (e.g., JSON object map).
type DataPart struct {
	Data map[string]any
}

// isPart implements the Part interface for DataPart.
func (DataPart) isPart() {}

// ToolCall describes a model-requested action.
type ToolCall struct {
	ID        string `json:"id"`                  // Correlates the call with its result
	Name      string `json:"name"`                // Direct tool or delegate tool name
	Arguments string `json:"arguments,omitempty"` // Serialized argument payload (JSON)
}

// ToolCallPart wraps a ToolCall as a content part.
type ToolCallPart struct {
	Call ToolCall
}

// isPart implements the Part interface for ToolCallPart.
func (ToolCallPart) isPart() {}

// ToolExecutionResult is the outcome of running a ToolCall. CallID always
// matches the originating ToolCall.ID.
type ToolExecutionResult struct {
	CallID  string `json:"call_id"`
	Name    string `json:"name"`
	Content any    `json:"content,omitempty"`
	IsError bool   `json:"is_error,omitempty"`
	// DataType tags Content for callers rendering structured payloads.
	DataType string `json:"data_type,omitempty"`
}

// ToolResultPart wraps a ToolExecutionResult as a content part.
type ToolResultPart struct {
	Result ToolExecutionResult
}

// isPart implements the Part interface for ToolResultPart.
func (ToolResultPart) isPart() {}

// NewErrorResult builds an error-flagged result for the given call.
func NewErrorResult(call ToolCall, err error) ToolExecutionResult {
	return ToolExecutionResult{CallID: call.ID, Name: call.Name, Content: err.Error(), IsError: true}
}
