package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role identifies the speaker of a message.
type Role string

const (
	// RoleUser marks messages typed by the end user.
	RoleUser Role = "user"
	// RoleAssistant marks model output (text or structured calls).
	RoleAssistant Role = "assistant"
	// RoleTool marks tool execution results fed back to the model.
	RoleTool Role = "tool"
	// RoleSystem marks system instructions.
	RoleSystem Role = "system"
)

// Message is one turn in the conversation. Messages are immutable once
// appended to a ConversationContext.
type Message struct {
	Role   Role   // Speaker role
	Source string // Authoring agent name (empty for user messages)
	Parts  []Part // Ordered heterogeneous parts
}

// NewUserMessage creates a user-authored text message.
func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Parts: []Part{TextPart{Text: text}}}
}

// NewAssistantText creates an assistant text message authored by agent.
func NewAssistantText(agent, text string) Message {
	return Message{Role: RoleAssistant, Source: agent, Parts: []Part{TextPart{Text: text}}}
}

// NewToolCallMessage creates the assistant message carrying a batch of calls.
func NewToolCallMessage(agent string, calls []ToolCall) Message {
	parts := make([]Part, len(calls))
	for i, c := range calls {
		parts[i] = ToolCallPart{Call: c}
	}

	return Message{Role: RoleAssistant, Source: agent, Parts: parts}
}

// NewToolResultMessage creates the tool message carrying a batch of results.
func NewToolResultMessage(agent string, results []ToolExecutionResult) Message {
	parts := make([]Part, len(results))
	for i, r := range results {
		parts[i] = ToolResultPart{Result: r}
	}

	return Message{Role: RoleTool, Source: agent, Parts: parts}
}

// Text concatenates all text parts.
func (m Message) Text() string {
	var sb strings.Builder
	for _, p := range m.Parts {
		if tp, ok := p.(TextPart); ok {
			sb.WriteString(tp.Text)
		}
	}

	return sb.String()
}

// ToolCalls returns the structured calls contained in the message
// preserving their original order.
func (m Message) ToolCalls() []ToolCall {
	var calls []ToolCall
	for _, p := range m.Parts {
		if cp, ok := p.(ToolCallPart); ok {
			calls = append(calls, cp.Call)
		}
	}

	return calls
}

// ToolResults returns the tool results contained in the message preserving
// their original order.
func (m Message) ToolResults() []ToolExecutionResult {
	var results []ToolExecutionResult
	for _, p := range m.Parts {
		if rp, ok := p.(ToolResultPart); ok {
			results = append(results, rp.Result)
		}
	}

	return results
}

type wirePart struct {
	Type   string               `json:"type"`
	Text   string               `json:"text,omitempty"`
	Data   map[string]any       `json:"data,omitempty"`
	Call   *ToolCall            `json:"tool_call,omitempty"`
	Result *ToolExecutionResult `json:"tool_result,omitempty"`
}

type wireMessage struct {
	Role    Role       `json:"role"`
	Source  string     `json:"source,omitempty"`
	Parts   []wirePart `json:"parts,omitempty"`
	Content *string    `json:"content,omitempty"` // plain {"role","content"} history items
}

// MarshalJSON encodes the message with a tagged part list.
func (m Message) MarshalJSON() ([]byte, error) {
	wm := wireMessage{Role: m.Role, Source: m.Source, Parts: make([]wirePart, 0, len(m.Parts))}

	for _, p := range m.Parts {
		switch v := p.(type) {
		case TextPart:
			wm.Parts = append(wm.Parts, wirePart{Type: "text", Text: v.Text})
		case DataPart:
			wm.Parts = append(wm.Parts, wirePart{Type: "data", Data: v.Data})
		case ToolCallPart:
			call := v.Call
			wm.Parts = append(wm.Parts, wirePart{Type: "tool_call", Call: &call})
		case ToolResultPart:
			res := v.Result
			wm.Parts = append(wm.Parts, wirePart{Type: "tool_result", Result: &res})
		}
	}

	return json.Marshal(wm)
}

// UnmarshalJSON decodes the tagged part list. Plain {"role","content"}
// items as sent by simple chat clients are accepted as a single text part.
func (m *Message) UnmarshalJSON(data []byte) error {
	var wm wireMessage
	if err := json.Unmarshal(data, &wm); err != nil {
		return err
	}

	msg := Message{Role: wm.Role, Source: wm.Source}

	if len(wm.Parts) == 0 && wm.Content != nil {
		msg.Parts = []Part{TextPart{Text: *wm.Content}}
		*m = msg

		return nil
	}

	for i, wp := range wm.Parts {
		switch wp.Type {
		case "text":
			msg.Parts = append(msg.Parts, TextPart{Text: wp.Text})
		case "data":
			msg.Parts = append(msg.Parts, DataPart{Data: wp.Data})
		case "tool_call":
			if wp.Call == nil {
				return fmt.Errorf("message part %d: tool_call payload missing", i)
			}
			msg.Parts = append(msg.Parts, ToolCallPart{Call: *wp.Call})
		case "tool_result":
			if wp.Result == nil {
				return fmt.Errorf("message part %d: tool_result payload missing", i)
			}
			msg.Parts = append(msg.Parts, ToolResultPart{Result: *wp.Result})
		default:
			return fmt.Errorf("message part %d: unknown type %q", i, wp.Type)
		}
	}

	*m = msg

	return nil
}

// ConversationContext is the ordered, append-only message history of a
// session. Append never mutates the receiver; branching to a delegate copies
// and extends.
type ConversationContext struct {
	messages []Message
}

// NewConversationContext creates a context holding msgs in order.
func NewConversationContext(msgs ...Message) ConversationContext {
	return ConversationContext{}.Append(msgs...)
}

// Append returns a new context extended with msgs.
func (c ConversationContext) Append(msgs ...Message) ConversationContext {
	out := make([]Message, 0, len(c.messages)+len(msgs))
	out = append(out, c.messages...)
	out = append(out, msgs...)

	return ConversationContext{messages: out}
}

// Messages returns a defensive copy of the history.
func (c ConversationContext) Messages() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)

	return out
}

// Len returns the number of messages.
func (c ConversationContext) Len() int { return len(c.messages) }

// Last returns the most recent message.
func (c ConversationContext) Last() (Message, bool) {
	if len(c.messages) == 0 {
		return Message{}, false
	}

	return c.messages[len(c.messages)-1], true
}

// MarshalJSON encodes the history as a JSON array.
func (c ConversationContext) MarshalJSON() ([]byte, error) {
	if c.messages == nil {
		return []byte("[]"), nil
	}

	return json.Marshal(c.messages)
}

// UnmarshalJSON decodes a JSON array of messages.
func (c *ConversationContext) UnmarshalJSON(data []byte) error {
	var msgs []Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return err
	}

	c.messages = msgs

	return nil
}
