package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -------------------- Message Tests --------------------

func TestMessage_Constructors(t *testing.T) {
	user := NewUserMessage("hi")
	assert.Equal(t, RoleUser, user.Role)
	assert.Equal(t, "hi", user.Text())

	calls := []ToolCall{{ID: "a", Name: "one"}, {ID: "b", Name: "two"}}
	callMsg := NewToolCallMessage("agentA", calls)
	assert.Equal(t, RoleAssistant, callMsg.Role)
	assert.Equal(t, "agentA", callMsg.Source)
	assert.Equal(t, calls, callMsg.ToolCalls())
	assert.Empty(t, callMsg.Text())

	results := []ToolExecutionResult{{CallID: "a", Name: "one", Content: 1}, {CallID: "b", Name: "two", IsError: true}}
	resMsg := NewToolResultMessage("agentA", results)
	assert.Equal(t, RoleTool, resMsg.Role)
	assert.Equal(t, results, resMsg.ToolResults())
}

func TestMessage_JSONRoundTrip(t *testing.T) {
	orig := Message{
		Role:   RoleAssistant,
		Source: "orchestrator_agent",
		Parts: []Part{
			TextPart{Text: "checking"},
			DataPart{Data: map[string]any{"k": "v"}},
			ToolCallPart{Call: ToolCall{ID: "c1", Name: "transfer_to_x", Arguments: "{}"}},
			ToolResultPart{Result: ToolExecutionResult{CallID: "c1", Name: "transfer_to_x", Content: "done"}},
		},
	}

	data, err := json.Marshal(orig)
	require.NoError(t, err)

	var decoded Message
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, orig, decoded)
}

func TestMessage_UnmarshalPlainContent(t *testing.T) {
	var m Message
	require.NoError(t, json.Unmarshal([]byte(`{"role":"user","content":"book a flu shot"}`), &m))
	assert.Equal(t, RoleUser, m.Role)
	assert.Equal(t, "book a flu shot", m.Text())
}

func TestMessage_UnmarshalUnknownPart(t *testing.T) {
	var m Message
	err := json.Unmarshal([]byte(`{"role":"user","parts":[{"type":"video"}]}`), &m)
	assert.Error(t, err)
}

// -------------------- ConversationContext Tests --------------------

func TestConversationContext_AppendDoesNotMutateReceiver(t *testing.T) {
	base := NewConversationContext(NewUserMessage("one"))
	a := base.Append(NewAssistantText("x", "two"))
	b := base.Append(NewAssistantText("y", "three"))

	assert.Equal(t, 1, base.Len())
	require.Equal(t, 2, a.Len())
	require.Equal(t, 2, b.Len())
	assert.Equal(t, "two", a.Messages()[1].Text())
	assert.Equal(t, "three", b.Messages()[1].Text())

	last, ok := b.Last()
	require.True(t, ok)
	assert.Equal(t, "y", last.Source)
}

func TestConversationContext_MessagesIsCopy(t *testing.T) {
	c := NewConversationContext(NewUserMessage("one"))
	msgs := c.Messages()
	msgs[0] = NewUserMessage("changed")
	assert.Equal(t, "one", c.Messages()[0].Text())
}

func TestConversationContext_JSON(t *testing.T) {
	empty, err := json.Marshal(ConversationContext{})
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(empty))

	c := NewConversationContext(NewUserMessage("hi"), NewAssistantText("a", "hello"))
	data, err := json.Marshal(c)
	require.NoError(t, err)

	var decoded ConversationContext
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, c.Messages(), decoded.Messages())
}
