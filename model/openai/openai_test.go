package openai

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vaxmesh/core"
	"github.com/hupe1980/vaxmesh/model"
)

func TestBuildMessages(t *testing.T) {
	req := model.Request{
		Instructions: "You are the orchestrator.",
		Messages: []core.Message{
			core.NewUserMessage("book a flu shot"),
			core.NewToolCallMessage("orchestrator_agent", []core.ToolCall{{ID: "c1", Name: "transfer_to_appointments_agent"}}),
			core.NewToolResultMessage("orchestrator_agent", []core.ToolExecutionResult{{CallID: "c1", Content: "Transferred"}}),
			core.NewAssistantText("appointments_agent", "Which vaccine?"),
		},
	}

	msgs := buildMessages(req)
	require.Len(t, msgs, 5)
	assert.NotNil(t, msgs[0].OfSystem)
	assert.NotNil(t, msgs[1].OfUser)
	require.NotNil(t, msgs[2].OfAssistant)
	require.Len(t, msgs[2].OfAssistant.ToolCalls, 1)
	assert.Equal(t, "{}", msgs[2].OfAssistant.ToolCalls[0].Function.Arguments)
	require.NotNil(t, msgs[3].OfTool)
	assert.Equal(t, "c1", msgs[3].OfTool.ToolCallID)
	assert.NotNil(t, msgs[4].OfAssistant)
}

func TestFinalMessage_OrdersCallsByIndex(t *testing.T) {
	agg := map[int64]*aggCall{
		1: {id: "b", name: "get_booking_slot", args: `{"booking_slot_id":2}`},
		0: {id: "a", name: "get_available_slots", args: `{}`},
	}

	msg := finalMessage("", agg)
	calls := msg.ToolCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "a", calls[0].ID)
	assert.Equal(t, "b", calls[1].ID)
	assert.Empty(t, msg.Text())
}

func TestInfo(t *testing.T) {
	m := NewModel(func(o *Options) { o.Model = "gpt-4o"; o.APIKey = "test" })
	assert.Equal(t, model.Info{Name: "gpt-4o", Provider: "openai", SupportsTools: true}, m.Info())
}

func TestGenerate_StopsWhenReaderLeaves(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")

		for i := range 64 {
			fmt.Fprintf(w, "data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"m\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"w%d \"}}]}\n\n", i)
		}

		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)

	m := NewModel(func(o *Options) {
		o.APIKey = "test"
		o.BaseURL = srv.URL + "/"
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, errCh := m.Generate(ctx, model.Request{Stream: true})

	require.Eventually(t, func() bool { return len(out) == cap(out) }, 2*time.Second, 5*time.Millisecond)
	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-errCh:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond, "generation must end once the context is cancelled")
}
