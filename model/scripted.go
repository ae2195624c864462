package model

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/hupe1980/vaxmesh/core"
)

// ErrScriptExhausted is returned when a ScriptedModel runs out of steps.
var ErrScriptExhausted = errors.New("model: script exhausted")

// Step is one canned model turn: an assistant message or an error.
type Step struct {
	Message core.Message
	Err     error
	// Wait blocks the step until the context is cancelled.
	Wait bool
}

// TextStep answers with plain text.
func TextStep(text string) Step {
	return Step{Message: core.Message{Role: core.RoleAssistant, Parts: []core.Part{core.TextPart{Text: text}}}}
}

// CallStep answers with a batch of tool calls.
func CallStep(calls ...core.ToolCall) Step {
	parts := make([]core.Part, len(calls))
	for i, c := range calls {
		parts[i] = core.ToolCallPart{Call: c}
	}

	return Step{Message: core.Message{Role: core.RoleAssistant, Parts: parts}}
}

// ErrorStep fails the generation with err.
func ErrorStep(err error) Step { return Step{Err: err} }

// ScriptedModel replays a fixed sequence of steps, one per Generate call,
// regardless of the request. It records every request it receives. When
// streaming, text is split into word fragments emitted as partial responses.
// Safe for concurrent use; steps are consumed in call order.
type ScriptedModel struct {
	mu       sync.Mutex
	info     Info
	steps    []Step
	requests []Request
}

// NewScriptedModel constructs a ScriptedModel over steps.
func NewScriptedModel(steps ...Step) *ScriptedModel {
	return &ScriptedModel{
		info:  Info{Name: "scripted", Provider: "scripted", SupportsTools: true},
		steps: steps,
	}
}

// Append adds steps to the end of the script.
func (m *ScriptedModel) Append(steps ...Step) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.steps = append(m.steps, steps...)
}

// Requests returns the requests received so far.
func (m *ScriptedModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]Request(nil), m.requests...)
}

// Remaining returns the number of unconsumed steps.
func (m *ScriptedModel) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.steps)
}

// Generate implements Model.
func (m *ScriptedModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.requests = append(m.requests, req)

	var (
		step Step
		ok   bool
	)

	if len(m.steps) > 0 {
		step, m.steps, ok = m.steps[0], m.steps[1:], true
	}
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)

		if !ok {
			errCh <- ErrScriptExhausted
			return
		}

		if step.Wait {
			<-ctx.Done()
			errCh <- ctx.Err()

			return
		}

		if step.Err != nil {
			errCh <- step.Err
			return
		}

		if text := step.Message.Text(); req.Stream && text != "" {
			for _, frag := range fragments(text) {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Message: core.NewAssistantText("", frag)}:
				}
			}
		}

		finish := "stop"
		if len(step.Message.ToolCalls()) > 0 {
			finish = "tool_calls"
		}

		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- Response{ID: core.NewID(), Message: step.Message, FinishReason: finish}:
		}
	}()

	return respCh, errCh
}

// Info implements Model.
func (m *ScriptedModel) Info() Info { return m.info }

// fragments splits text after each space, keeping the separators so the
// fragments concatenate back to text.
func fragments(text string) []string {
	var out []string

	for len(text) > 0 {
		i := strings.IndexByte(text, ' ')
		if i < 0 {
			out = append(out, text)
			break
		}

		out = append(out, text[:i+1])
		text = text[i+1:]
	}

	return out
}
