package emitter

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/hupe1980/vaxmesh/core"
)

// ErrIncomplete is returned by Result before a terminal event was observed.
var ErrIncomplete = errors.New("emitter: turn not finished")

// ChatResponse is the caller-facing result of one user turn.
type ChatResponse struct {
	AgentName string                   `json:"agent_name"`
	History   core.ConversationContext `json:"history"`
	Data      any                      `json:"data"`
	DataType  string                   `json:"data_type,omitempty"`
	Message   string                   `json:"message"`
	UserInfo  core.UserSessionContext  `json:"user_info"`
	SessionID string                   `json:"session_id,omitempty"`
}

// Options configures an Emitter.
type Options struct {
	// OnText receives every text fragment as it arrives, e.g. for
	// server-sent streaming. Segment boundaries arrive as "\n".
	OnText func(text string)

	// TurnID, when set, drops events stamped with a different turn, such as
	// late events of a cancelled earlier turn on the same session.
	TurnID string
}

// Emitter accumulates the events of one turn. It is safe for concurrent use,
// though events are expected to be observed in order from a single listener.
type Emitter struct {
	opts Options

	mu          sync.Mutex
	text        strings.Builder
	payload     any
	payloadType string
	hasData     bool
	agents      []string
	response    *core.AgentResponse
	interrupted *core.AgentResponse
	err         error
}

// New creates an Emitter.
func New(optFns ...func(o *Options)) *Emitter {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Emitter{opts: opts}
}

// Observe records ev and reports whether it ended the turn. Events after the
// terminal one are ignored.
func (e *Emitter) Observe(ev core.Event) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.response != nil || e.err != nil {
		return true
	}

	if e.opts.TurnID != "" && ev.TurnID != "" && ev.TurnID != e.opts.TurnID {
		return false
	}

	switch ev.Type {
	case core.EventTextDelta:
		e.write(ev.Text)
	case core.EventPartDone:
		e.write("\n")
	case core.EventToolOutput:
		if ev.Result != nil && !ev.Result.IsError {
			e.payload = ev.Result.Content
			e.payloadType = ev.Result.DataType
			e.hasData = true
		}
	case core.EventHandoff:
		e.agents = append(e.agents, ev.Target)
	case core.EventResponse:
		if ev.Response != nil {
			resp := *ev.Response
			e.response = &resp
		}
	case core.EventFailure:
		e.err = ev.Err
		if e.err == nil {
			e.err = errors.New(ev.Text)
		}
	case core.EventInterrupted:
		e.err = ev.Err
		if e.err == nil {
			e.err = context.Canceled
		}

		if ev.Response != nil {
			resp := *ev.Response
			e.interrupted = &resp
		}
	}

	return ev.IsTerminal()
}

func (e *Emitter) write(s string) {
	e.text.WriteString(s)

	if e.opts.OnText != nil {
		e.opts.OnText(s)
	}
}

// Collect observes events until a terminal event arrives, the channel closes
// or ctx ends, and returns the assembled response.
func (e *Emitter) Collect(ctx context.Context, events <-chan core.Event) (ChatResponse, error) {
	for {
		select {
		case <-ctx.Done():
			return ChatResponse{}, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return e.Result()
			}

			if e.Observe(ev) {
				return e.Result()
			}
		}
	}
}

// Text returns the text accumulated so far.
func (e *Emitter) Text() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.text.String()
}

// Payload returns the last successful tool payload and whether there was one.
func (e *Emitter) Payload() (any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.payload, e.hasData
}

// Handoffs returns the agents control moved to during the turn, in order.
func (e *Emitter) Handoffs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]string(nil), e.agents...)
}

// Interrupted returns the conversation handed back by an interrupted turn,
// including tool results that completed before the turn stopped.
func (e *Emitter) Interrupted() (ChatResponse, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.interrupted == nil {
		return ChatResponse{}, false
	}

	return e.assemble(e.interrupted), true
}

// Result assembles the ChatResponse. It returns the failure error if the
// turn failed and ErrIncomplete if it has not finished.
func (e *Emitter) Result() (ChatResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.err != nil {
		return ChatResponse{}, e.err
	}

	if e.response == nil {
		return ChatResponse{}, ErrIncomplete
	}

	return e.assemble(e.response), nil
}

// assemble builds the response around resp. DataType describes Data, so it
// comes from the same tool result whenever there is a payload.
func (e *Emitter) assemble(resp *core.AgentResponse) ChatResponse {
	dataType := resp.Session.DataType
	if e.hasData {
		dataType = e.payloadType
	}

	return ChatResponse{
		AgentName: resp.ReplyTo,
		History:   resp.Context,
		Data:      e.payload,
		DataType:  dataType,
		Message:   e.text.String(),
		UserInfo:  resp.Session.Clone(),
	}
}
