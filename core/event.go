package core

import (
	"time"

	"github.com/google/uuid"
)

// EventType classifies events streamed from a running agent to the caller.
type EventType string

const (
	// EventTextDelta carries an incremental text fragment.
	EventTextDelta EventType = "text_delta"
	// EventPartDone marks the end of a streamed text segment.
	EventPartDone EventType = "part_done"
	// EventToolOutput carries one ToolExecutionResult, separately from prose.
	EventToolOutput EventType = "tool_output"
	// EventHandoff records that control moved to another agent.
	EventHandoff EventType = "handoff"
	// EventResponse carries the terminal AgentResponse.
	EventResponse EventType = "response"
	// EventFailure carries a fatal error that ended the turn loop.
	EventFailure EventType = "failure"
	// EventInterrupted reports a turn loop stopped by cancellation. Response,
	// when set, holds the conversation including tool results that completed
	// before the loop stopped.
	EventInterrupted EventType = "interrupted"
)

// Event is the unit of communication between running agents and the caller
// listening on a session. After emission it should be treated as immutable.
type Event struct {
	ID         string               `json:"id"`
	Type       EventType            `json:"type"`
	SessionKey string               `json:"session_key"`
	TurnID     string               `json:"turn_id,omitempty"`
	Author     string               `json:"author"`
	Timestamp  time.Time            `json:"timestamp"`
	Text       string               `json:"text,omitempty"`
	Result     *ToolExecutionResult `json:"result,omitempty"`
	Session    *UserSessionContext  `json:"session,omitempty"`
	Target     string               `json:"target,omitempty"`
	Response   *AgentResponse       `json:"response,omitempty"`
	Err        error                `json:"-"`
}

// NewEvent creates a bare event authored by author for a session.
// Prefer the helper constructors for the common categories.
func NewEvent(t EventType, sessionKey, author string) Event {
	return Event{
		ID:         NewID(),
		Type:       t,
		SessionKey: sessionKey,
		Author:     author,
		Timestamp:  time.Now().UTC(),
	}
}

// NewTextDeltaEvent creates a streamed text fragment event.
func NewTextDeltaEvent(sessionKey, author, text string) Event {
	e := NewEvent(EventTextDelta, sessionKey, author)
	e.Text = text

	return e
}

// NewPartDoneEvent marks a completed text segment.
func NewPartDoneEvent(sessionKey, author string) Event {
	return NewEvent(EventPartDone, sessionKey, author)
}

// NewToolOutputEvent captures a tool result together with the session state
// the tool left behind.
func NewToolOutputEvent(sessionKey, author string, res ToolExecutionResult, sess UserSessionContext) Event {
	e := NewEvent(EventToolOutput, sessionKey, author)
	e.Result = &res
	s := sess.Clone()
	e.Session = &s

	return e
}

// NewHandoffEvent records a delegation from author to target.
func NewHandoffEvent(sessionKey, author, target string) Event {
	e := NewEvent(EventHandoff, sessionKey, author)
	e.Target = target

	return e
}

// NewResponseEvent wraps the terminal AgentResponse.
func NewResponseEvent(sessionKey string, resp AgentResponse) Event {
	e := NewEvent(EventResponse, sessionKey, resp.Agent)
	e.Response = &resp

	return e
}

// NewFailureEvent wraps a fatal error.
func NewFailureEvent(sessionKey, author string, err error) Event {
	e := NewEvent(EventFailure, sessionKey, author)
	e.Err = err
	e.Text = err.Error()

	return e
}

// NewInterruptedEvent reports cancellation of author's loop. resp may be nil
// when nothing ran that the conversation must record.
func NewInterruptedEvent(sessionKey, author string, resp *AgentResponse, err error) Event {
	e := NewEvent(EventInterrupted, sessionKey, author)
	e.Response = resp
	e.Err = err

	if err != nil {
		e.Text = err.Error()
	}

	return e
}

// NewID generates a new unique identifier.
func NewID() string { return uuid.NewString() }

// IsTerminal reports whether the event ends the caller's wait for this turn.
func (e Event) IsTerminal() bool {
	return e.Type == EventResponse || e.Type == EventFailure || e.Type == EventInterrupted
}
