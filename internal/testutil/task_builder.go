package testutil

import (
	"github.com/hupe1980/vaxmesh/core"
)

// TaskBuilder helps construct user tasks with fluent chaining for tests.
// Example:
//
//	task := NewTaskBuilder("sess-1").User("see my vaccination history").Date("2024-06-01").Build()
type TaskBuilder struct {
	sessionKey string
	messages   []core.Message
	session    core.UserSessionContext
	turn       int
	origin     string
	turnID     string
}

// NewTaskBuilder creates a new builder for a task in the given session.
func NewTaskBuilder(sessionKey string) *TaskBuilder {
	return &TaskBuilder{sessionKey: sessionKey}
}

// User appends a user message (chainable).
func (b *TaskBuilder) User(text string) *TaskBuilder {
	b.messages = append(b.messages, core.NewUserMessage(text))
	return b
}

// Messages appends arbitrary history messages (chainable).
func (b *TaskBuilder) Messages(msgs ...core.Message) *TaskBuilder {
	b.messages = append(b.messages, msgs...)
	return b
}

// Session replaces the session context (chainable).
func (b *TaskBuilder) Session(s core.UserSessionContext) *TaskBuilder {
	b.session = s.Clone()
	return b
}

// Date sets the session date (chainable).
func (b *TaskBuilder) Date(date string) *TaskBuilder {
	b.session.Date = date
	return b
}

// Auth sets the Authorization header forwarded to the store (chainable).
func (b *TaskBuilder) Auth(bearer string) *TaskBuilder {
	if b.session.AuthHeader == nil {
		b.session.AuthHeader = map[string]string{}
	}

	b.session.AuthHeader["Authorization"] = bearer

	return b
}

// Turn sets the turns already spent by earlier agents (chainable).
func (b *TaskBuilder) Turn(n int) *TaskBuilder { b.turn = n; return b }

// Origin sets the delegating agent (chainable).
func (b *TaskBuilder) Origin(agent string) *TaskBuilder { b.origin = agent; return b }

// TurnID sets the id of the user message the task belongs to (chainable).
func (b *TaskBuilder) TurnID(id string) *TaskBuilder { b.turnID = id; return b }

// Build returns the task.
func (b *TaskBuilder) Build() core.UserTask {
	return core.UserTask{
		SessionKey: b.sessionKey,
		Context:    core.NewConversationContext(b.messages...),
		Session:    b.session.Clone(),
		Turn:       b.turn,
		Origin:     b.origin,
		TurnID:     b.turnID,
	}
}
