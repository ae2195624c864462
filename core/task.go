package core

// UserTask is the unit of work published to an agent topic. It carries all
// mutable session data; agent instances keep none of their own.
type UserTask struct {
	SessionKey string              `json:"session_key"`
	Context    ConversationContext `json:"context"`
	Session    UserSessionContext  `json:"session"`
	// Turn is the number of model invocations already spent on the current
	// user message by earlier agents in the handoff chain.
	Turn int `json:"turn"`
	// Origin names the agent that delegated this task (empty for user input).
	Origin string `json:"origin,omitempty"`
	// TurnID identifies the user message being handled. Handoffs keep it and
	// every event emitted for the task carries it.
	TurnID string `json:"turn_id,omitempty"`
}

// AgentResponse is emitted when an agent ends its loop with plain text.
type AgentResponse struct {
	// Agent is the agent that produced the final text.
	Agent string `json:"agent"`
	// ReplyTo is the topic the next user message should be published to.
	ReplyTo string              `json:"reply_to"`
	Context ConversationContext `json:"context"`
	Session UserSessionContext  `json:"session"`
}
