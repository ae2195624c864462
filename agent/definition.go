package agent

import "github.com/hupe1980/vaxmesh/model"

// Definition is the static description of one agent.
type Definition struct {
	// Name is globally unique and doubles as the agent's topic.
	Name string
	// Description is shown to other agents' models on the delegate tool.
	Description string
	// Instruction is the system prompt, static or computed from the session.
	Instruction Instruction
	// Tools lists the direct tool ids the agent may call.
	Tools []string
	// Delegates lists the agents the agent may hand off to.
	Delegates []string
	// Model binds a specific model; nil uses the controller's default.
	Model model.Model
	// OneShot agents return routing to the root after answering.
	OneShot bool
	// Resumable agents may be named by a caller to continue a conversation.
	Resumable bool
}
