// Package flow implements the turn loop that drives one agent invocation:
// build the model request, invoke the model, classify its answer and then
// finish with text, execute a batch of direct tools and loop, or hand the
// conversation to exactly one delegate.
package flow

import (
	"github.com/hupe1980/vaxmesh/agent"
	"github.com/hupe1980/vaxmesh/core"
	"github.com/hupe1980/vaxmesh/model"
)

// Invocation is what request processors see of the running agent.
type Invocation struct {
	Definition   agent.Definition
	Toolset      *agent.Toolset
	Conversation core.ConversationContext
}

// RequestProcessor processes the request before sending it to the model.
type RequestProcessor interface {
	// Name returns the processor's identifier.
	Name() string
	// ProcessRequest modifies the model request before execution.
	ProcessRequest(runCtx *core.RunContext, req *model.Request, inv *Invocation) error
}
