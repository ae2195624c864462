package core

import (
	"context"
	"maps"
	"sync"

	"github.com/hupe1980/vaxmesh/logging"
)

// ToolContext provides a constrained surface for tool implementations
// invoked by an agent: the call identity, a cancellable context and guarded
// access to the session's slot-filling state.
type ToolContext struct {
	ctx    context.Context
	runCtx *RunContext
	call   ToolCall

	mu       sync.Mutex
	dataType string

	*loggerAdapter
}

// NewToolContext constructs a tool context bound to a parent RunContext.
// ctx usually derives from runCtx.Context with a per-call timeout.
func NewToolContext(ctx context.Context, runCtx *RunContext, call ToolCall) *ToolContext {
	return &ToolContext{
		ctx:           ctx,
		runCtx:        runCtx,
		call:          call,
		loggerAdapter: newLoggerAdapter(runCtx.Logger(), "tool", call.Name, "call_id", call.ID),
	}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// SessionKey returns the session key of the invocation.
func (tc *ToolContext) SessionKey() string { return tc.runCtx.SessionKey }

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.loggerAdapter.Logger() }

// FunctionCallID returns the id of the call being executed.
func (tc *ToolContext) FunctionCallID() string { return tc.call.ID }

// AgentName returns the name of the calling agent.
func (tc *ToolContext) AgentName() string { return tc.runCtx.Agent }

// Session returns a snapshot of the session context.
func (tc *ToolContext) Session() UserSessionContext { return tc.runCtx.Session() }

// AuthHeader returns a copy of the session's outbound authorization headers.
func (tc *ToolContext) AuthHeader() map[string]string {
	return maps.Clone(tc.runCtx.Session().AuthHeader)
}

// UpdateSession mutates the session context. Tools are the only writers.
func (tc *ToolContext) UpdateSession(fn func(s *UserSessionContext)) {
	tc.runCtx.UpdateSession(fn)
	tc.LogDebug("tool.session.updated")
}

// SetDataType tags the payload type of the tool's result. The tag travels
// with the result; the session's DataType follows the results of a batch in
// call order once the batch completes.
func (tc *ToolContext) SetDataType(dataType string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	tc.dataType = dataType
}

// DataType returns the tag set by SetDataType.
func (tc *ToolContext) DataType() string {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	return tc.dataType
}
