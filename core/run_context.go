package core

import (
	"context"
	"sync"

	"github.com/hupe1980/vaxmesh/logging"
)

// Outbox is the delivery surface a running agent instance uses to hand off
// work and to stream events to whoever listens on the session.
type Outbox interface {
	// Publish delivers task to topic under task.SessionKey without waiting
	// for the receiving agent.
	Publish(ctx context.Context, topic string, task UserTask) error
	// Emit forwards ev to the session's listener.
	Emit(ctx context.Context, ev Event) error
}

// RunContext carries execution state & helpers for one agent invocation
// handling one UserTask. It aggregates:
//   - The ambient cancellation Context
//   - Identifiers (SessionKey, RunID, Agent)
//   - The turn limiter shared by the handoff chain
//   - The working UserSessionContext, guarded for concurrent tool writes
//   - The Outbox for handoff and event emission
type RunContext struct {
	Context    context.Context
	SessionKey string
	TurnID     string
	RunID      string
	Agent      string
	Limiter    *TurnLimiter
	Outbox     Outbox

	session UserSessionContext
	mu      sync.RWMutex

	*loggerAdapter
}

// NewRunContext constructs a RunContext for agent handling task.
func NewRunContext(
	ctx context.Context,
	task UserTask,
	agent string,
	maxTurns int,
	outbox Outbox,
	logger logging.Logger,
) *RunContext {
	runID := NewID()

	return &RunContext{
		Context:       ctx,
		SessionKey:    task.SessionKey,
		TurnID:        task.TurnID,
		RunID:         runID,
		Agent:         agent,
		Limiter:       NewTurnLimiter(maxTurns, task.Turn),
		Outbox:        outbox,
		session:       task.Session.Clone(),
		loggerAdapter: newLoggerAdapter(logger, "session_key", task.SessionKey, "agent", agent, "run_id", runID),
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (rc *RunContext) Err() error { return rc.Context.Err() }

// Session returns a snapshot of the working session context.
func (rc *RunContext) Session() UserSessionContext {
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	return rc.session.Clone()
}

// UpdateSession applies fn to the working session context under lock.
func (rc *RunContext) UpdateSession(fn func(s *UserSessionContext)) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	fn(&rc.session)
}

// EmitEvent forwards ev through the outbox, stamped with the session key and
// turn id of the run. A nil outbox drops the event.
func (rc *RunContext) EmitEvent(ev Event) error {
	return rc.emit(rc.Context, ev)
}

// EmitEventDetached is EmitEvent ignoring cancellation of the run. It reports
// work that finished after the run was cancelled.
func (rc *RunContext) EmitEventDetached(ev Event) error {
	return rc.emit(context.WithoutCancel(rc.Context), ev)
}

func (rc *RunContext) emit(ctx context.Context, ev Event) error {
	if rc.Outbox == nil {
		return nil
	}

	if ev.SessionKey == "" {
		ev.SessionKey = rc.SessionKey
	}

	ev.TurnID = rc.TurnID

	return rc.Outbox.Emit(ctx, ev)
}
