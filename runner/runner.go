package runner

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/vaxmesh/agent"
	"github.com/hupe1980/vaxmesh/bus"
	"github.com/hupe1980/vaxmesh/core"
	"github.com/hupe1980/vaxmesh/emitter"
	"github.com/hupe1980/vaxmesh/internal/telemetry"
	"github.com/hupe1980/vaxmesh/logging"
	"github.com/hupe1980/vaxmesh/session"
)

// FallbackMessage is the answer given when a turn fails.
const FallbackMessage = "Something went wrong, please try again."

// ErrEmptyMessage is returned for a request without message text.
var ErrEmptyMessage = errors.New("runner: message is required")

// ErrSessionOwner is returned when a stored session belongs to another
// subject than the caller.
var ErrSessionOwner = errors.New("runner: session belongs to another user")

// DefaultDrainTimeout bounds the wait for a cancelled turn to hand back the
// results of tool calls that were already running.
const DefaultDrainTimeout = 5 * time.Second

// ChatRequest is one user message plus the state needed to continue the
// conversation. Nil History and UserInfo mean "not sent".
type ChatRequest struct {
	Message   string                    `json:"message"`
	History   *core.ConversationContext `json:"history,omitempty"`
	AgentName string                    `json:"agent_name,omitempty"`
	UserInfo  *core.UserSessionContext  `json:"user_info,omitempty"`
	SessionID string                    `json:"session_id,omitempty"`

	// Subject is the verified caller owning the stored session. It is set by
	// the transport, never decoded from the request body.
	Subject string `json:"-"`
}

// Options configures a Runner.
type Options struct {
	// Store enables server-side resume for requests carrying a session id.
	Store session.Store
	// SessionDate is the date given to sessions without one. Empty means today.
	SessionDate string
	// Timeout bounds one turn. Zero disables the bound.
	Timeout time.Duration
	// DrainTimeout bounds the wait for a cancelled turn to report tool
	// results. Defaults to DefaultDrainTimeout.
	DrainTimeout time.Duration
	// Logger defaults to NoOp when nil.
	Logger logging.Logger
	// Tracer defaults to the global tracer.
	Tracer trace.Tracer
}

// Runner serves chat requests over a bus whose topics are the registry's
// agents. Public methods are safe for concurrent use.
type Runner struct {
	bus      *bus.Bus
	registry *agent.Registry
	opts     Options

	locks sync.Map // session id -> *sync.Mutex
}

// New constructs a Runner. The bus must already carry the registry's agents.
func New(b *bus.Bus, registry *agent.Registry, optFns ...func(o *Options)) *Runner {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	if opts.Tracer == nil {
		opts.Tracer = telemetry.Tracer("github.com/hupe1980/vaxmesh/runner")
	}

	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = DefaultDrainTimeout
	}

	return &Runner{bus: b, registry: registry, opts: opts}
}

// Chat handles one user message end to end.
func (r *Runner) Chat(ctx context.Context, req ChatRequest, auth map[string]string) (emitter.ChatResponse, error) {
	return r.ChatStream(ctx, req, auth, nil)
}

// ChatStream is like Chat but hands every text fragment to onText as it
// arrives. auth holds the headers forwarded to the booking store; when empty
// the ones in the request's user info are kept.
//
// A failed turn is not an error: the caller gets FallbackMessage and routing
// resets to the root agent. Errors are returned for invalid requests, store
// failures, sessions owned by another subject and when ctx ends before the
// turn does. In the last case tool results that already took effect are
// still saved to the session's snapshot.
func (r *Runner) ChatStream(ctx context.Context, req ChatRequest, auth map[string]string, onText func(string)) (emitter.ChatResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return emitter.ChatResponse{}, ErrEmptyMessage
	}

	key := req.SessionID
	if key == "" {
		key = uuid.NewString()
		defer r.bus.EndSession(key)
	} else {
		unlock := r.lock(key)
		defer unlock()
	}

	ctx, span := r.opts.Tracer.Start(ctx, "runner.chat", trace.WithAttributes(attribute.String("session_key", key)))
	defer span.End()

	st, err := r.resume(ctx, req)
	if err != nil {
		span.RecordError(err)
		return emitter.ChatResponse{}, err
	}

	userInfo := st.UserInfo.WithDefaults(r.opts.SessionDate)
	userInfo.DataType = ""
	userInfo.Restart = false

	if len(auth) > 0 {
		userInfo.AuthHeader = maps.Clone(auth)
	}

	entry := r.registry.EntryPoint(st.AgentName)
	history := st.History.Append(core.NewUserMessage(req.Message))

	span.SetAttributes(attribute.String("agent.entry", entry))

	turnCtx := ctx
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		turnCtx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	events, detach := r.bus.Attach(key)
	defer detach()

	turnID := core.NewID()

	r.opts.Logger.Info("runner.chat.start", "session_key", key, "turn_id", turnID, "agent", entry, "messages", history.Len())

	task := core.UserTask{SessionKey: key, Context: history, Session: userInfo, TurnID: turnID}
	if err := r.bus.Publish(turnCtx, entry, key, task); err != nil {
		if ctx.Err() != nil {
			return emitter.ChatResponse{}, ctx.Err()
		}

		return r.fallback(ctx, req, history, userInfo, err, span)
	}

	em := emitter.New(func(o *emitter.Options) {
		o.OnText = onText
		o.TurnID = turnID
	})

	resp, err := em.Collect(turnCtx, events)
	if err != nil && turnCtx.Err() != nil {
		r.bus.CancelSession(key)

		// Without a store there is nothing to keep for a caller that left.
		if ctx.Err() == nil || (r.opts.Store != nil && req.SessionID != "") {
			resp, err = r.drain(ctx, em, events)
		}
	}

	if err != nil {
		// Keep what finished before the turn stopped.
		if partial, ok := em.Interrupted(); ok {
			history, userInfo = partial.History, partial.UserInfo

			if ctx.Err() != nil {
				partial.SessionID = req.SessionID
				partial.UserInfo.AuthHeader = nil
				r.save(ctx, req.Subject, partial)
			}
		}

		if ctx.Err() != nil {
			r.opts.Logger.Info("runner.chat.cancelled", "session_key", key, "error", ctx.Err().Error())
			return emitter.ChatResponse{}, ctx.Err()
		}

		return r.fallback(ctx, req, history, userInfo, err, span)
	}

	resp.SessionID = req.SessionID
	resp.UserInfo.AuthHeader = nil

	if ctx.Err() != nil {
		// The turn finished after the caller left.
		r.save(ctx, req.Subject, resp)
		return emitter.ChatResponse{}, ctx.Err()
	}

	r.opts.Logger.Info("runner.chat.done",
		"session_key", key,
		"agent", resp.AgentName,
		"handoffs", len(em.Handoffs()),
		"data_type", resp.DataType,
	)

	r.save(ctx, req.Subject, resp)

	return resp, nil
}

// drain waits, without regard to ctx, for the terminal event of a turn
// whose session was just cancelled.
func (r *Runner) drain(ctx context.Context, em *emitter.Emitter, events <-chan core.Event) (emitter.ChatResponse, error) {
	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.DrainTimeout)
	defer cancel()

	resp, err := em.Collect(drainCtx, events)
	if errors.Is(err, context.DeadlineExceeded) && drainCtx.Err() != nil {
		r.opts.Logger.Warn("runner.chat.drain_timeout", "timeout", r.opts.DrainTimeout.String())
	}

	return resp, err
}

// EndSession stops the session's agent instances and deletes its snapshot.
// A snapshot saved for another subject is left alone and ErrSessionOwner is
// returned.
func (r *Runner) EndSession(ctx context.Context, sessionID, subject string) error {
	if r.opts.Store != nil {
		snap, err := r.opts.Store.Load(ctx, sessionID)

		switch {
		case errors.Is(err, session.ErrNotFound):
		case err != nil:
			return fmt.Errorf("runner: load snapshot: %w", err)
		case snap.Subject != subject:
			return ErrSessionOwner
		}
	}

	r.bus.EndSession(sessionID)
	r.locks.Delete(sessionID)

	if r.opts.Store == nil {
		return nil
	}

	return r.opts.Store.Delete(ctx, sessionID)
}

type state struct {
	History   core.ConversationContext
	UserInfo  core.UserSessionContext
	AgentName string
}

// resume merges the request with the stored snapshot. Fields sent by the
// caller win. A snapshot saved for another subject is never used or
// overwritten.
func (r *Runner) resume(ctx context.Context, req ChatRequest) (state, error) {
	st := state{AgentName: req.AgentName}

	if req.History != nil {
		st.History = *req.History
	}

	if req.UserInfo != nil {
		st.UserInfo = req.UserInfo.Clone()
	}

	if req.SessionID == "" || r.opts.Store == nil {
		return st, nil
	}

	snap, err := r.opts.Store.Load(ctx, req.SessionID)
	if errors.Is(err, session.ErrNotFound) {
		return st, nil
	}

	if err != nil {
		return state{}, fmt.Errorf("runner: load snapshot: %w", err)
	}

	if snap.Subject != req.Subject {
		r.opts.Logger.Warn("runner.session.owner_mismatch", "session_id", req.SessionID)
		return state{}, ErrSessionOwner
	}

	if req.History == nil {
		st.History = snap.History
	}

	if req.UserInfo == nil {
		st.UserInfo = snap.UserInfo
	}

	if req.AgentName == "" {
		st.AgentName = snap.AgentName
	}

	return st, nil
}

// fallback answers a failed turn with FallbackMessage and resets routing to
// the root agent.
func (r *Runner) fallback(
	ctx context.Context,
	req ChatRequest,
	history core.ConversationContext,
	userInfo core.UserSessionContext,
	cause error,
	span trace.Span,
) (emitter.ChatResponse, error) {
	span.RecordError(cause)
	span.SetStatus(codes.Error, cause.Error())

	r.opts.Logger.Error("runner.chat.fatal", "session_id", req.SessionID, "error", cause.Error(), "fatal", core.IsFatal(cause))

	root := r.registry.Root()

	userInfo.AuthHeader = nil

	resp := emitter.ChatResponse{
		AgentName: root,
		History:   history.Append(core.NewAssistantText(root, FallbackMessage)),
		Message:   FallbackMessage,
		UserInfo:  userInfo,
		SessionID: req.SessionID,
	}

	r.save(ctx, req.Subject, resp)

	return resp, nil
}

// save stores the snapshot of resp for subject. Failures are logged, not
// returned: the caller still holds the full state.
func (r *Runner) save(ctx context.Context, subject string, resp emitter.ChatResponse) {
	if r.opts.Store == nil || resp.SessionID == "" {
		return
	}

	err := r.opts.Store.Save(context.WithoutCancel(ctx), session.Snapshot{
		SessionID: resp.SessionID,
		Subject:   subject,
		AgentName: resp.AgentName,
		History:   resp.History,
		UserInfo:  resp.UserInfo,
	})
	if err != nil {
		r.opts.Logger.Warn("runner.snapshot.save_failed", "session_id", resp.SessionID, "error", err.Error())
	}
}

func (r *Runner) lock(sessionID string) func() {
	v, _ := r.locks.LoadOrStore(sessionID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()

	return mu.Unlock
}
