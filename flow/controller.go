package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/vaxmesh/agent"
	"github.com/hupe1980/vaxmesh/bus"
	"github.com/hupe1980/vaxmesh/core"
	"github.com/hupe1980/vaxmesh/internal/telemetry"
	"github.com/hupe1980/vaxmesh/logging"
	"github.com/hupe1980/vaxmesh/model"
	"github.com/hupe1980/vaxmesh/tool"
)

const instrumentationName = "github.com/hupe1980/vaxmesh/flow"

// ErrNoModel is returned when an agent has no model binding and the
// controller has no default model.
var ErrNoModel = errors.New("flow: no model bound")

// ErrEmptyResponse is returned when a model stream ends without a final message.
var ErrEmptyResponse = errors.New("flow: model returned no final response")

// HandoffMessage is the synthetic tool result recorded for a delegate call.
func HandoffMessage(target string) string {
	return fmt.Sprintf("Transferred to %s. Adopt persona immediately. Read through the context and capture the details of the ongoing task, then carry on with the task diligently.", target)
}

// Config defines tuning parameters for the turn loop.
type Config struct {
	// MaxTurns bounds model invocations per user message across handoffs.
	MaxTurns int

	// ToolTimeout is the per-call deadline of direct tools.
	ToolTimeout time.Duration

	// Stream requests incremental text from the model.
	Stream bool

	// MaxParallel bounds concurrently executing tools of one batch.
	MaxParallel int
}

// DefaultConfig provides default configuration values.
var DefaultConfig = Config{
	MaxTurns:    core.DefaultMaxTurns,
	ToolTimeout: 10 * time.Second,
	Stream:      true,
	MaxParallel: 4,
}

// Options configures a Controller using the functional options pattern.
type Options struct {
	Config Config

	// Model is used by agents without their own binding.
	Model model.Model

	// Processors default to DefaultRequestProcessors.
	Processors []RequestProcessor

	// Executor defaults to a parallel executor built from Config.
	Executor FunctionExecutor

	// Logger defaults to NoOp when nil.
	Logger logging.Logger

	// Meter and Tracer default to the global OpenTelemetry providers.
	Meter  metric.Meter
	Tracer trace.Tracer
}

// Controller runs the turn loop of every agent in a registry.
//
// One call to Run handles one UserTask for one agent:
//
//	AWAITING_MODEL ──text──────▶ response event (terminal)
//	      │ ▲
//	      │ └──direct batch──── execute, append call + results, loop
//	      │
//	      └──single delegate──▶ publish UserTask to the target (no response)
//
// Batch violations, routing failures and the turn limit end the loop with a
// failure event. Nothing is published and no tool runs for a rejected batch.
// Cancellation ends it with an interrupted event; when tools already ran in
// the turn, that event carries the conversation including their results.
type Controller struct {
	registry    *agent.Registry
	model       model.Model
	processors  []RequestProcessor
	executor    FunctionExecutor
	config      Config
	logger      logging.Logger
	instruments *telemetry.Instruments
	tracer      trace.Tracer
}

// NewController creates a Controller over registry.
func NewController(registry *agent.Registry, optFns ...func(o *Options)) (*Controller, error) {
	if registry == nil {
		return nil, errors.New("flow: registry is required")
	}

	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	if opts.Config.MaxTurns < 0 {
		return nil, fmt.Errorf("flow: max turns must not be negative, got %d", opts.Config.MaxTurns)
	}

	if opts.Processors == nil {
		opts.Processors = DefaultRequestProcessors()
	}

	if opts.Meter == nil {
		opts.Meter = telemetry.Meter(instrumentationName)
	}

	if opts.Tracer == nil {
		opts.Tracer = telemetry.Tracer(instrumentationName)
	}

	inst := telemetry.NewInstruments(opts.Meter)

	if opts.Executor == nil {
		opts.Executor = newParallelFunctionExecutor(FunctionExecutorConfig{
			MaxParallel: opts.Config.MaxParallel,
			Timeout:     opts.Config.ToolTimeout,
		}, inst, opts.Tracer)
	}

	for _, name := range registry.Names() {
		if d, _ := registry.Lookup(name); d.Model == nil && opts.Model == nil {
			return nil, fmt.Errorf("%w: agent %q", ErrNoModel, name)
		}
	}

	return &Controller{
		registry:    registry,
		model:       opts.Model,
		processors:  opts.Processors,
		executor:    opts.Executor,
		config:      opts.Config,
		logger:      opts.Logger,
		instruments: inst,
		tracer:      opts.Tracer,
	}, nil
}

// Registry returns the agent registry the controller serves.
func (c *Controller) Registry() *agent.Registry { return c.registry }

// Factory returns the bus factory creating instances of registered agents.
func (c *Controller) Factory() bus.Factory {
	return func(topic, _ string) (bus.Handler, error) {
		if _, ok := c.registry.Lookup(topic); !ok {
			return nil, fmt.Errorf("flow: no agent named %q", topic)
		}

		return bus.HandlerFunc(func(ctx context.Context, task core.UserTask, out core.Outbox) error {
			return c.Run(ctx, topic, task, out)
		}), nil
	}
}

// Register subscribes every agent of the registry on b.
func (c *Controller) Register(b *bus.Bus) error {
	factory := c.Factory()

	for _, name := range c.registry.Names() {
		if err := b.Register(name, factory); err != nil {
			return err
		}
	}

	return nil
}

// Run drives agentName over task until it answers, delegates or fails. The
// outcome is reported through out; the returned error is the one that ended
// the loop, already emitted as a failure event.
func (c *Controller) Run(ctx context.Context, agentName string, task core.UserTask, out core.Outbox) error {
	def, ok := c.registry.Lookup(agentName)
	if !ok {
		return &core.RoutingError{Topic: agentName}
	}

	ts, _ := c.registry.Toolset(agentName)

	m := def.Model
	if m == nil {
		m = c.model
	}

	ctx, span := c.tracer.Start(ctx, "flow.invoke_agent",
		trace.WithAttributes(
			attribute.String("agent", agentName),
			attribute.String("session_key", task.SessionKey),
			attribute.Int("turn.start", task.Turn),
		),
	)
	defer span.End()

	rc := core.NewRunContext(ctx, task, agentName, c.config.MaxTurns, out, c.logger)

	rc.LogInfo("flow.invoke.start", "origin", task.Origin, "turn", task.Turn)

	err := c.loop(rc, def, ts, m, task.Context)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		var reported *interruptedError
		if !errors.As(err, &reported) {
			c.fail(rc, err)
		}

		return err
	}

	return nil
}

// interruptedError marks a loop whose interruption was already emitted.
type interruptedError struct{ cause error }

func (e *interruptedError) Error() string { return "flow: interrupted after tool batch: " + e.cause.Error() }
func (e *interruptedError) Unwrap() error { return e.cause }

func (c *Controller) loop(rc *core.RunContext, def agent.Definition, ts *agent.Toolset, m model.Model, conv core.ConversationContext) error {
	for {
		if rc.Err() != nil {
			return c.stopped(rc, conv)
		}

		if err := rc.Limiter.Increment(); err != nil {
			return err
		}

		c.instruments.Turns.Add(rc.Context, 1, metric.WithAttributes(attribute.String("agent", def.Name)))
		rc.LogDebug("flow.turn.start", "turn", rc.Limiter.Count())

		req := model.Request{Stream: c.config.Stream}
		inv := &Invocation{Definition: def, Toolset: ts, Conversation: conv}

		for _, p := range c.processors {
			if err := p.ProcessRequest(rc, &req, inv); err != nil {
				return fmt.Errorf("flow: processor %s: %w", p.Name(), err)
			}
		}

		msg, err := c.generate(rc, m, req)
		if err != nil {
			if rc.Err() != nil {
				return c.stopped(rc, conv)
			}

			return err
		}

		batch, err := Classify(def.Name, ts, msg.ToolCalls())
		if err != nil {
			return err
		}

		switch batch.Kind {
		case BatchText:
			return c.respond(rc, conv.Append(core.NewAssistantText(def.Name, msg.Text())))
		case BatchDelegate:
			return c.handoff(rc, conv, msg, batch)
		}

		results, err := c.executor.Execute(rc, ts, batch.Calls)
		if err != nil {
			return err
		}

		// The session's DataType follows the last successful result in call
		// order, the one whose payload callers receive.
		rc.UpdateSession(func(s *core.UserSessionContext) {
			for _, res := range results {
				if !res.IsError {
					s.DataType = res.DataType
				}
			}
		})

		cancelled := rc.Err()

		sess := rc.Session()
		for _, res := range results {
			ev := core.NewToolOutputEvent(rc.SessionKey, def.Name, res, sess)
			if cancelled != nil {
				c.emitDetached(rc, ev)
			} else {
				c.emit(rc, ev)
			}
		}

		conv = conv.Append(msg, core.NewToolResultMessage(def.Name, results))

		if cancelled != nil {
			return c.interrupt(rc, conv, cancelled)
		}
	}
}

// generate invokes the model, forwarding text fragments as they arrive, and
// returns the final assistant message authored by the running agent.
func (c *Controller) generate(rc *core.RunContext, m model.Model, req model.Request) (core.Message, error) {
	ctx, span := c.tracer.Start(rc.Context, "flow.model.generate",
		trace.WithAttributes(
			attribute.String("agent", rc.Agent),
			attribute.String("model", m.Info().Name),
			attribute.Int("messages", len(req.Messages)),
			attribute.Int("tools", len(req.Tools)),
		),
	)
	defer span.End()

	start := time.Now()

	defer func() {
		c.instruments.ModelLatency.Record(ctx, float64(time.Since(start).Microseconds())/1000,
			metric.WithAttributes(attribute.String("agent", rc.Agent)))
	}()

	respCh, errCh := m.Generate(ctx, req)

	var (
		final    *model.Response
		streamed bool
	)

	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return core.Message{}, ctx.Err()
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}

			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())

				return core.Message{}, fmt.Errorf("flow: model %s: %w", m.Info().Name, err)
			}
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}

			if resp.Partial {
				if text := resp.Message.Text(); text != "" {
					streamed = true
					c.emit(rc, core.NewTextDeltaEvent(rc.SessionKey, rc.Agent, text))
				}

				continue
			}

			r := resp
			final = &r
		}
	}

	if final == nil {
		return core.Message{}, ErrEmptyResponse
	}

	msg := final.Message
	msg.Role = core.RoleAssistant
	msg.Source = rc.Agent

	text := msg.Text()
	if text != "" && !streamed {
		c.emit(rc, core.NewTextDeltaEvent(rc.SessionKey, rc.Agent, text))
	}

	if text != "" || streamed {
		c.emit(rc, core.NewPartDoneEvent(rc.SessionKey, rc.Agent))
	}

	if final.Usage != nil {
		span.SetAttributes(
			attribute.Int("usage.prompt_tokens", final.Usage.PromptTokens),
			attribute.Int("usage.completion_tokens", final.Usage.CompletionTokens),
		)
	}

	return msg, nil
}

func (c *Controller) respond(rc *core.RunContext, conv core.ConversationContext) error {
	sess := rc.Session()
	replyTo := c.registry.ReplyTo(rc.Agent, sess)
	sess.Restart = false

	resp := core.AgentResponse{
		Agent:   rc.Agent,
		ReplyTo: replyTo,
		Context: conv,
		Session: sess,
	}

	rc.LogInfo("flow.response", "reply_to", replyTo, "turns", rc.Limiter.Count(), "messages", conv.Len())

	return rc.EmitEvent(core.NewResponseEvent(rc.SessionKey, resp))
}

func (c *Controller) handoff(rc *core.RunContext, conv core.ConversationContext, msg core.Message, batch Batch) error {
	call := batch.Calls[0]

	target, err := batch.Delegate.Call(core.NewToolContext(rc.Context, rc, call), nil)
	if err != nil {
		return err
	}

	topic, _ := target.(string)

	result := core.ToolExecutionResult{CallID: call.ID, Name: call.Name, Content: HandoffMessage(topic)}
	delegated := conv.Append(msg, core.NewToolResultMessage(rc.Agent, []core.ToolExecutionResult{result}))

	task := core.UserTask{
		SessionKey: rc.SessionKey,
		Context:    delegated,
		Session:    rc.Session(),
		Turn:       rc.Limiter.Count(),
		Origin:     rc.Agent,
		TurnID:     rc.TurnID,
	}

	// The handoff event must reach the listener before anything the target emits.
	c.emit(rc, core.NewHandoffEvent(rc.SessionKey, rc.Agent, topic))

	if err := rc.Outbox.Publish(rc.Context, topic, task); err != nil {
		return fmt.Errorf("flow: handoff to %q: %w", topic, err)
	}

	c.instruments.Handoffs.Add(rc.Context, 1, metric.WithAttributes(
		attribute.String("from", rc.Agent),
		attribute.String("to", topic),
	))

	rc.LogInfo("flow.handoff", "target", topic, "turn", rc.Limiter.Count())

	return nil
}

// stopped ends a cancelled loop. When tools already ran during the turn the
// conversation holding their results is handed back.
func (c *Controller) stopped(rc *core.RunContext, conv core.ConversationContext) error {
	if ranTools(conv) {
		return c.interrupt(rc, conv, rc.Err())
	}

	return rc.Err()
}

// ranTools reports whether conv holds results of tool calls made after the
// latest user message. Handoff records do not count.
func ranTools(conv core.ConversationContext) bool {
	msgs := conv.Messages()

	for i := len(msgs) - 1; i >= 0 && msgs[i].Role != core.RoleUser; i-- {
		for _, res := range msgs[i].ToolResults() {
			if !strings.HasPrefix(res.Name, tool.DelegatePrefix) {
				return true
			}
		}
	}

	return false
}

// interrupt ends a cancelled loop with an interrupted event. The batch's
// calls and results are handed back so their effects stay on record.
func (c *Controller) interrupt(rc *core.RunContext, conv core.ConversationContext, cause error) error {
	resp := &core.AgentResponse{
		Agent:   rc.Agent,
		ReplyTo: rc.Agent,
		Context: conv,
		Session: rc.Session(),
	}

	rc.LogInfo("flow.invoke.interrupted", "messages", conv.Len(), "error", cause.Error())
	c.emitDetached(rc, core.NewInterruptedEvent(rc.SessionKey, rc.Agent, resp, cause))

	return &interruptedError{cause: cause}
}

func (c *Controller) fail(rc *core.RunContext, err error) {
	if rc.Err() != nil {
		rc.LogInfo("flow.invoke.cancelled", "error", err.Error())
		c.emitDetached(rc, core.NewInterruptedEvent(rc.SessionKey, rc.Agent, nil, rc.Err()))

		return
	}

	c.instruments.FatalErrors.Add(rc.Context, 1, metric.WithAttributes(attribute.String("agent", rc.Agent)))
	rc.LogError("flow.fatal", "error", err.Error(), "fatal", core.IsFatal(err))
	c.emit(rc, core.NewFailureEvent(rc.SessionKey, rc.Agent, err))
}

func (c *Controller) emit(rc *core.RunContext, ev core.Event) {
	if err := rc.EmitEvent(ev); err != nil {
		rc.LogDebug("flow.event.emit_failed", "type", string(ev.Type), "error", err.Error())
	}
}

func (c *Controller) emitDetached(rc *core.RunContext, ev core.Event) {
	if err := rc.EmitEventDetached(ev); err != nil {
		rc.LogDebug("flow.event.emit_failed", "type", string(ev.Type), "error", err.Error())
	}
}
