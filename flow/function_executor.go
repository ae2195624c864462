package flow

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/vaxmesh/agent"
	"github.com/hupe1980/vaxmesh/core"
	"github.com/hupe1980/vaxmesh/internal/telemetry"
	"github.com/hupe1980/vaxmesh/tool"
)

// ErrCancelledBeforeExecution is the result content of a call that never
// started because the invocation was cancelled first.
var ErrCancelledBeforeExecution = errors.New("cancelled before execution")

// FunctionExecutor executes a batch of direct tool calls. Implementations must:
//   - Validate every call name before running any of them
//   - Not start calls once runCtx.Context is cancelled, and report those with
//     ErrCancelledBeforeExecution
//   - Let started calls finish (or hit their own timeout) even when the run is
//     cancelled, since their effects already happened
//   - Never panic (recover internally and return error results)
//   - Return exactly one result per call, in call order, matched by call id
type FunctionExecutor interface {
	Execute(runCtx *core.RunContext, ts *agent.Toolset, calls []core.ToolCall) ([]core.ToolExecutionResult, error)
}

// FunctionExecutorConfig configures the default parallel executor.
type FunctionExecutorConfig struct {
	MaxParallel    int           // 0 or <1 => no explicit limit (len(calls))
	Timeout        time.Duration // per-call deadline, 0 => none
	LogStartEvents bool          // log a start line per function
}

// parallelFunctionExecutor is the default implementation.
type parallelFunctionExecutor struct {
	cfg         FunctionExecutorConfig
	instruments *telemetry.Instruments
	tracer      trace.Tracer
}

// NewParallelFunctionExecutor constructs a new executor with the given config.
func NewParallelFunctionExecutor(cfg FunctionExecutorConfig) FunctionExecutor {
	return newParallelFunctionExecutor(cfg, nil, nil)
}

func newParallelFunctionExecutor(cfg FunctionExecutorConfig, inst *telemetry.Instruments, tracer trace.Tracer) *parallelFunctionExecutor {
	if inst == nil {
		inst = telemetry.NewInstruments(telemetry.Meter(instrumentationName))
	}

	if tracer == nil {
		tracer = telemetry.Tracer(instrumentationName)
	}

	return &parallelFunctionExecutor{cfg: cfg, instruments: inst, tracer: tracer}
}

func (e *parallelFunctionExecutor) Execute(
	runCtx *core.RunContext,
	ts *agent.Toolset,
	calls []core.ToolCall,
) ([]core.ToolExecutionResult, error) {
	n := len(calls)
	if n == 0 {
		return nil, nil
	}

	impls := make([]tool.Tool, n)

	for i, c := range calls {
		impl, ok := ts.Direct(c.Name)
		if !ok {
			return nil, &core.UnknownToolError{Agent: runCtx.Agent, Tool: c.Name}
		}

		impls[i] = impl
	}

	maxPar := e.cfg.MaxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	// Each goroutine owns results[i]; the errgroup wait orders the writes
	// before the read below.
	results := make([]core.ToolExecutionResult, n)

	var g errgroup.Group
	g.SetLimit(maxPar)

	batchStart := time.Now()

	for i := range calls {
		idx, fc, impl := i, calls[i], impls[i]

		g.Go(func() error {
			if runCtx.Err() != nil {
				results[idx] = core.NewErrorResult(fc, ErrCancelledBeforeExecution)
				return nil
			}

			results[idx] = e.executeOne(runCtx, impl, fc)

			return nil
		})
	}

	_ = g.Wait()

	runCtx.LogDebug(
		"agent.functions.batch.complete",
		"count", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	return results, nil
}

func (e *parallelFunctionExecutor) executeOne(runCtx *core.RunContext, impl tool.Tool, fc core.ToolCall) core.ToolExecutionResult {
	ctx, span := e.tracer.Start(runCtx.Context, "flow.tool.execute",
		trace.WithAttributes(
			attribute.String("agent", runCtx.Agent),
			attribute.String("tool", fc.Name),
			attribute.String("function_call_id", fc.ID),
		),
	)
	defer span.End()

	// A started call is bounded by its own deadline only.
	ctx = context.WithoutCancel(ctx)

	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	if e.cfg.LogStartEvents {
		runCtx.LogInfo("agent.function.start", "function", fc.Name, "function_call_id", fc.ID)
	}

	tc := core.NewToolContext(ctx, runCtx, fc)

	start := time.Now()
	result, err := e.callWithDeadline(ctx, tc, impl, fc)
	dur := time.Since(start)

	runCtx.LogInfo(
		"agent.function.executed",
		"function", fc.Name,
		"duration_ms", dur.Milliseconds(),
		"error", err != nil,
	)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	attrs := metric.WithAttributes(attribute.String("tool", fc.Name), attribute.String("outcome", outcome))
	e.instruments.ToolCalls.Add(ctx, 1, attrs)
	e.instruments.ToolDuration.Record(ctx, float64(dur.Microseconds())/1000, attrs)

	if err != nil {
		return core.NewErrorResult(fc, err)
	}

	return core.ToolExecutionResult{CallID: fc.ID, Name: fc.Name, Content: result, DataType: tc.DataType()}
}

type callOutcome struct {
	result any
	err    error
}

// callWithDeadline runs the tool on its own goroutine so a tool ignoring its
// context still yields a TIMEOUT result once the deadline passes. ctx carries
// no cancellation of the run, so only the per-call deadline abandons a call.
func (e *parallelFunctionExecutor) callWithDeadline(ctx context.Context, tc *core.ToolContext, impl tool.Tool, fc core.ToolCall) (any, error) {
	done := make(chan callOutcome, 1)

	go func() {
		var out callOutcome

		defer func() {
			if r := recover(); r != nil {
				out.err = panicError(r)
				tc.LogError("agent.function.panic", "recover", r)
			}

			done <- out
		}()

		out.result, out.err = executeTool(tc, impl, fc)
	}()

	select {
	case out := <-done:
		if out.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, tool.WrapToolError(fc.Name, tool.CodeTimeout, fmt.Errorf("timed out after %s: %w", e.cfg.Timeout, out.err))
		}

		return out.result, out.err
	case <-ctx.Done():
		return nil, tool.WrapToolError(fc.Name, tool.CodeTimeout, fmt.Errorf("timed out after %s", e.cfg.Timeout))
	}
}

// panicError converts a recovered panic value to an error.
func panicError(r any) error { return &panicErr{val: r, stack: debug.Stack()} }

type panicErr struct {
	val   any
	stack []byte
}

func (p *panicErr) Error() string { return fmt.Sprintf("panic recovered: %v", p.val) }

// executeTool decodes the call arguments and runs impl. Malformed arguments
// never reach the tool.
func executeTool(toolCtx *core.ToolContext, impl tool.Tool, fc core.ToolCall) (any, error) {
	args, err := tool.ParseArguments(fc)
	if err != nil {
		return nil, err
	}

	return impl.Call(toolCtx, args)
}
