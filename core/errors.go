package core

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the routing taxonomy. Typed errors below wrap them so
// callers can use errors.Is for the class and errors.As for the details.
var (
	ErrRouting            = errors.New("routing error")
	ErrUnknownTool        = errors.New("unknown tool")
	ErrToolArgument       = errors.New("invalid tool arguments")
	ErrMultipleDelegation = errors.New("multiple delegation")
	ErrMixedCallBatch     = errors.New("mixed call batch")
	ErrTurnLimitExceeded  = errors.New("turn limit exceeded")
)

// RoutingError reports a publish to a topic with no registered factory.
type RoutingError struct {
	Topic string
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("routing error: no subscription for topic %q", e.Topic)
}

// Unwrap returns ErrRouting.
func (e *RoutingError) Unwrap() error { return ErrRouting }

// UnknownToolError reports a call naming a tool outside the agent's sandbox.
type UnknownToolError struct {
	Agent string
	Tool  string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q for agent %q", e.Tool, e.Agent)
}

// Unwrap returns ErrUnknownTool.
func (e *UnknownToolError) Unwrap() error { return ErrUnknownTool }

// ToolArgumentError reports arguments that do not match a tool's declared
// parameter shape. It is recoverable: the executor converts it into an
// error-flagged result.
type ToolArgumentError struct {
	Tool  string
	Cause error
}

func (e *ToolArgumentError) Error() string {
	return fmt.Sprintf("invalid arguments for tool %q: %v", e.Tool, e.Cause)
}

// Unwrap returns both the class sentinel and the cause.
func (e *ToolArgumentError) Unwrap() []error { return []error{ErrToolArgument, e.Cause} }

// MultipleDelegationError reports a batch with more than one delegate call.
type MultipleDelegationError struct {
	Agent   string
	Targets []string
}

func (e *MultipleDelegationError) Error() string {
	return fmt.Sprintf("agent %q requested %d delegations in one batch (%s)", e.Agent, len(e.Targets), strings.Join(e.Targets, ", "))
}

// Unwrap returns ErrMultipleDelegation.
func (e *MultipleDelegationError) Unwrap() error { return ErrMultipleDelegation }

// MixedCallBatchError reports a batch mixing delegate and direct tool calls.
type MixedCallBatchError struct {
	Agent     string
	Delegates []string
	Direct    []string
}

func (e *MixedCallBatchError) Error() string {
	return fmt.Sprintf("agent %q mixed delegate calls (%s) with direct calls (%s)",
		e.Agent, strings.Join(e.Delegates, ", "), strings.Join(e.Direct, ", "))
}

// Unwrap returns ErrMixedCallBatch.
func (e *MixedCallBatchError) Unwrap() error { return ErrMixedCallBatch }

// TurnLimitExceeded reports that the turn loop hit its maximum.
type TurnLimitExceeded struct {
	Max int
}

func (e *TurnLimitExceeded) Error() string {
	return fmt.Sprintf("turn limit exceeded: max %d model invocations", e.Max)
}

// Unwrap returns ErrTurnLimitExceeded.
func (e *TurnLimitExceeded) Unwrap() error { return ErrTurnLimitExceeded }

// IsFatal reports whether err ends the turn loop with the generic fallback
// response. Recoverable errors never reach this point because they are
// folded into tool results.
func IsFatal(err error) bool {
	return errors.Is(err, ErrRouting) ||
		errors.Is(err, ErrUnknownTool) ||
		errors.Is(err, ErrMultipleDelegation) ||
		errors.Is(err, ErrMixedCallBatch) ||
		errors.Is(err, ErrTurnLimitExceeded)
}
