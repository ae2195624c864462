package tool

import (
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/vaxmesh/core"
	"github.com/hupe1980/vaxmesh/internal/util"
)

// HandlerFunc implements a tool. args are the decoded, already validated
// call arguments.
type HandlerFunc func(tc *core.ToolContext, args map[string]any) (any, error)

// FunctionTool exposes a Go function as a tool with a JSON schema for its
// arguments. It holds no mutable state and is safe for concurrent use.
//
// Errors leave Call as *ToolError: schema mismatches carry CodeValidation and
// unwrap to core.ErrToolArgument, a *ToolError returned by the handler is
// forwarded as is, and any other error is wrapped with CodeExecution.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          HandlerFunc
}

// NewFunctionTool builds a tool from an explicit parameter schema. A nil
// schema accepts no arguments.
func NewFunctionTool(name, description string, parameters map[string]any, fn HandlerFunc) *FunctionTool {
	if parameters == nil {
		parameters = map[string]any{"type": "object", "properties": map[string]any{}}
	}

	return &FunctionTool{name: name, description: description, parameters: parameters, fn: fn}
}

// NewFunctionToolFromStruct derives the parameter schema from the fields of
// structType. See util.CreateSchema for the supported tags.
func NewFunctionToolFromStruct(name, description string, structType any, fn HandlerFunc) *FunctionTool {
	return NewFunctionTool(name, description, util.CreateSchema(structType), fn)
}

func (t *FunctionTool) Name() string               { return t.name }
func (t *FunctionTool) Description() string        { return t.description }
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Call validates args and runs the handler. The tool context logger already
// carries the tool name and call id.
func (t *FunctionTool) Call(tc *core.ToolContext, args map[string]any) (any, error) {
	logger := tc.Logger()

	if err := util.ValidateParameters(args, t.parameters); err != nil {
		logger.Warn("tool.call.invalid_arguments", "error", err.Error())

		return nil, &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    CodeValidation,
			Details: err,
			cause:   &core.ToolArgumentError{Tool: t.name, Cause: err},
		}
	}

	start := time.Now()

	result, err := t.fn(tc, args)
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		var toolErr *ToolError
		if !errors.As(err, &toolErr) {
			toolErr = WrapToolError(t.name, CodeExecution, err)
		}

		logger.Error("tool.call.error", "code", toolErr.Code, "error", toolErr.Message, "duration_ms", elapsed)

		return nil, toolErr
	}

	logger.Debug("tool.call.success", "duration_ms", elapsed)

	return result, nil
}
