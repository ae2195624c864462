package flow

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vaxmesh/agent"
	"github.com/hupe1980/vaxmesh/core"
	"github.com/hupe1980/vaxmesh/tool"
)

type countingTool struct {
	*tool.FunctionTool
	calls *atomic.Int32
}

func newCountingTool(name string, fn func(tc *core.ToolContext, args map[string]any) (any, error)) countingTool {
	var n atomic.Int32

	return countingTool{
		FunctionTool: tool.NewFunctionTool(name, name, nil, func(tc *core.ToolContext, args map[string]any) (any, error) {
			n.Add(1)
			return fn(tc, args)
		}),
		calls: &n,
	}
}

func okTool(name string, result any) countingTool {
	return newCountingTool(name, func(*core.ToolContext, map[string]any) (any, error) { return result, nil })
}

func newTestRegistry(t *testing.T, tools []tool.Tool, defs ...agent.Definition) *agent.Registry {
	t.Helper()

	ids := make([]string, len(tools))
	for i, tl := range tools {
		ids[i] = tl.Name()
	}

	catalog := tool.NewCatalog(ids...)
	catalog.MustRegister(tools...)

	r, err := agent.NewRegistry(catalog, defs[0].Name, defs...)
	require.NoError(t, err)

	return r
}

func toolsetOf(t *testing.T, r *agent.Registry, name string) *agent.Toolset {
	t.Helper()

	ts, ok := r.Toolset(name)
	require.True(t, ok)

	return ts
}

func newTestRunContext(ctx context.Context, agentName string) *core.RunContext {
	task := core.UserTask{SessionKey: "s1", Session: core.UserSessionContext{Date: "2024-06-01"}}
	return core.NewRunContext(ctx, task, agentName, 0, nil, nil)
}
