package flow

import (
	"github.com/hupe1980/vaxmesh/agent"
	"github.com/hupe1980/vaxmesh/core"
	"github.com/hupe1980/vaxmesh/tool"
)

// BatchKind is the outcome of classifying a model answer.
type BatchKind int

const (
	// BatchText means the model answered with plain text.
	BatchText BatchKind = iota
	// BatchDirect means every call names a direct tool.
	BatchDirect
	// BatchDelegate means the batch is a single delegate call.
	BatchDelegate
)

// Batch is a validated set of tool calls.
type Batch struct {
	Kind     BatchKind
	Calls    []core.ToolCall
	Delegate *tool.Delegate
}

// Classify validates calls against the agent's sandbox before anything runs.
//
// Errors, in order of precedence:
//   - *core.UnknownToolError for a name outside the sandbox
//   - *core.MixedCallBatchError when delegate and direct calls are mixed
//   - *core.MultipleDelegationError for more than one delegate call
func Classify(agentName string, ts *agent.Toolset, calls []core.ToolCall) (Batch, error) {
	if len(calls) == 0 {
		return Batch{Kind: BatchText}, nil
	}

	var delegates, direct []string

	for _, c := range calls {
		switch ts.Classify(c.Name) {
		case agent.CallDirect:
			direct = append(direct, c.Name)
		case agent.CallDelegate:
			delegates = append(delegates, c.Name)
		default:
			return Batch{}, &core.UnknownToolError{Agent: agentName, Tool: c.Name}
		}
	}

	switch {
	case len(delegates) > 0 && len(direct) > 0:
		return Batch{}, &core.MixedCallBatchError{Agent: agentName, Delegates: delegates, Direct: direct}
	case len(delegates) > 1:
		return Batch{}, &core.MultipleDelegationError{Agent: agentName, Targets: delegates}
	case len(delegates) == 1:
		d, _ := ts.Delegate(delegates[0])
		return Batch{Kind: BatchDelegate, Calls: calls, Delegate: d}, nil
	default:
		return Batch{Kind: BatchDirect, Calls: calls}, nil
	}
}
