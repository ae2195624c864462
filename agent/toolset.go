package agent

import (
	"github.com/hupe1980/vaxmesh/model"
	"github.com/hupe1980/vaxmesh/tool"
)

// CallKind classifies a tool name within one agent's sandbox.
type CallKind int

const (
	// CallUnknown means the name is outside the agent's sandbox.
	CallUnknown CallKind = iota
	// CallDirect means the name is a direct tool.
	CallDirect
	// CallDelegate means the name hands off to another agent.
	CallDelegate
)

func (k CallKind) String() string {
	switch k {
	case CallDirect:
		return "direct"
	case CallDelegate:
		return "delegate"
	default:
		return "unknown"
	}
}

// Toolset is the resolved capability sandbox of one agent.
type Toolset struct {
	direct      map[string]tool.Tool
	delegates   map[string]*tool.Delegate
	definitions []model.ToolDefinition
}

func newToolset(direct []tool.Tool, delegates []*tool.Delegate) *Toolset {
	ts := &Toolset{
		direct:      make(map[string]tool.Tool, len(direct)),
		delegates:   make(map[string]*tool.Delegate, len(delegates)),
		definitions: make([]model.ToolDefinition, 0, len(direct)+len(delegates)),
	}

	for _, t := range direct {
		ts.direct[t.Name()] = t
		ts.definitions = append(ts.definitions, model.NewFunctionDefinition(t.Name(), t.Description(), t.Parameters()))
	}

	for _, d := range delegates {
		ts.delegates[d.Name()] = d
		ts.definitions = append(ts.definitions, model.NewFunctionDefinition(d.Name(), d.Description(), d.Parameters()))
	}

	return ts
}

// Classify reports whether name is a direct tool, a delegate or unknown.
func (ts *Toolset) Classify(name string) CallKind {
	if _, ok := ts.direct[name]; ok {
		return CallDirect
	}

	if _, ok := ts.delegates[name]; ok {
		return CallDelegate
	}

	return CallUnknown
}

// Direct returns the direct tool registered under name.
func (ts *Toolset) Direct(name string) (tool.Tool, bool) {
	t, ok := ts.direct[name]
	return t, ok
}

// Delegate returns the delegate tool registered under name.
func (ts *Toolset) Delegate(name string) (*tool.Delegate, bool) {
	d, ok := ts.delegates[name]
	return d, ok
}

// Definitions returns the tool signatures offered to the model: direct tools
// in declaration order followed by delegates.
func (ts *Toolset) Definitions() []model.ToolDefinition {
	return append([]model.ToolDefinition(nil), ts.definitions...)
}

// Len returns the number of callable names.
func (ts *Toolset) Len() int { return len(ts.direct) + len(ts.delegates) }
