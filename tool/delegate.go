package tool

import (
	"strings"

	"github.com/hupe1980/vaxmesh/core"
)

// DelegatePrefix prefixes the tool name a delegate target is exposed under.
const DelegatePrefix = "transfer_to_"

// DelegateName returns the tool name that hands off to target.
func DelegateName(target string) string { return DelegatePrefix + target }

// Delegate is a tool whose only effect is naming the topic control moves to.
// It never performs I/O; the turn loop publishes the handoff.
type Delegate struct {
	target      string
	description string
}

var _ Tool = (*Delegate)(nil)

// NewDelegate constructs the handoff tool for target.
func NewDelegate(target, description string) *Delegate {
	if description == "" {
		description = "Transfer the conversation to " + strings.ReplaceAll(target, "_", " ") + "."
	}

	return &Delegate{target: target, description: description}
}

// Name returns transfer_to_<target>.
func (d *Delegate) Name() string { return DelegateName(d.target) }

// Description returns the handoff description shown to the model.
func (d *Delegate) Description() string { return d.description }

// Parameters returns an empty object schema; delegates take no arguments.
func (d *Delegate) Parameters() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

// Target returns the topic this delegate resolves to.
func (d *Delegate) Target() string { return d.target }

// Call resolves the handoff target.
func (d *Delegate) Call(tc *core.ToolContext, _ map[string]any) (any, error) {
	tc.LogDebug("tool.delegate.resolved", "target", d.target)
	return d.target, nil
}
