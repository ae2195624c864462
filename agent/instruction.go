package agent

import "github.com/hupe1980/vaxmesh/core"

// Provider supplies dynamic instruction text at invocation time, derived
// from the session's slot-filling state.
type Provider interface {
	Instruction(core.UserSessionContext) (string, error)
}

// Func is a functional adapter to allow ordinary functions to be used as Providers.
type Func func(core.UserSessionContext) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(s core.UserSessionContext) (string, error) { return f(s) }

// Instruction represents either a static instruction string or a dynamic provider.
//
// Static text may contain text/template actions over the session fields
// (for example {{.date}} or {{addDays .date 3}}); the turn loop renders them.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText creates an Instruction from a static string.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(core.UserSessionContext) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// IsStatic returns true if the instruction is backed by a static string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// Resolve returns the instruction text, invoking the provider if needed.
func (i Instruction) Resolve(s core.UserSessionContext) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(s)
	}
	return i.text, nil
}
