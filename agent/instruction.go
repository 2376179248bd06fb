package agent

import "github.com/agenttree/agenttree/core"

// Provider supplies dynamic instruction text at runtime. Implementations can
// derive instructions from session state, environment or anything else.
type Provider interface {
	Instruction(*core.InvocationContext) (string, error)
}

// Func adapts an ordinary function to the Provider interface.
type Func func(*core.InvocationContext) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(ic *core.InvocationContext) (string, error) { return f(ic) }

// Instruction is either a static instruction string or a dynamic provider,
// a Go-idiomatic union of string | Provider.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText creates an Instruction from a static string.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(*core.InvocationContext) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// IsStatic reports whether the instruction is backed by a static string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// Resolve returns the instruction text, invoking the provider if needed.
func (i Instruction) Resolve(ictx *core.InvocationContext) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(ictx)
	}
	return i.text, nil
}
