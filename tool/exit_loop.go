package tool

import (
	"github.com/agenttree/agenttree/core"
)

// exitLoopTool raises the escalate signal, which terminates the innermost
// enclosing loop agent (and, at the top level, the whole invocation).
type exitLoopTool struct{}

// NewExitLoopTool constructs the exit-loop tool instance.
func NewExitLoopTool() Tool { return &exitLoopTool{} }

func (t *exitLoopTool) Name() string { return "exit_loop" }

func (t *exitLoopTool) Description() string {
	return "Exit the current loop. Use when the task is complete or no further iterations would help."
}

func (t *exitLoopTool) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

func (t *exitLoopTool) Call(tc *core.ToolContext, args map[string]any) (any, error) {
	tc.Escalate()
	return map[string]any{"exited": true}, nil
}
