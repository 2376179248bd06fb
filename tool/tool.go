// Package tool implements the function calling subsystem: schema-validated
// capabilities that agents expose to models, with uniform error handling.
package tool

import (
	"fmt"

	"github.com/agenttree/agenttree/core"
	"github.com/agenttree/agenttree/internal/util"
)

// Tool is a structured capability an agent can offer to its model. Tools run
// with a ToolContext, giving them session state, flow control (transfer,
// escalate), artifacts and memory.
//
// Implementations must be safe for concurrent use; the same tool instance can
// serve parallel invocations.
type Tool interface {
	// Name returns the unique identifier for this tool (snake_case).
	Name() string

	// Description tells the model when and how to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the accepted arguments.
	Parameters() map[string]any

	// Call executes the tool. Arguments have already been decoded from the
	// model's function call JSON; implementations validate as needed.
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// ValidationError reports schema/argument mismatch.
type ValidationError = util.ValidationError

// ToolError is the uniform error type surfaced by tool execution.
type ToolError struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a ToolError with the given code.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}
