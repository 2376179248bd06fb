package agent

import (
	"encoding/json"
	"fmt"

	"github.com/agenttree/agenttree/core"
	"github.com/agenttree/agenttree/model"
	"github.com/agenttree/agenttree/tool"
)

func boolPtr(b bool) *bool { return &b }

// LLMAgentOptions configures an LLMAgent. Override defaults with functional
// options passed to NewLLMAgent.
type LLMAgentOptions struct {
	Instruction           Instruction
	EnableStreaming       bool
	EnableFunctionCalling bool
	OutputKey             string
	MaxHistoryMessages    int
	AllowTransfer         bool
	Tools                 []tool.Tool
}

// LLMAgent is the leaf node of the execution tree: it consults a language
// model with the rendered conversation history, executes any requested tool
// calls, and keeps taking turns until the model produces a final response,
// requests a transfer, or escalates.
type LLMAgent struct {
	BaseAgent
	llm                   model.Model
	instruction           Instruction
	tools                 map[string]tool.Tool
	enableStreaming       bool
	enableFunctionCalling bool
	outputKey             string
	maxHistoryMessages    int
	allowTransfer         bool
}

// NewLLMAgent creates a model-backed agent. Defaults: streaming and function
// calling enabled, 20-message history window, transfers allowed.
func NewLLMAgent(name string, llm model.Model, optFns ...func(o *LLMAgentOptions)) *LLMAgent {
	opts := LLMAgentOptions{
		Instruction:           NewInstructionFromText(fmt.Sprintf("You are %s, a helpful AI assistant.", name)),
		EnableStreaming:       true,
		EnableFunctionCalling: true,
		MaxHistoryMessages:    20,
		AllowTransfer:         true,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	a := &LLMAgent{
		BaseAgent:             NewBaseAgent(name),
		llm:                   llm,
		instruction:           opts.Instruction,
		tools:                 make(map[string]tool.Tool, len(opts.Tools)),
		enableStreaming:       opts.EnableStreaming,
		enableFunctionCalling: opts.EnableFunctionCalling,
		outputKey:             opts.OutputKey,
		maxHistoryMessages:    opts.MaxHistoryMessages,
		allowTransfer:         opts.AllowTransfer,
	}
	a.RegisterTools(opts.Tools...)
	return a
}

// RegisterTool adds a tool to the agent's capability set. Registered tools
// become callable by the model when function calling is enabled.
func (a *LLMAgent) RegisterTool(t tool.Tool) { a.tools[t.Name()] = t }

// RegisterTools adds multiple tools at once.
func (a *LLMAgent) RegisterTools(tools ...tool.Tool) {
	for _, t := range tools {
		a.RegisterTool(t)
	}
}

// UnregisterTool removes a tool; reports whether it was registered.
func (a *LLMAgent) UnregisterTool(name string) bool {
	if _, exists := a.tools[name]; exists {
		delete(a.tools, name)
		return true
	}
	return false
}

// HasTool reports whether a tool is registered.
func (a *LLMAgent) HasTool(name string) bool {
	_, exists := a.tools[name]
	return exists
}

// ListTools returns the names of all registered tools.
func (a *LLMAgent) ListTools() []string {
	names := make([]string, 0, len(a.tools))
	for name := range a.tools {
		names = append(names, name)
	}
	return names
}

// GetTool retrieves a registered tool by name.
func (a *LLMAgent) GetTool(name string) (tool.Tool, bool) {
	t, exists := a.tools[name]
	return t, exists
}

// OutputKey returns the state key the final response text is saved under, or
// empty when disabled.
func (a *LLMAgent) OutputKey() string { return a.outputKey }

// ResolveInstructions produces the system prompt text, invoking a dynamic
// provider if configured.
func (a *LLMAgent) ResolveInstructions(ictx *core.InvocationContext) (string, error) {
	return a.instruction.Resolve(ictx)
}

// ExecuteTool decodes JSON arguments and invokes the named tool.
func (a *LLMAgent) ExecuteTool(toolCtx *core.ToolContext, toolName, args string) (any, error) {
	t, exists := a.tools[toolName]
	if !exists {
		return nil, fmt.Errorf("tool %s not found", toolName)
	}
	argsMap := map[string]any{}
	if args != "" {
		if err := json.Unmarshal([]byte(args), &argsMap); err != nil {
			return nil, fmt.Errorf("failed to unmarshal args: %w", err)
		}
	}
	return t.Call(toolCtx, argsMap)
}

// Run implements core.Agent by executing the request/response/tool loop.
func (a *LLMAgent) Run(ictx *core.InvocationContext) error {
	ictx.LogDebug("agent.run.start", "agent", a.Name(), "invocation", ictx.InvocationID)
	flow := &llmFlow{agent: a}
	return flow.run(ictx)
}
