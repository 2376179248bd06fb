package tool

import (
	"fmt"
	"strings"

	"github.com/agenttree/agenttree/core"
)

// transferToAgentTool requests routing of control to one of a fixed set of
// reachable agents. Transfers are descendant-only, so the candidate set is
// known when the tool is built; baking the names into the parameter schema
// constrains the model to the allow-list before the runner ever routes the
// request.
type transferToAgentTool struct {
	names        []string
	descriptions map[string]string
}

// NewTransferToAgentTool builds the transfer tool over the agents control may
// be handed to.
func NewTransferToAgentTool(targets []core.Agent) Tool {
	t := &transferToAgentTool{descriptions: map[string]string{}}
	for _, target := range targets {
		t.names = append(t.names, target.Name())
		t.descriptions[target.Name()] = target.Description()
	}
	return t
}

func (t *transferToAgentTool) Name() string { return "transfer_to_agent" }

func (t *transferToAgentTool) Description() string {
	var b strings.Builder
	b.WriteString("Hand the conversation to another agent when it is better suited. Available agents:")
	for _, name := range t.names {
		fmt.Fprintf(&b, " %s (%s);", name, t.descriptions[name])
	}
	return strings.TrimSuffix(b.String(), ";")
}

func (t *transferToAgentTool) Parameters() map[string]any {
	enum := make([]any, len(t.names))
	for i, name := range t.names {
		enum[i] = name
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"agent": map[string]any{
				"type":        "string",
				"enum":        enum,
				"description": "Name of the agent to hand the conversation to",
			},
		},
		"required": []string{"agent"},
	}
}

func (t *transferToAgentTool) Call(tc *core.ToolContext, args map[string]any) (any, error) {
	name, ok := args["agent"].(string)
	if !ok || name == "" {
		return nil, fmt.Errorf("missing required field 'agent'")
	}
	if _, known := t.descriptions[name]; !known {
		return nil, fmt.Errorf("agent %q is not reachable from here; choose one of: %s",
			name, strings.Join(t.names, ", "))
	}
	tc.TransferToAgent(name)
	return map[string]any{"transferred": true, "agent": name}, nil
}
