package tool

import (
	"fmt"
	"strings"

	"github.com/agenttree/agenttree/core"
)

// StateManagerTool bundles session state, flow control, artifact and memory
// operations behind a single dispatching tool. Useful for agents that need
// broad framework access without registering a dozen individual tools.
type StateManagerTool struct {
	name        string
	description string
}

// NewStateManagerTool creates the state management tool.
func NewStateManagerTool() *StateManagerTool {
	return &StateManagerTool{
		name: "state_manager",
		description: "Manages session state, agent flow control, and framework integration. " +
			"Supports operations: get_state, set_state, transfer_agent, escalate, save_artifact, " +
			"load_artifact, list_artifacts, search_memory, store_memory, get_history, skip_summarization.",
	}
}

// Name returns the tool identifier.
func (t *StateManagerTool) Name() string { return t.name }

// Description returns the tool description.
func (t *StateManagerTool) Description() string { return t.description }

// Parameters returns the JSON schema for tool parameters.
func (t *StateManagerTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"operation": map[string]any{
				"type": "string",
				"enum": []string{
					"get_state", "set_state", "transfer_agent", "escalate",
					"save_artifact", "load_artifact", "list_artifacts",
					"search_memory", "store_memory", "get_history", "skip_summarization",
				},
				"description": "The operation to perform",
			},
			"key": map[string]any{
				"type":        "string",
				"description": "State key for get_state/set_state. Prefix with app:, user: or temp: for scoped keys.",
			},
			"value": map[string]any{
				"description": "Value for set_state (any type)",
			},
			"agent_name": map[string]any{
				"type":        "string",
				"description": "Target agent name for transfer_agent",
			},
			"artifact_id": map[string]any{
				"type":        "string",
				"description": "Artifact identifier for artifact operations",
			},
			"data": map[string]any{
				"type":        "string",
				"description": "Data for save_artifact",
			},
			"query": map[string]any{
				"type":        "string",
				"description": "Search query for search_memory",
			},
			"content": map[string]any{
				"type":        "string",
				"description": "Content for store_memory",
			},
			"metadata": map[string]any{
				"type":        "object",
				"description": "Metadata for store_memory",
			},
			"limit": map[string]any{
				"type":        "integer",
				"description": "Result limit for search_memory (default: 10)",
				"default":     10,
			},
		},
		"required": []string{"operation"},
	}
}

// Call dispatches to the requested operation.
func (t *StateManagerTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	operation, ok := args["operation"].(string)
	if !ok {
		return nil, fmt.Errorf("operation parameter is required")
	}

	switch operation {
	case "get_state":
		return t.handleGetState(args, toolCtx)
	case "set_state":
		return t.handleSetState(args, toolCtx)
	case "transfer_agent":
		return t.handleTransferAgent(args, toolCtx)
	case "escalate":
		toolCtx.Escalate()
		return map[string]any{"success": true, "message": "Escalation initiated"}, nil
	case "save_artifact":
		return t.handleSaveArtifact(args, toolCtx)
	case "load_artifact":
		return t.handleLoadArtifact(args, toolCtx)
	case "list_artifacts":
		return t.handleListArtifacts(toolCtx)
	case "search_memory":
		return t.handleSearchMemory(args, toolCtx)
	case "store_memory":
		return t.handleStoreMemory(args, toolCtx)
	case "get_history":
		return t.handleGetHistory(toolCtx)
	case "skip_summarization":
		toolCtx.SkipSummarization()
		return map[string]any{"success": true, "message": "Summarization will be skipped"}, nil
	default:
		return nil, fmt.Errorf("unknown operation: %s", operation)
	}
}

func (t *StateManagerTool) handleGetState(args map[string]any, toolCtx *core.ToolContext) (any, error) {
	key, ok := args["key"].(string)
	if !ok {
		return nil, fmt.Errorf("key parameter is required for get_state operation")
	}
	value, exists := toolCtx.GetState(key)
	return map[string]any{"key": key, "exists": exists, "value": value}, nil
}

func (t *StateManagerTool) handleSetState(args map[string]any, toolCtx *core.ToolContext) (any, error) {
	key, ok := args["key"].(string)
	if !ok {
		return nil, fmt.Errorf("key parameter is required for set_state operation")
	}
	value := args["value"]
	toolCtx.SetState(key, value)
	return map[string]any{
		"key":     key,
		"value":   value,
		"success": true,
	}, nil
}

func (t *StateManagerTool) handleTransferAgent(args map[string]any, toolCtx *core.ToolContext) (any, error) {
	agentName, ok := args["agent_name"].(string)
	if !ok {
		return nil, fmt.Errorf("agent_name parameter is required for transfer_agent operation")
	}
	toolCtx.TransferToAgent(agentName)
	return map[string]any{
		"agent_name": agentName,
		"success":    true,
		"message":    fmt.Sprintf("Transfer to agent '%s' requested", agentName),
	}, nil
}

func (t *StateManagerTool) handleSaveArtifact(args map[string]any, toolCtx *core.ToolContext) (any, error) {
	artifactID, ok := args["artifact_id"].(string)
	if !ok {
		return nil, fmt.Errorf("artifact_id parameter is required for save_artifact operation")
	}
	dataStr, ok := args["data"].(string)
	if !ok {
		return nil, fmt.Errorf("data parameter is required for save_artifact operation")
	}
	data := []byte(dataStr)
	if err := toolCtx.SaveArtifact(artifactID, data); err != nil {
		return nil, fmt.Errorf("failed to save artifact: %w", err)
	}
	return map[string]any{"artifact_id": artifactID, "size": len(data), "success": true}, nil
}

func (t *StateManagerTool) handleLoadArtifact(args map[string]any, toolCtx *core.ToolContext) (any, error) {
	artifactID, ok := args["artifact_id"].(string)
	if !ok {
		return nil, fmt.Errorf("artifact_id parameter is required for load_artifact operation")
	}
	data, err := toolCtx.LoadArtifact(artifactID)
	if err != nil {
		return nil, fmt.Errorf("failed to load artifact: %w", err)
	}
	return map[string]any{
		"artifact_id": artifactID,
		"data":        string(data),
		"size":        len(data),
		"success":     true,
	}, nil
}

func (t *StateManagerTool) handleListArtifacts(toolCtx *core.ToolContext) (any, error) {
	artifacts, err := toolCtx.ListArtifacts()
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	return map[string]any{"artifacts": artifacts, "count": len(artifacts), "success": true}, nil
}

func (t *StateManagerTool) handleSearchMemory(args map[string]any, toolCtx *core.ToolContext) (any, error) {
	query, ok := args["query"].(string)
	if !ok {
		return nil, fmt.Errorf("query parameter is required for search_memory operation")
	}
	limit := 10
	if l, ok := args["limit"].(float64); ok {
		limit = int(l)
	}
	results, err := toolCtx.SearchMemory(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search memory: %w", err)
	}
	return map[string]any{
		"query":   query,
		"count":   len(results),
		"results": results,
		"success": true,
	}, nil
}

func (t *StateManagerTool) handleStoreMemory(args map[string]any, toolCtx *core.ToolContext) (any, error) {
	content, ok := args["content"].(string)
	if !ok {
		return nil, fmt.Errorf("content parameter is required for store_memory operation")
	}
	metadata, _ := args["metadata"].(map[string]any)
	if err := toolCtx.StoreMemory(content, metadata); err != nil {
		return nil, fmt.Errorf("failed to store memory: %w", err)
	}
	return map[string]any{"success": true, "message": "Memory stored"}, nil
}

func (t *StateManagerTool) handleGetHistory(toolCtx *core.ToolContext) (any, error) {
	history := toolCtx.ConversationHistory()

	events := make([]map[string]any, len(history))
	for i, ev := range history {
		events[i] = map[string]any{
			"id":          ev.ID,
			"author":      ev.Author,
			"timestamp":   ev.Timestamp,
			"has_content": ev.Content != nil,
		}
		if ev.Content == nil || len(ev.Content.Parts) == 0 {
			continue
		}
		var summary []string
		for _, part := range ev.Content.Parts {
			switch p := part.(type) {
			case core.TextPart:
				preview := p.Text
				if len(preview) > 100 {
					preview = preview[:100] + "..."
				}
				summary = append(summary, fmt.Sprintf("text: %s", preview))
			case core.FunctionCallPart:
				summary = append(summary, fmt.Sprintf("function_call: %s", p.FunctionCall.Name))
			case core.FunctionResponsePart:
				summary = append(summary, fmt.Sprintf("function_response: %s", p.FunctionResponse.Name))
			default:
				summary = append(summary, "other")
			}
		}
		events[i]["content_summary"] = strings.Join(summary, ", ")
	}

	return map[string]any{"events": events, "count": len(events), "success": true}, nil
}
