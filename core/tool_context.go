package core

import (
	"context"

	"github.com/agenttree/agenttree/logging"
)

// ToolContext is the constrained surface handed to tool implementations. It
// accumulates EventActions (state deltas, transfer, escalation, artifact
// bookkeeping) without touching the session directly; the executing agent
// folds the accumulated actions into the function-response event it emits.
type ToolContext struct {
	ictx           *InvocationContext
	functionCallID string
	eventActions   EventActions

	*loggerAdapter
}

// NewToolContext binds a tool context to its parent invocation and the
// function call being executed.
func NewToolContext(ictx *InvocationContext, functionCallID string) *ToolContext {
	return &ToolContext{
		ictx:           ictx,
		functionCallID: functionCallID,
		eventActions:   EventActions{},
		loggerAdapter:  newLoggerAdapter(ictx.Logger()),
	}
}

// Context returns the ambient cancellation context.
func (tc *ToolContext) Context() context.Context { return tc.ictx.Context }

// SessionID returns the session the tool call belongs to.
func (tc *ToolContext) SessionID() string { return tc.ictx.SessionID() }

// InvocationID returns the invocation the tool call belongs to.
func (tc *ToolContext) InvocationID() string { return tc.ictx.InvocationID }

// FunctionCallID returns the id of the originating function call.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// AgentName returns the calling agent's name.
func (tc *ToolContext) AgentName() string { return tc.ictx.Agent.Name }

// GetState reads through staged deltas into the scratch session view.
func (tc *ToolContext) GetState(k string) (any, bool) { return tc.ictx.GetState(k) }

// SetState records a mutation both on the invocation context (immediate
// visibility for this producer) and in the local actions delta for emission.
func (tc *ToolContext) SetState(k string, v any) {
	tc.ictx.SetState(k, v)
	if tc.eventActions.StateDelta == nil {
		tc.eventActions.StateDelta = map[string]any{}
	}
	tc.eventActions.StateDelta[k] = v
}

// Actions returns the accumulated event actions.
func (tc *ToolContext) Actions() *EventActions { return &tc.eventActions }

// ApplyActions folds the accumulated actions into ev, typically the
// function-response event that reports this tool call's outcome.
func (tc *ToolContext) ApplyActions(ev *Event) {
	if len(tc.eventActions.StateDelta) > 0 {
		if ev.Actions.StateDelta == nil {
			ev.Actions.StateDelta = map[string]any{}
		}
		for k, v := range tc.eventActions.StateDelta {
			ev.Actions.StateDelta[k] = v
		}
	}
	if len(tc.eventActions.ArtifactDelta) > 0 {
		if ev.Actions.ArtifactDelta == nil {
			ev.Actions.ArtifactDelta = map[string]int{}
		}
		for k, v := range tc.eventActions.ArtifactDelta {
			ev.Actions.ArtifactDelta[k] = v
		}
	}
	if tc.eventActions.SkipSummarization != nil {
		ev.Actions.SkipSummarization = tc.eventActions.SkipSummarization
	}
	if tc.eventActions.TransferToAgent != nil {
		ev.Actions.TransferToAgent = tc.eventActions.TransferToAgent
	}
	if tc.eventActions.Escalate != nil {
		ev.Actions.Escalate = tc.eventActions.Escalate
	}
}

// SkipSummarization flags the originating event to bypass summarization.
func (tc *ToolContext) SkipSummarization() {
	b := true
	tc.eventActions.SkipSummarization = &b
}

// TransferToAgent requests a hand-off to another node. The runner resolves
// the name through the router; tools cannot redirect outside the reachable
// subtree.
func (tc *ToolContext) TransferToAgent(name string) {
	tc.eventActions.TransferToAgent = &name
	tc.LogInfo("tool.transfer.request", "from_agent", tc.AgentName(), "to_agent", name, "function_call_id", tc.functionCallID)
}

// Escalate requests that the current subtree stop and control return to the
// caller; inside a loop it exits the loop.
func (tc *ToolContext) Escalate() {
	b := true
	tc.eventActions.Escalate = &b
	tc.LogInfo("tool.escalate.request", "agent", tc.AgentName(), "function_call_id", tc.functionCallID)
}

// SaveArtifact persists artifact bytes and records the version bump in the
// accumulated actions so it rides the function-response event.
func (tc *ToolContext) SaveArtifact(id string, data []byte) error {
	if err := tc.ictx.SaveArtifact(id, data); err != nil {
		return err
	}
	if tc.eventActions.ArtifactDelta == nil {
		tc.eventActions.ArtifactDelta = map[string]int{}
	}
	tc.eventActions.ArtifactDelta[id]++
	return nil
}

// LoadArtifact retrieves artifact bytes.
func (tc *ToolContext) LoadArtifact(id string) ([]byte, error) {
	return tc.ictx.LoadArtifact(id)
}

// ListArtifacts returns the artifact IDs saved under the current session.
func (tc *ToolContext) ListArtifacts() ([]string, error) {
	if tc.ictx.ArtifactStore == nil {
		return nil, nil
	}
	return tc.ictx.ArtifactStore.List(tc.SessionID())
}

// ConversationHistory returns the compaction-aware view of the session log.
func (tc *ToolContext) ConversationHistory() []Event {
	return tc.ictx.ConversationHistory()
}

// SearchMemory queries conversational memory.
func (tc *ToolContext) SearchMemory(q string, limit int) ([]SearchResult, error) {
	return tc.ictx.SearchMemory(q, limit)
}

// StoreMemory appends content to conversational memory.
func (tc *ToolContext) StoreMemory(content string, md map[string]any) error {
	return tc.ictx.StoreMemory(content, md)
}

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.loggerAdapter.Logger() }
