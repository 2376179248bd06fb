package agent

import (
	"fmt"
	"strings"

	"github.com/agenttree/agenttree/core"
	"github.com/agenttree/agenttree/internal/util"
	"github.com/agenttree/agenttree/model"
	"github.com/agenttree/agenttree/tool"
)

// llmFlow drives one LLMAgent execution: assemble request, stream the model
// response, execute requested tools, repeat until the turn is final. The
// conversation history is snapshotted once at flow start; contents produced
// during the flow are tracked locally, so the flow never depends on how far
// the serialized consumer has caught up with its own events.
type llmFlow struct {
	agent *LLMAgent
}

func (f *llmFlow) run(ictx *core.InvocationContext) error {
	registry, transferable := f.toolRegistry()
	history := f.historyContents(ictx)
	var turn []core.Content

	for {
		req, err := f.buildRequest(ictx, registry, transferable, history, turn)
		if err != nil {
			return err
		}
		if err := ictx.Limiter.Increment(); err != nil {
			return err
		}

		final, err := f.generate(ictx, req)
		if err != nil {
			return err
		}
		if final == nil {
			return nil
		}

		ev := core.NewEvent(ictx.InvocationID, f.agent.Name())
		ev.Content = &final.Content
		ev.Partial = boolPtr(false)

		fnCalls := ev.GetFunctionCalls()
		if len(fnCalls) == 0 {
			if key := f.agent.OutputKey(); key != "" {
				if text := ev.Text(); text != "" {
					ictx.SetState(key, text)
				}
			}
			return ictx.EmitEvent(ev)
		}

		if err := ictx.EmitEvent(ev); err != nil {
			return err
		}
		turn = append(turn, final.Content)

		stop, toolContents, err := executeFunctions(ictx, f.agent, registry, fnCalls)
		turn = append(turn, toolContents...)
		if err != nil {
			return err
		}
		if stop {
			// Transfer or escalation requested; the runner takes it from here.
			return nil
		}
	}
}

// toolRegistry copies the agent's tools and injects the transfer tool when
// the agent may hand off and has somewhere to hand off to.
func (f *llmFlow) toolRegistry() (map[string]tool.Tool, []core.Agent) {
	registry := make(map[string]tool.Tool, len(f.agent.tools)+1)
	for name, t := range f.agent.tools {
		registry[name] = t
	}

	var transferable []core.Agent
	if f.agent.allowTransfer {
		transferable = f.agent.SubAgents()
	}
	if len(transferable) > 0 {
		transfer := tool.NewTransferToAgentTool(transferable)
		registry[transfer.Name()] = transfer
	}
	return registry, transferable
}

// historyContents renders the compaction-aware history into request contents,
// windowed to the agent's history limit.
func (f *llmFlow) historyContents(ictx *core.InvocationContext) []core.Content {
	events := ictx.ConversationHistory()
	if max := f.agent.maxHistoryMessages; max > 0 && len(events) > max {
		events = events[len(events)-max:]
	}
	contents := make([]core.Content, 0, len(events))
	for _, ev := range events {
		if ev.Content != nil && len(ev.Content.Parts) > 0 {
			contents = append(contents, *ev.Content)
		}
	}
	return contents
}

func (f *llmFlow) buildRequest(
	ictx *core.InvocationContext,
	registry map[string]tool.Tool,
	transferable []core.Agent,
	history, turn []core.Content,
) (model.Request, error) {
	instructions, err := f.agent.ResolveInstructions(ictx)
	if err != nil {
		return model.Request{}, fmt.Errorf("failed to resolve instruction: %w", err)
	}
	if ictx.Session != nil {
		instructions, err = util.RenderTemplate(instructions, ictx.Session.StateSnapshot())
		if err != nil {
			return model.Request{}, fmt.Errorf("failed to render instruction template: %w", err)
		}
	}
	if len(transferable) > 0 {
		instructions += transferPrompt(transferable)
	}

	req := model.Request{
		Instructions: instructions,
		Contents:     append(append([]core.Content{}, history...), turn...),
		Stream:       f.agent.enableStreaming,
	}

	if f.agent.enableFunctionCalling && len(registry) > 0 {
		defs := make([]model.ToolDefinition, 0, len(registry))
		for _, t := range registry {
			defs = append(defs, model.ToolDefinition{
				Type: "function",
				Function: model.FunctionDefinition{
					Name:        t.Name(),
					Description: t.Description(),
					Parameters:  t.Parameters(),
				},
			})
		}
		req.Tools = defs
	}
	return req, nil
}

// generate consumes the model's response stream, forwarding partial chunks as
// partial events and returning the final response.
func (f *llmFlow) generate(ictx *core.InvocationContext, req model.Request) (*model.Response, error) {
	respCh, errCh := f.agent.llm.Generate(ictx.Context, req)

	var final *model.Response
	for {
		select {
		case resp, ok := <-respCh:
			if !ok {
				return final, nil
			}
			if resp.Partial {
				ev := core.NewEvent(ictx.InvocationID, f.agent.Name())
				content := resp.Content
				ev.Content = &content
				ev.Partial = boolPtr(true)
				if err := ictx.EmitEvent(ev); err != nil {
					return nil, err
				}
				continue
			}
			respCopy := resp
			final = &respCopy
		case err, ok := <-errCh:
			if ok && err != nil {
				return nil, fmt.Errorf("model generate failed: %w", err)
			}
			errCh = nil
		case <-ictx.Done():
			return nil, ictx.Err()
		}
	}
}

// transferPrompt appends routing guidance listing the agents control can be
// handed to.
func transferPrompt(agents []core.Agent) string {
	var b strings.Builder
	b.WriteString("\n\nYou can transfer control to the following agents using the transfer_to_agent tool:\n")
	for _, a := range agents {
		fmt.Fprintf(&b, "- %s: %s\n", a.Name(), a.Description())
	}
	return b.String()
}
