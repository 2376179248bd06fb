package agent

import (
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/agenttree/agenttree/core"
	"github.com/agenttree/agenttree/tool"
)

// executeFunctions runs a batch of model-requested tool calls, possibly in
// parallel, and emits exactly one function-response event per call in the
// original call order. Tool panics are recovered and reported as errors, and
// each tool's accumulated actions (state deltas, transfer, escalation) are
// folded into its response event.
//
// Returns stop=true when any response carries a transfer or escalation
// action, plus the response contents for the flow's local turn buffer.
func executeFunctions(
	ictx *core.InvocationContext,
	agent *LLMAgent,
	registry map[string]tool.Tool,
	fnCalls []core.FunctionCall,
) (bool, []core.Content, error) {
	n := len(fnCalls)
	if n == 0 {
		return false, nil, nil
	}

	events := make([]core.Event, n)
	var wg sync.WaitGroup

	batchStart := time.Now()
	for i := range fnCalls {
		if ictx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(idx int, fc core.FunctionCall) {
			defer wg.Done()

			// Each call gets its own delta buffers so parallel tools never
			// race on staged state; deltas travel on the response event.
			cctx := ictx.NewChildContext(ictx.Emit, ictx.Branch)
			toolCtx := core.NewToolContext(cctx, fc.ID)

			execStart := time.Now()
			var (
				result any
				err    error
			)
			func() {
				defer func() {
					if r := recover(); r != nil {
						err = panicError(r)
						ictx.LogError("agent.function.panic", "agent", agent.Name(), "function", fc.Name, "recover", r)
					}
				}()
				result, err = callTool(registry, toolCtx, fc.Name, fc.Arguments)
			}()

			ictx.LogInfo(
				"agent.function.executed",
				"agent", agent.Name(),
				"function", fc.Name,
				"duration_ms", time.Since(execStart).Milliseconds(),
				"error", err != nil,
			)

			respEv := core.NewFunctionResponseEvent(ictx.InvocationID, agent.Name(), fc.ID, fc.Name, result, err)
			toolCtx.ApplyActions(&respEv)
			events[idx] = respEv
		}(i, fnCalls[i])
	}
	wg.Wait()

	stop := false
	contents := make([]core.Content, 0, n)
	for _, ev := range events {
		if ev.ID == "" {
			continue
		}
		if _, ok := ev.TransferTarget(); ok {
			stop = true
		}
		if ev.IsEscalation() {
			stop = true
		}
		if err := ictx.EmitEvent(ev); err != nil {
			return stop, contents, err
		}
		if ev.Content != nil {
			contents = append(contents, *ev.Content)
		}
	}

	ictx.LogDebug(
		"agent.functions.batch.complete",
		"agent", agent.Name(),
		"count", n,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)
	return stop, contents, nil
}

// callTool centralizes tool lookup, argument decoding and execution.
func callTool(registry map[string]tool.Tool, toolCtx *core.ToolContext, toolName, args string) (any, error) {
	impl, ok := registry[toolName]
	if !ok {
		return nil, fmt.Errorf("tool %s not found", toolName)
	}

	argMap := map[string]any{}
	if args != "" {
		if err := json.Unmarshal([]byte(args), &argMap); err != nil {
			return nil, fmt.Errorf("failed to unmarshal args: %w", err)
		}
	}
	return impl.Call(toolCtx, argMap)
}

// panicError converts a recovered panic value to an error.
func panicError(r any) error {
	return &panicErr{val: r, stack: debug.Stack()}
}

type panicErr struct {
	val   any
	stack []byte
}

func (p *panicErr) Error() string { return fmt.Sprintf("tool panicked: %v", p.val) }
