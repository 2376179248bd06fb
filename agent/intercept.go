package agent

import (
	"github.com/agenttree/agenttree/core"
)

// agentInfo derives the event attribution for a node.
func agentInfo(a core.Agent) core.AgentInfo {
	info := core.AgentInfo{Name: a.Name(), Type: "agent"}
	switch a.(type) {
	case *LLMAgent:
		info.Type = "llm"
	case *SequentialAgent:
		info.Type = "sequential"
	case *ParallelAgent:
		info.Type = "parallel"
	case *LoopAgent:
		info.Type = "loop"
	}
	return info
}

// interceptRun executes child with its events routed through an intercept
// channel so the caller observes escalation before forwarding to the parent
// stream. Every intercepted event is forwarded; none are dropped. The
// optional setup hook runs against the derived child context before the
// child starts (for staging state that should ride the child's first event).
//
// Returns escalated=true when the child emitted an event with the escalate
// action set.
func interceptRun(
	ictx *core.InvocationContext,
	child core.Agent,
	branch string,
	setup func(cctx *core.InvocationContext),
) (bool, error) {
	intercept := make(chan core.Event, 16)
	cctx := ictx.NewChildContext(intercept, branch)
	cctx.Agent = agentInfo(child)
	if setup != nil {
		setup(cctx)
	}

	done := make(chan error, 1)
	go func() {
		done <- child.Run(cctx)
	}()

	escalated := false
	for {
		select {
		case ev := <-intercept:
			if ev.IsEscalation() {
				escalated = true
			}
			if err := ictx.EmitEvent(ev); err != nil {
				// Parent context ended; unblock the child and surface its
				// outcome.
				go drain(intercept, done)
				return escalated, err
			}
		case err := <-done:
			// Child finished; flush anything still buffered.
			for {
				select {
				case ev := <-intercept:
					if ev.IsEscalation() {
						escalated = true
					}
					if emitErr := ictx.EmitEvent(ev); emitErr != nil {
						return escalated, emitErr
					}
				default:
					return escalated, err
				}
			}
		case <-ictx.Done():
			go drain(intercept, done)
			return escalated, ictx.Err()
		}
	}
}

// drain keeps consuming intercepted events until the child returns, so a
// child blocked on a full buffer can still exit after cancellation.
func drain(intercept <-chan core.Event, done <-chan error) {
	for {
		select {
		case <-intercept:
		case <-done:
			return
		}
	}
}
