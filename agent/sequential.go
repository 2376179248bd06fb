package agent

import (
	"github.com/agenttree/agenttree/core"
)

// SequentialAgent executes its children one after another in declaration
// order, all against the same session, so each child sees the state and
// events its predecessors produced.
//
// An error from a child stops the sequence and surfaces as a
// ChildExecutionError. An escalation from a child stops the remaining
// children without error: the child has declared the task finished or
// impossible, and later steps have nothing to add.
type SequentialAgent struct {
	BaseAgent
	children []core.Agent
}

// NewSequentialAgent creates a sequential coordinator over the given
// children. The children are also registered as sub-agents for hierarchy
// traversal.
func NewSequentialAgent(name string, children ...core.Agent) *SequentialAgent {
	s := &SequentialAgent{
		BaseAgent: NewBaseAgent(name),
		children:  children,
	}
	_ = s.SetSubAgents(children...)
	return s
}

// Run implements core.Agent.
func (s *SequentialAgent) Run(ictx *core.InvocationContext) error {
	for _, child := range s.children {
		select {
		case <-ictx.Done():
			return ictx.Err()
		default:
		}

		escalated, err := interceptRun(ictx, child, ictx.Branch, nil)
		if err != nil {
			return &core.ChildExecutionError{Agent: child.Name(), Err: err}
		}
		if escalated {
			ictx.LogDebug("agent.sequential.escalated", "agent", s.Name(), "child", child.Name())
			break
		}
	}
	return nil
}
