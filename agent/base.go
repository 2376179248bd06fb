package agent

import (
	"fmt"
	"sync"

	"github.com/agenttree/agenttree/core"
)

// BaseAgent bundles identity and hierarchy management shared by all node
// implementations. Embed it in a concrete agent and supply Run to satisfy
// core.Agent. Hierarchy mutation happens during tree construction only; after
// SetSubAgents the structure is read-only and safe to share across
// invocations.
type BaseAgent struct {
	name        string
	description string
	mu          sync.Mutex
	self        core.Agent
	parent      core.Agent
	subAgents   []core.Agent
}

// NewBaseAgent constructs a BaseAgent with a generated description
// (customizable via SetDescription).
func NewBaseAgent(name string) BaseAgent {
	return BaseAgent{
		name:        name,
		description: fmt.Sprintf("Agent %s", name),
	}
}

// Name returns the routing identifier for this agent.
func (b *BaseAgent) Name() string { return b.name }

// Description returns a description of this agent's purpose.
func (b *BaseAgent) Description() string { return b.description }

// SetDescription updates the agent's description. Descriptions surface in
// transfer prompts, so make them specific enough for a model to route on.
func (b *BaseAgent) SetDescription(desc string) { b.description = desc }

// SetSubAgents atomically replaces the child set, clearing previous parent
// links and assigning this agent as the parent of each new child. A child
// has exactly one parent.
func (b *BaseAgent) SetSubAgents(children ...core.Agent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, child := range b.subAgents {
		if setter, ok := child.(interface{ setParent(core.Agent) }); ok {
			setter.setParent(nil)
		}
	}
	b.subAgents = nil

	for _, child := range children {
		if setter, ok := child.(interface{ setParent(core.Agent) }); ok {
			// Wrap so the reference satisfies core.Agent
			setter.setParent(&agentWrapper{b})
		}
		if binder, ok := child.(interface{ bindSelf(core.Agent) }); ok {
			binder.bindSelf(child)
		}
		b.subAgents = append(b.subAgents, child)
	}

	return nil
}

// bindSelf records the concrete agent embedding this BaseAgent so FindAgent
// self-matches resolve to an executable node instead of a wrapper.
func (b *BaseAgent) bindSelf(self core.Agent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.self = self
}

// setParent sets the internal parent reference.
func (b *BaseAgent) setParent(p core.Agent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.parent = p
}

// Parent returns the parent agent, or nil at the root.
func (b *BaseAgent) Parent() core.Agent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.parent
}

// SubAgents returns a shallow copy of the child list for safe iteration.
func (b *BaseAgent) SubAgents() []core.Agent {
	b.mu.Lock()
	defer b.mu.Unlock()
	result := make([]core.Agent, len(b.subAgents))
	copy(result, b.subAgents)
	return result
}

// FindAgent performs a depth-first search over the subtree rooted at this
// agent (including itself), returning the first agent whose Name matches or
// nil when absent.
func (b *BaseAgent) FindAgent(name string) core.Agent {
	if b.name == name {
		b.mu.Lock()
		self := b.self
		b.mu.Unlock()
		if self != nil {
			return self
		}
		return &agentWrapper{b}
	}
	for _, child := range b.SubAgents() {
		if child.Name() == name {
			return child
		}
		if found := child.FindAgent(name); found != nil {
			return found
		}
	}
	return nil
}

// agentWrapper wraps BaseAgent to satisfy core.Agent for hierarchy
// references.
type agentWrapper struct{ *BaseAgent }

func (w *agentWrapper) Run(_ *core.InvocationContext) error {
	return fmt.Errorf("cannot execute BaseAgent directly - embed it in a concrete agent with a Run implementation")
}
