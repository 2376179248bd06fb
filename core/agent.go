package core

// Agent is the node capability of the execution tree. A node produces one
// ordered stream of events by emitting into its InvocationContext; composite
// variants (sequential, parallel, loop) produce theirs by coordinating
// children.
//
// The tree is composed once at startup and read-only afterwards, so a single
// tree is safely shared by every concurrent invocation of every session.
// Implementations must respect context cancellation and must not retain the
// InvocationContext beyond Run.
type Agent interface {
	// Name is the routing identifier: unique within the tree.
	Name() string

	// Description summarizes what the node does, used in transfer prompts.
	Description() string

	// Run executes the node, emitting events through ictx until the subtree
	// completes. Returning an error aborts the invocation.
	Run(ictx *InvocationContext) error

	// SetSubAgents replaces the child set and establishes parent links.
	// Only valid during tree construction.
	SetSubAgents(children ...Agent) error

	// SubAgents returns the ordered child list.
	SubAgents() []Agent

	// Parent returns the parent node, or nil at the root.
	Parent() Agent

	// FindAgent locates a node by name in the subtree rooted here (depth
	// first, including the receiver). Nil when absent.
	FindAgent(name string) Agent
}

// AgentInfo carries identifying details about an agent in contexts & events.
type AgentInfo struct{ Name, Type string }
