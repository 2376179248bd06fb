package runner

import (
	"github.com/agenttree/agenttree/core"
)

// TransferRouter resolves transfer requests against the execution tree. The
// allow-list is descendant-only: an agent may hand control to nodes in its
// own subtree, never to ancestors or siblings. Unknown or unreachable targets
// produce a RoutingError and the request has no effect on state.
type TransferRouter struct {
	root core.Agent
}

// NewTransferRouter creates a router over the tree rooted at root.
func NewTransferRouter(root core.Agent) *TransferRouter {
	return &TransferRouter{root: root}
}

// Resolve returns the agent to hand control to. The from name identifies the
// requesting agent; an empty or unknown from falls back to the root (used
// when resuming a session whose active agent has been removed from the tree).
func (r *TransferRouter) Resolve(from, target string) (core.Agent, error) {
	requester := r.root
	if from != "" {
		if found := r.root.FindAgent(from); found != nil {
			requester = found
		}
	}

	if target == "" || target == requester.Name() {
		return nil, &core.RoutingError{Target: target, From: from}
	}
	for _, child := range requester.SubAgents() {
		if child.Name() == target {
			return child, nil
		}
		if found := child.FindAgent(target); found != nil {
			return found, nil
		}
	}
	return nil, &core.RoutingError{Target: target, From: from}
}

// ResolveActive maps the persisted active_agent name to a node, defaulting to
// the root when the name is empty or no longer part of the tree.
func (r *TransferRouter) ResolveActive(name string) core.Agent {
	// Match the root by name directly: the tree's own self-lookup cannot
	// hand back the concrete root node.
	if name == "" || name == r.root.Name() {
		return r.root
	}
	if found := r.root.FindAgent(name); found != nil {
		return found
	}
	return r.root
}
