package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenttree/agenttree/core"
)

// buildTree constructs:
//
//	Root
//	├── Triage
//	│   ├── Billing
//	│   │   └── Refunds
//	│   └── Support
//	└── Reporter
func buildTree(t *testing.T) core.Agent {
	t.Helper()
	refunds := newScriptAgent("Refunds", nil)
	billing := newScriptAgent("Billing", nil)
	require.NoError(t, billing.SetSubAgents(refunds))
	support := newScriptAgent("Support", nil)
	triage := newScriptAgent("Triage", nil)
	require.NoError(t, triage.SetSubAgents(billing, support))
	reporter := newScriptAgent("Reporter", nil)
	root := newScriptAgent("Root", nil)
	require.NoError(t, root.SetSubAgents(triage, reporter))
	return root
}

func TestTransferRouter_ResolvesDescendants(t *testing.T) {
	router := NewTransferRouter(buildTree(t))

	// Direct child.
	got, err := router.Resolve("Triage", "Billing")
	require.NoError(t, err)
	assert.Equal(t, "Billing", got.Name())

	// Deeper descendant.
	got, err = router.Resolve("Triage", "Refunds")
	require.NoError(t, err)
	assert.Equal(t, "Refunds", got.Name())
}

func TestTransferRouter_RejectsNonDescendants(t *testing.T) {
	router := NewTransferRouter(buildTree(t))

	var rerr *core.RoutingError

	// Sibling.
	_, err := router.Resolve("Billing", "Support")
	require.ErrorAs(t, err, &rerr)

	// Ancestor.
	_, err = router.Resolve("Billing", "Triage")
	require.ErrorAs(t, err, &rerr)

	// Self.
	_, err = router.Resolve("Triage", "Triage")
	require.ErrorAs(t, err, &rerr)

	// Unknown.
	_, err = router.Resolve("Triage", "Ghost")
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "Ghost", rerr.Target)

	// Empty target.
	_, err = router.Resolve("Triage", "")
	require.ErrorAs(t, err, &rerr)
}

func TestTransferRouter_UnknownRequesterFallsBackToRoot(t *testing.T) {
	router := NewTransferRouter(buildTree(t))

	got, err := router.Resolve("Removed", "Reporter")
	require.NoError(t, err)
	assert.Equal(t, "Reporter", got.Name())
}

func TestTransferRouter_ResolveActive(t *testing.T) {
	router := NewTransferRouter(buildTree(t))

	assert.Equal(t, "Root", router.ResolveActive("").Name())
	assert.Equal(t, "Support", router.ResolveActive("Support").Name())
	assert.Equal(t, "Root", router.ResolveActive("Ghost").Name())
}

func TestTransferRouter_ResolveActiveRootIsConcrete(t *testing.T) {
	root := newScriptAgent("Root", nil)
	require.NoError(t, root.SetSubAgents(newScriptAgent("Worker", nil)))
	router := NewTransferRouter(root)

	// Resolving the root by its own name must hand back the runnable node,
	// not a non-executable lookup result.
	active := router.ResolveActive("Root")
	assert.Same(t, root, active)
	assert.NoError(t, active.Run(nil))

	// The same holds for descendants resolved through the tree.
	worker := router.ResolveActive("Worker")
	assert.NoError(t, worker.Run(nil))
}
