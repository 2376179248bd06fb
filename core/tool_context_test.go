package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolContext_SetStateVisibleImmediately(t *testing.T) {
	ictx := newTestContext(make(chan Event, 1))
	tc := NewToolContext(ictx, "call-1")

	tc.SetState("k", "v")

	v, ok := tc.GetState("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
	assert.Equal(t, "v", ictx.StateDelta["k"])
}

func TestToolContext_ApplyActions(t *testing.T) {
	ictx := newTestContext(make(chan Event, 1))
	tc := NewToolContext(ictx, "call-1")

	tc.SetState("k", "v")
	tc.TransferToAgent("Billing")
	tc.Escalate()
	tc.SkipSummarization()

	ev := NewFunctionResponseEvent("inv-1", "agent", "call-1", "fn", "ok", nil)
	tc.ApplyActions(&ev)

	assert.Equal(t, "v", ev.Actions.StateDelta["k"])
	require.NotNil(t, ev.Actions.TransferToAgent)
	assert.Equal(t, "Billing", *ev.Actions.TransferToAgent)
	assert.True(t, ev.IsEscalation())
	require.NotNil(t, ev.Actions.SkipSummarization)
	assert.True(t, *ev.Actions.SkipSummarization)
}

func TestToolContext_ApplyActions_NoActions(t *testing.T) {
	ictx := newTestContext(make(chan Event, 1))
	tc := NewToolContext(ictx, "call-1")

	ev := NewFunctionResponseEvent("inv-1", "agent", "call-1", "fn", "ok", nil)
	tc.ApplyActions(&ev)

	assert.Nil(t, ev.Actions.StateDelta)
	assert.Nil(t, ev.Actions.TransferToAgent)
	assert.Nil(t, ev.Actions.Escalate)
}

func TestToolContext_Identity(t *testing.T) {
	ictx := newTestContext(make(chan Event, 1))
	tc := NewToolContext(ictx, "call-1")

	assert.Equal(t, "sess-1", tc.SessionID())
	assert.Equal(t, "inv-1", tc.InvocationID())
	assert.Equal(t, "call-1", tc.FunctionCallID())
	assert.Equal(t, "agent", tc.AgentName())
}
