package agent

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenttree/agenttree/core"
)

func TestParallelAgent_RunsAllChildren(t *testing.T) {
	par := NewParallelAgent("Fanout", []core.Agent{
		newStubAgent("A", emitText("from-a")),
		newStubAgent("B", emitText("from-b")),
		newStubAgent("C", emitText("from-c")),
	})

	ictx, emit := newRunContext(t, nil)
	require.NoError(t, par.Run(ictx))

	events := collectEvents(emit)
	require.Len(t, events, 3)

	authors := map[string]bool{}
	for _, ev := range events {
		authors[ev.Author] = true
	}
	assert.Len(t, authors, 3)
}

func TestParallelAgent_BranchLabels(t *testing.T) {
	par := NewParallelAgent("Fanout", []core.Agent{
		newStubAgent("Worker", emitText("hi")),
	})

	ictx, emit := newRunContext(t, nil)
	require.NoError(t, par.Run(ictx))

	events := collectEvents(emit)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].Branch)
	assert.Equal(t, "Fanout.Worker", *events[0].Branch)
}

func TestParallelAgent_PerChildOrderPreserved(t *testing.T) {
	multi := func(name string, texts ...string) *stubAgent {
		return newStubAgent(name, func(ictx *core.InvocationContext) error {
			for _, txt := range texts {
				if err := ictx.EmitEvent(core.NewMessageEvent(ictx.InvocationID, name, txt)); err != nil {
					return err
				}
			}
			return nil
		})
	}

	par := NewParallelAgent("Fanout", []core.Agent{
		multi("A", "a1", "a2", "a3"),
		multi("B", "b1", "b2", "b3"),
	})

	ictx, emit := newRunContext(t, nil)
	require.NoError(t, par.Run(ictx))

	byAuthor := map[string][]string{}
	for _, ev := range collectEvents(emit) {
		byAuthor[ev.Author] = append(byAuthor[ev.Author], ev.Text())
	}
	assert.Equal(t, []string{"a1", "a2", "a3"}, byAuthor["A"])
	assert.Equal(t, []string{"b1", "b2", "b3"}, byAuthor["B"])
}

func TestParallelAgent_IsolatesFailuresByDefault(t *testing.T) {
	boom := errors.New("boom")
	survived := false

	par := NewParallelAgent("Fanout", []core.Agent{
		newStubAgent("Failing", func(ictx *core.InvocationContext) error { return boom }),
		newStubAgent("Surviving", func(ictx *core.InvocationContext) error {
			survived = true
			return ictx.EmitEvent(core.NewMessageEvent(ictx.InvocationID, "Surviving", "ok"))
		}),
	})

	ictx, emit := newRunContext(t, nil)
	err := par.Run(ictx)

	assert.ErrorIs(t, err, boom)
	var childErr *core.ChildExecutionError
	assert.ErrorAs(t, err, &childErr)
	assert.True(t, survived, "a sibling failure must not cancel other children")
	assert.Len(t, collectEvents(emit), 1)
}

func TestParallelAgent_JoinsMultipleFailures(t *testing.T) {
	err1 := errors.New("first")
	err2 := errors.New("second")

	par := NewParallelAgent("Fanout", []core.Agent{
		newStubAgent("F1", func(ictx *core.InvocationContext) error { return err1 }),
		newStubAgent("F2", func(ictx *core.InvocationContext) error { return err2 }),
	})

	ictx, _ := newRunContext(t, nil)
	err := par.Run(ictx)

	assert.ErrorIs(t, err, err1)
	assert.ErrorIs(t, err, err2)
}

func TestParallelAgent_FailFastCancelsSiblings(t *testing.T) {
	boom := errors.New("boom")
	started := make(chan struct{})

	par := NewParallelAgent("Fanout", []core.Agent{
		newStubAgent("Failing", func(ictx *core.InvocationContext) error {
			<-started // make sure the sibling is already waiting
			return boom
		}),
		newStubAgent("Blocked", func(ictx *core.InvocationContext) error {
			close(started)
			<-ictx.Done() // only cancellation releases this child
			return ictx.Err()
		}),
	}, WithFailFast())

	ictx, _ := newRunContext(t, nil)
	err := par.Run(ictx)

	// The first failure is returned alone.
	assert.ErrorIs(t, err, boom)
}

func TestParallelAgent_Timeout(t *testing.T) {
	par := NewParallelAgent("Fanout", []core.Agent{
		newStubAgent("Slow", func(ictx *core.InvocationContext) error {
			select {
			case <-ictx.Done():
				return ictx.Err()
			case <-time.After(5 * time.Second):
				return nil
			}
		}),
	}, WithTimeout(20*time.Millisecond), WithFailFast())

	ictx, _ := newRunContext(t, nil)
	start := time.Now()
	err := par.Run(ictx)

	assert.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}
