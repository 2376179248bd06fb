package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eventAt(ts time.Time, author, text string) Event {
	ev := NewMessageEvent("inv-1", author, text)
	ev.Timestamp = ts
	return ev
}

func TestSession_ApplyStateDelta_LastWriterWins(t *testing.T) {
	sess := NewSession("app", "user-1", "sess-1")

	sess.ApplyStateDelta(map[string]any{"k": "first", "other": 1})
	sess.ApplyStateDelta(map[string]any{"k": "second"})

	v, ok := sess.GetState("k")
	require.True(t, ok)
	assert.Equal(t, "second", v)

	v, ok = sess.GetState("other")
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestSession_ClearTempState(t *testing.T) {
	sess := NewSession("app", "user-1", "sess-1")
	sess.ApplyStateDelta(map[string]any{
		"temp:scratch": 42,
		"keep":         "yes",
		"app:theme":    "dark",
	})

	sess.ClearTempState()

	_, ok := sess.GetState("temp:scratch")
	assert.False(t, ok)
	_, ok = sess.GetState("keep")
	assert.True(t, ok)
	_, ok = sess.GetState("app:theme")
	assert.True(t, ok)
}

func TestSession_AddEvent_ClampsTimestamps(t *testing.T) {
	sess := NewSession("app", "user-1", "sess-1")
	base := time.Now().UTC()

	sess.AddEvent(eventAt(base, "a", "one"))
	sess.AddEvent(eventAt(base.Add(-time.Second), "b", "two")) // raced producer

	events := sess.GetEvents()
	require.Len(t, events, 2)
	assert.False(t, events[1].Timestamp.Before(events[0].Timestamp))
}

func TestSession_StateSnapshot_IsACopy(t *testing.T) {
	sess := NewSession("app", "user-1", "sess-1")
	sess.ApplyStateDelta(map[string]any{"k": "v"})

	snap := sess.StateSnapshot()
	snap["k"] = "mutated"

	v, _ := sess.GetState("k")
	assert.Equal(t, "v", v)
}

func TestSession_ConversationHistory_NoCompaction(t *testing.T) {
	sess := NewSession("app", "user-1", "sess-1")
	base := time.Now().UTC()

	sess.AddEvent(eventAt(base, "user", "hi"))

	partial := eventAt(base.Add(time.Second), "agent", "chunk")
	p := true
	partial.Partial = &p
	sess.AddEvent(partial)

	control := NewEvent("inv-1", "agent") // no content
	control.Timestamp = base.Add(2 * time.Second)
	sess.AddEvent(control)

	sess.AddEvent(eventAt(base.Add(3*time.Second), "agent", "hello"))

	history := sess.ConversationHistory()
	require.Len(t, history, 2)
	assert.Equal(t, "hi", history[0].Text())
	assert.Equal(t, "hello", history[1].Text())
}

func TestSession_ConversationHistory_ShadowsCompactedPrefix(t *testing.T) {
	sess := NewSession("app", "user-1", "sess-1")
	base := time.Now().UTC()

	sess.AddEvent(eventAt(base, "user", "one"))
	sess.AddEvent(eventAt(base.Add(time.Second), "agent", "two"))
	sess.AddEvent(eventAt(base.Add(2*time.Second), "user", "three"))

	summary := NewMessageEvent("inv-2", "compactor", "summary of one and two")
	summary.Timestamp = base.Add(3 * time.Second)
	summary.Actions.Compaction = &EventCompaction{
		StartTimestamp: base,
		EndTimestamp:   base.Add(time.Second),
	}
	sess.AddEvent(summary)

	sess.AddEvent(eventAt(base.Add(4*time.Second), "agent", "four"))

	history := sess.ConversationHistory()
	require.Len(t, history, 3)
	assert.Equal(t, "summary of one and two", history[0].Text())
	assert.Equal(t, "three", history[1].Text())
	assert.Equal(t, "four", history[2].Text())

	// The raw log keeps everything.
	assert.Len(t, sess.GetEvents(), 5)
}

func TestSession_ConversationHistory_EqualTimestampBoundary(t *testing.T) {
	sess := NewSession("app", "user-1", "sess-1")
	base := time.Now().UTC()

	// Clamping can leave neighbors with identical timestamps; the end event
	// id keeps the overlap tail out of the covered range.
	covered := eventAt(base, "user", "covered")
	overlap := eventAt(base, "agent", "overlap")
	sess.AddEvent(covered)
	sess.AddEvent(overlap)

	summary := NewMessageEvent("inv-2", "compactor", "summary")
	summary.Timestamp = base.Add(time.Second)
	summary.Actions.Compaction = &EventCompaction{
		StartTimestamp: base,
		EndTimestamp:   base,
		EndEventID:     covered.ID,
	}
	sess.AddEvent(summary)

	history := sess.ConversationHistory()
	require.Len(t, history, 2)
	assert.Equal(t, "summary", history[0].Text())
	assert.Equal(t, "overlap", history[1].Text())
}

func TestSession_ConversationHistory_UsesLatestSummary(t *testing.T) {
	sess := NewSession("app", "user-1", "sess-1")
	base := time.Now().UTC()

	sess.AddEvent(eventAt(base, "user", "one"))

	first := NewMessageEvent("inv-1", "compactor", "first summary")
	first.Timestamp = base.Add(time.Second)
	first.Actions.Compaction = &EventCompaction{StartTimestamp: base, EndTimestamp: base}
	sess.AddEvent(first)

	sess.AddEvent(eventAt(base.Add(2*time.Second), "agent", "two"))

	second := NewMessageEvent("inv-2", "compactor", "second summary")
	second.Timestamp = base.Add(3 * time.Second)
	second.Actions.Compaction = &EventCompaction{
		StartTimestamp: base,
		EndTimestamp:   base.Add(2 * time.Second),
	}
	sess.AddEvent(second)

	history := sess.ConversationHistory()
	require.NotEmpty(t, history)
	assert.Equal(t, "second summary", history[0].Text())
	for _, ev := range history[1:] {
		assert.NotEqual(t, "first summary", ev.Text())
		assert.NotEqual(t, "one", ev.Text())
		assert.NotEqual(t, "two", ev.Text())
	}
}

func TestSession_Clone_Independent(t *testing.T) {
	sess := NewSession("app", "user-1", "sess-1")
	sess.ApplyStateDelta(map[string]any{"k": "v"})
	sess.AddEvent(NewMessageEvent("inv-1", "agent", "hello"))

	clone := sess.Clone()
	clone.ApplyStateDelta(map[string]any{"k": "changed"})
	clone.AddEvent(NewMessageEvent("inv-1", "agent", "extra"))

	v, _ := sess.GetState("k")
	assert.Equal(t, "v", v)
	assert.Len(t, sess.GetEvents(), 1)
	assert.Len(t, clone.GetEvents(), 2)
}
