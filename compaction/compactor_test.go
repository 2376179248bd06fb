package compaction

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenttree/agenttree/core"
	"github.com/agenttree/agenttree/internal/testutil"
	"github.com/agenttree/agenttree/session"
)

// stubSummarizer returns a fixed summary and records what it saw.
type stubSummarizer struct {
	summary string
	err     error
	seen    []core.Event
}

func (s *stubSummarizer) Summarize(_ context.Context, events []core.Event) (string, error) {
	s.seen = events
	if s.err != nil {
		return "", s.err
	}
	return s.summary, nil
}

// seedSession creates a persisted session with one text event per invocation,
// at strictly increasing timestamps, and returns the matched scratch copy.
func seedSession(t *testing.T, store core.SessionStore, invocations int) (core.SessionKey, *core.Session) {
	t.Helper()
	key := core.SessionKey{AppName: "app", UserID: "u1", SessionID: "s1"}
	_, err := store.Create(context.Background(), key, nil)
	require.NoError(t, err)

	sess := core.NewSession(key.AppName, key.UserID, key.SessionID)
	base := time.Now().UTC()
	for i := 0; i < invocations; i++ {
		ev := testutil.NewEventBuilder().
			Invocation(fmt.Sprintf("inv-%d", i)).
			AssistantText(fmt.Sprintf("message %d", i)).
			Timestamp(base.Add(time.Duration(i) * time.Second)).
			Build()
		require.NoError(t, store.AppendEvent(context.Background(), key, ev))
		sess.AddEvent(ev)
	}
	return key, sess
}

func TestCompactor_BelowInterval_NoOp(t *testing.T) {
	store := session.NewInMemoryStore()
	key, sess := seedSession(t, store, 2)
	sum := &stubSummarizer{summary: "irrelevant"}
	c := New(sum, func(o *Options) { o.Interval = 3; o.Overlap = 1 })

	compacted, err := c.MaybeCompact(context.Background(), store, key, sess, "inv-x")
	require.NoError(t, err)
	assert.False(t, compacted)
	assert.Nil(t, sum.seen)
}

func TestCompactor_CompactsAtInterval(t *testing.T) {
	store := session.NewInMemoryStore()
	key, sess := seedSession(t, store, 3)
	sum := &stubSummarizer{summary: "the story so far"}
	c := New(sum, func(o *Options) { o.Interval = 3; o.Overlap = 1 })

	compacted, err := c.MaybeCompact(context.Background(), store, key, sess, "inv-2")
	require.NoError(t, err)
	assert.True(t, compacted)

	// The summarizer sees the whole live window, overlap included.
	assert.Len(t, sum.seen, 3)

	events := sess.GetEvents()
	require.Len(t, events, 4)
	summary := events[3]
	assert.True(t, summary.IsCompaction())
	assert.Equal(t, CompactionAuthor, summary.Author)
	assert.Equal(t, "the story so far", summary.Text())

	// Covered range excludes the overlap tail: events 0 and 1.
	require.NotNil(t, summary.Actions.Compaction)
	assert.Equal(t, events[0].Timestamp, summary.Actions.Compaction.StartTimestamp)
	assert.Equal(t, events[1].Timestamp, summary.Actions.Compaction.EndTimestamp)

	// Rendered history: summary first, then the overlap event verbatim.
	history := sess.ConversationHistory()
	require.Len(t, history, 2)
	assert.Equal(t, "the story so far", history[0].Text())
	assert.Equal(t, "message 2", history[1].Text())

	// The durable log also carries the summary.
	persisted, err := store.Get(context.Background(), key, nil)
	require.NoError(t, err)
	assert.Len(t, persisted.Events, 4)
}

func TestCompactor_SecondCycleUsesLiveWindowOnly(t *testing.T) {
	store := session.NewInMemoryStore()
	key, sess := seedSession(t, store, 3)
	sum := &stubSummarizer{summary: "first summary"}
	c := New(sum, func(o *Options) { o.Interval = 3; o.Overlap = 1 })

	compacted, err := c.MaybeCompact(context.Background(), store, key, sess, "inv-2")
	require.NoError(t, err)
	require.True(t, compacted)

	// Immediately after a compaction only the overlap remains live; another
	// pass must be a no-op.
	compacted, err = c.MaybeCompact(context.Background(), store, key, sess, "inv-2")
	require.NoError(t, err)
	assert.False(t, compacted)

	// Accumulate two more invocations; with the overlap event that makes
	// three distinct invocations live again.
	base := time.Now().UTC().Add(time.Minute)
	for i := 3; i < 5; i++ {
		ev := testutil.NewEventBuilder().
			Invocation(fmt.Sprintf("inv-%d", i)).
			AssistantText(fmt.Sprintf("message %d", i)).
			Timestamp(base.Add(time.Duration(i) * time.Second)).
			Build()
		require.NoError(t, store.AppendEvent(context.Background(), key, ev))
		sess.AddEvent(ev)
	}

	sum.summary = "second summary"
	compacted, err = c.MaybeCompact(context.Background(), store, key, sess, "inv-4")
	require.NoError(t, err)
	assert.True(t, compacted)

	// Only the live window was summarized, not the already-covered prefix.
	require.Len(t, sum.seen, 3)
	assert.Equal(t, "message 2", sum.seen[0].Text())

	history := sess.ConversationHistory()
	require.NotEmpty(t, history)
	assert.Equal(t, "second summary", history[0].Text())
}

func TestCompactor_EqualTimestamps_BoundaryByEventID(t *testing.T) {
	store := session.NewInMemoryStore()
	key := core.SessionKey{AppName: "app", UserID: "u1", SessionID: "s1"}
	_, err := store.Create(context.Background(), key, nil)
	require.NoError(t, err)

	// All three events share one timestamp, as after clock clamping.
	sess := core.NewSession(key.AppName, key.UserID, key.SessionID)
	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		ev := testutil.NewEventBuilder().
			Invocation(fmt.Sprintf("inv-%d", i)).
			AssistantText(fmt.Sprintf("message %d", i)).
			Timestamp(base).
			Build()
		require.NoError(t, store.AppendEvent(context.Background(), key, ev))
		sess.AddEvent(ev)
	}

	sum := &stubSummarizer{summary: "condensed"}
	c := New(sum, func(o *Options) { o.Interval = 3; o.Overlap = 1 })

	compacted, err := c.MaybeCompact(context.Background(), store, key, sess, "inv-2")
	require.NoError(t, err)
	require.True(t, compacted)

	events := sess.GetEvents()
	require.Len(t, events, 4)
	summary := events[3]
	require.NotNil(t, summary.Actions.Compaction)
	assert.Equal(t, events[1].ID, summary.Actions.Compaction.EndEventID)

	// The overlap event has the same timestamp as the covered range, yet
	// stays live because the boundary is pinned to an exact event.
	history := sess.ConversationHistory()
	require.Len(t, history, 2)
	assert.Equal(t, "condensed", history[0].Text())
	assert.Equal(t, "message 2", history[1].Text())
}

func TestCompactor_OverlapSwallowsWindow_NoOp(t *testing.T) {
	store := session.NewInMemoryStore()
	key, sess := seedSession(t, store, 2)
	c := New(&stubSummarizer{summary: "x"}, func(o *Options) { o.Interval = 2; o.Overlap = 5 })

	compacted, err := c.MaybeCompact(context.Background(), store, key, sess, "inv-1")
	require.NoError(t, err)
	assert.False(t, compacted)
}

func TestCompactor_SummarizerFailure(t *testing.T) {
	store := session.NewInMemoryStore()
	key, sess := seedSession(t, store, 3)
	c := New(&stubSummarizer{err: errors.New("model down")}, func(o *Options) {
		o.Interval = 3
		o.Overlap = 1
	})

	compacted, err := c.MaybeCompact(context.Background(), store, key, sess, "inv-2")
	assert.False(t, compacted)

	var cerr *core.CompactionError
	require.ErrorAs(t, err, &cerr)

	// Nothing was appended.
	assert.Len(t, sess.GetEvents(), 3)
}

func TestCompactor_Defaults(t *testing.T) {
	c := New(&stubSummarizer{})
	assert.Equal(t, 10, c.Interval())
	assert.Equal(t, 2, c.Overlap())

	clamped := New(&stubSummarizer{}, func(o *Options) { o.Interval = 0; o.Overlap = -3 })
	assert.Equal(t, 1, clamped.Interval())
	assert.Equal(t, 0, clamped.Overlap())
}
