package compaction

import (
	"context"

	"github.com/agenttree/agenttree/core"
	"github.com/agenttree/agenttree/logging"
)

// CompactionAuthor is the author recorded on synthetic summary events.
const CompactionAuthor = "compactor"

// Options tunes when and how much the compactor summarizes.
type Options struct {
	// Interval is the number of distinct invocations that must have
	// accumulated in the live window before a compaction runs.
	Interval int

	// Overlap is the number of trailing live events kept out of the covered
	// range. They remain visible verbatim after the summary, preserving
	// recent context across the boundary.
	Overlap int

	// Logger receives compaction diagnostics.
	Logger logging.Logger
}

// Compactor watches a session's live window (events after the latest summary)
// and, once Interval distinct invocations have accumulated, appends a summary
// event covering all but the Overlap newest live events. The summarizer sees
// the whole live window so the summary stays coherent with the overlap tail.
type Compactor struct {
	summarizer Summarizer
	interval   int
	overlap    int
	logger     logging.Logger
}

// New creates a Compactor. Defaults: interval 10, overlap 2.
func New(summarizer Summarizer, optFns ...func(o *Options)) *Compactor {
	opts := Options{
		Interval: 10,
		Overlap:  2,
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Interval < 1 {
		opts.Interval = 1
	}
	if opts.Overlap < 0 {
		opts.Overlap = 0
	}
	return &Compactor{
		summarizer: summarizer,
		interval:   opts.Interval,
		overlap:    opts.Overlap,
		logger:     opts.Logger,
	}
}

// Interval returns the configured invocation interval.
func (c *Compactor) Interval() int { return c.interval }

// Overlap returns the configured overlap size.
func (c *Compactor) Overlap() int { return c.overlap }

// MaybeCompact checks the session against the trigger condition and, when
// due, appends one summary event to the durable log and the scratch session.
// Reports whether a compaction happened. Failures are wrapped in
// CompactionError; callers log them without failing the invocation.
func (c *Compactor) MaybeCompact(
	ctx context.Context,
	store core.SessionStore,
	key core.SessionKey,
	sess *core.Session,
	invocationID string,
) (bool, error) {
	live := liveWindow(sess.GetEvents())
	if len(live) == 0 || distinctInvocations(live) < c.interval {
		return false, nil
	}

	covered := live
	if c.overlap > 0 {
		if c.overlap >= len(live) {
			return false, nil
		}
		covered = live[:len(live)-c.overlap]
	}

	summary, err := c.summarizer.Summarize(ctx, live)
	if err != nil {
		return false, &core.CompactionError{Err: err}
	}

	ev := core.NewEvent(invocationID, CompactionAuthor)
	ev.Content = &core.Content{
		Role:  "assistant",
		Parts: []core.Part{core.TextPart{Text: summary}},
	}
	ev.Actions.Compaction = &core.EventCompaction{
		StartTimestamp: covered[0].Timestamp,
		EndTimestamp:   covered[len(covered)-1].Timestamp,
		EndEventID:     covered[len(covered)-1].ID,
	}

	if err := store.AppendEvent(ctx, key, ev); err != nil {
		return false, &core.CompactionError{Err: err}
	}
	sess.AddEvent(ev)

	c.logger.Info(
		"compaction.applied",
		"session", key.SessionID,
		"covered", len(covered),
		"overlap", len(live)-len(covered),
		"invocations", distinctInvocations(live),
	)
	return true, nil
}

// liveWindow returns the completed content events after the latest summary
// boundary, or the whole log when no summary exists.
func liveWindow(events []core.Event) []core.Event {
	var latest *core.Event
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].IsCompaction() {
			latest = &events[i]
			break
		}
	}

	boundary := -1
	if latest != nil {
		boundary = core.CompactionBoundary(events, latest.Actions.Compaction)
	}
	live := make([]core.Event, 0, len(events))
	for i, ev := range events {
		if ev.IsCompaction() || ev.IsPartial() || ev.Content == nil {
			continue
		}
		if i <= boundary {
			continue
		}
		live = append(live, ev)
	}
	return live
}

func distinctInvocations(events []core.Event) int {
	seen := map[string]struct{}{}
	for _, ev := range events {
		if ev.InvocationID != "" {
			seen[ev.InvocationID] = struct{}{}
		}
	}
	return len(seen)
}
