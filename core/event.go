package core

import (
	"time"

	"github.com/google/uuid"
)

// EventCompaction marks an event as a synthetic summary replacing a rendered
// prefix of session history. The durable log is never truncated; rendering
// (Session.ConversationHistory) substitutes the covered range with this event.
type EventCompaction struct {
	StartTimestamp time.Time `json:"start_timestamp"`
	EndTimestamp   time.Time `json:"end_timestamp"`
	// EndEventID pins the last covered event exactly; timestamps alone are
	// ambiguous when clamping produced equal neighbors.
	EndEventID string `json:"end_event_id,omitempty"`
}

// CompactionBoundary returns the index in events of the last event covered by
// the summary envelope, or -1 when none is. The end event id resolves the
// boundary exactly; the timestamp range is the fallback for envelopes
// recorded without one.
func CompactionBoundary(events []Event, c *EventCompaction) int {
	if c == nil {
		return -1
	}
	if c.EndEventID != "" {
		for i, ev := range events {
			if ev.ID == c.EndEventID {
				return i
			}
		}
	}
	boundary := -1
	for i, ev := range events {
		if !ev.Timestamp.After(c.EndTimestamp) {
			boundary = i
		}
	}
	return boundary
}

// EventActions carries the side-effects and orchestration signals attached to
// an event. The runner interprets them on its serialized consumer after the
// event leaves the producing agent:
//
//   - StateDelta is merged into scoped session state (last writer wins)
//   - ArtifactDelta records artifact name -> version bookkeeping
//   - TransferToAgent requests a hand-off resolved through the router
//   - Escalate stops the current subtree and defers to the caller
//   - Compaction marks a synthetic summary event
//
// Optional fields are pointers so absence is distinguishable from zero.
type EventActions struct {
	StateDelta        map[string]any   `json:"state_delta,omitempty"`
	ArtifactDelta     map[string]int   `json:"artifact_delta,omitempty"`
	SkipSummarization *bool            `json:"skip_summarization,omitempty"`
	TransferToAgent   *string          `json:"transfer_to_agent,omitempty"`
	Escalate          *bool            `json:"escalate,omitempty"`
	Compaction        *EventCompaction `json:"compaction,omitempty"`
}

// Event is the unit of communication between agents, the runner and external
// callers, and the only thing the event log stores. Once persisted it is
// immutable. Timestamps within a session are non-decreasing and all events of
// one external input share an InvocationID.
type Event struct {
	ID           string       `json:"id"`
	InvocationID string       `json:"invocation_id"`
	Author       string       `json:"author"`
	Branch       *string      `json:"branch,omitempty"`
	Timestamp    time.Time    `json:"timestamp"`
	Content      *Content     `json:"content,omitempty"`
	Actions      EventActions `json:"actions"`
	Partial      *bool        `json:"partial,omitempty"`
	ErrorCode    *string      `json:"error_code,omitempty"`
	ErrorMessage *string      `json:"error_message,omitempty"`
}

// NewEvent creates a bare event authored by author within an invocation.
func NewEvent(invocationID, author string) Event {
	return Event{
		ID:           NewID(),
		InvocationID: invocationID,
		Author:       author,
		Timestamp:    time.Now().UTC(),
		Actions:      EventActions{},
	}
}

// NewMessageEvent creates an assistant text message event.
func NewMessageEvent(invocationID, author, message string) Event {
	e := NewEvent(invocationID, author)
	e.Content = &Content{Role: "assistant", Parts: []Part{TextPart{Text: message}}}
	return e
}

// NewUserMessageEvent creates a user-authored text message event.
func NewUserMessageEvent(invocationID, message string) Event {
	e := NewEvent(invocationID, "user")
	e.Content = &Content{Role: "user", Parts: []Part{TextPart{Text: message}}}
	return e
}

// NewUserContentEvent creates a user-authored event with arbitrary content.
func NewUserContentEvent(invocationID string, content *Content) Event {
	e := NewEvent(invocationID, "user")
	e.Content = content
	return e
}

// NewFunctionCallEvent records an agent requesting execution of a named tool.
func NewFunctionCallEvent(invocationID, author, functionName, args string) Event {
	e := NewEvent(invocationID, author)
	e.Content = &Content{
		Role: "assistant",
		Parts: []Part{
			FunctionCallPart{FunctionCall: FunctionCall{Name: functionName, Arguments: args}},
		},
	}
	return e
}

// NewFunctionResponseEvent records the outcome of a previously emitted
// function call. A non-nil err is copied into the response error field.
func NewFunctionResponseEvent(invocationID, author, id, functionName string, result any, err error) Event {
	e := NewEvent(invocationID, author)
	fr := FunctionResponse{ID: id, Name: functionName, Response: result}
	if err != nil {
		fr.Error = err.Error()
	}
	e.Content = &Content{Role: "tool", Parts: []Part{FunctionResponsePart{FunctionResponse: fr}}}
	return e
}

// NewEscalationEvent creates an event signalling that the current subtree
// cannot proceed and control should return to the caller (or, inside a loop,
// that the loop should exit).
func NewEscalationEvent(invocationID, author string, content *Content) Event {
	escalate := true
	e := NewEvent(invocationID, author)
	e.Actions.Escalate = &escalate
	e.Content = content
	return e
}

// NewErrorEvent creates a terminal error event for the invocation.
func NewErrorEvent(invocationID, author, code, message string) Event {
	e := NewEvent(invocationID, author)
	e.ErrorCode = &code
	e.ErrorMessage = &message
	return e
}

// NewID generates a unique identifier for events and invocations.
func NewID() string { return uuid.NewString() }

// IsPartial reports whether the event is a streaming fragment that will be
// followed by a consolidated event. Partial events are forwarded but not
// persisted.
func (e Event) IsPartial() bool { return e.Partial != nil && *e.Partial }

// IsEscalation reports whether the event carries the escalate signal.
func (e Event) IsEscalation() bool { return e.Actions.Escalate != nil && *e.Actions.Escalate }

// IsCompaction reports whether the event is a synthetic history summary.
func (e Event) IsCompaction() bool { return e.Actions.Compaction != nil }

// TransferTarget returns the requested hand-off target, if any.
func (e Event) TransferTarget() (string, bool) {
	if e.Actions.TransferToAgent == nil || *e.Actions.TransferToAgent == "" {
		return "", false
	}
	return *e.Actions.TransferToAgent, true
}

// GetFunctionCalls returns the FunctionCall parts in content order.
func (e Event) GetFunctionCalls() []FunctionCall {
	if e.Content == nil {
		return nil
	}
	var calls []FunctionCall
	for _, p := range e.Content.Parts {
		if fc, ok := p.(FunctionCallPart); ok {
			calls = append(calls, fc.FunctionCall)
		}
	}
	return calls
}

// GetFunctionResponses returns the FunctionResponse parts in content order.
func (e Event) GetFunctionResponses() []FunctionResponse {
	if e.Content == nil {
		return nil
	}
	var responses []FunctionResponse
	for _, p := range e.Content.Parts {
		if fr, ok := p.(FunctionResponsePart); ok {
			responses = append(responses, fr.FunctionResponse)
		}
	}
	return responses
}

// Text concatenates the event's text parts. Empty for control-only events.
func (e Event) Text() string {
	if e.Content == nil {
		return ""
	}
	var out string
	for _, p := range e.Content.Parts {
		if tp, ok := p.(TextPart); ok {
			out += tp.Text
		}
	}
	return out
}

// IsFinalResponse reports whether the event completes an assistant turn: no
// pending tool calls or responses and not a streaming fragment.
func (e Event) IsFinalResponse() bool {
	if e.Actions.SkipSummarization != nil && *e.Actions.SkipSummarization {
		return true
	}
	return len(e.GetFunctionCalls()) == 0 &&
		len(e.GetFunctionResponses()) == 0 &&
		!e.IsPartial()
}

// UnixSeconds returns the timestamp as fractional seconds since the epoch.
func (e Event) UnixSeconds() float64 { return float64(e.Timestamp.UnixNano()) / 1e9 }
