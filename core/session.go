package core

import (
	"context"
	"sync"
	"time"
)

// Session is the read model folded from a per-session event log: an ordered
// event history plus the merged three-tier state view (app: + user: + session
// keys, overlaid in that precedence order). Instances handed out by stores are
// detached copies; the copy held by a running invocation acts as the scratch
// view the serialized consumer updates so concurrently running producers
// observe state as it lands.
//
// Contract:
//   - Events are totally ordered with non-decreasing timestamps
//   - ApplyStateDelta is last-writer-wins per key
//   - temp: keys live only in scratch copies, never in a store
//   - ConversationHistory shadows compacted prefixes; Events never does
type Session struct {
	ID             string         `json:"id"`
	AppName        string         `json:"app_name"`
	UserID         string         `json:"user_id"`
	State          map[string]any `json:"state"`
	Events         []Event        `json:"events"`
	LastUpdateTime time.Time      `json:"last_update_time"`

	mu sync.RWMutex
}

// NewSession creates an empty session for the given identity.
func NewSession(appName, userID, id string) *Session {
	return &Session{
		ID:             id,
		AppName:        appName,
		UserID:         userID,
		State:          map[string]any{},
		Events:         []Event{},
		LastUpdateTime: time.Now().UTC(),
	}
}

// Key returns the store identity of this session.
func (s *Session) Key() SessionKey {
	return SessionKey{AppName: s.AppName, UserID: s.UserID, SessionID: s.ID}
}

// GetState returns the value and presence flag for a state key in the merged
// view. Scoped keys are addressed with their prefix ("app:x", "user:y").
func (s *Session) GetState(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.State[key]
	return v, ok
}

// ApplyStateDelta merges a delta into the view, last writer wins. Scratch
// copies keep temp: keys so producers running in the same invocation can read
// them; stores strip them before persisting.
func (s *Session) ApplyStateDelta(delta map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range delta {
		s.State[k] = v
	}
	s.LastUpdateTime = time.Now().UTC()
}

// StateSnapshot returns a copy of the merged state view, safe to read while
// the session keeps receiving deltas.
func (s *Session) StateSnapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := make(map[string]any, len(s.State))
	for k, v := range s.State {
		snapshot[k] = v
	}
	return snapshot
}

// ClearTempState removes all temp: keys. Called at invocation boundaries to
// uphold the ephemeral-scope invariant.
func (s *Session) ClearTempState() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.State {
		if IsTempKey(k) {
			delete(s.State, k)
		}
	}
}

// AddEvent appends an event to the history. Timestamps are clamped so the
// per-session total order stays non-decreasing even when producers raced.
func (s *Session) AddEvent(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.Events); n > 0 && ev.Timestamp.Before(s.Events[n-1].Timestamp) {
		ev.Timestamp = s.Events[n-1].Timestamp
	}
	s.Events = append(s.Events, ev)
	s.LastUpdateTime = time.Now().UTC()
}

// GetEvents returns a defensive copy of the full raw event log, compaction
// events included. The durable history is never shadowed here.
func (s *Session) GetEvents() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := make([]Event, len(s.Events))
	copy(events, s.Events)
	return events
}

// LastEvent returns the final event of the log, if any.
func (s *Session) LastEvent() (Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.Events) == 0 {
		return Event{}, false
	}
	return s.Events[len(s.Events)-1], true
}

// ConversationHistory returns the rendered history used for model context:
// when a compaction summary exists, the covered prefix is replaced by the
// latest summary event and only events after its end timestamp follow it.
// Partial streaming fragments and error-only events are excluded.
func (s *Session) ConversationHistory() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *Event
	for i := len(s.Events) - 1; i >= 0; i-- {
		if s.Events[i].IsCompaction() {
			latest = &s.Events[i]
			break
		}
	}

	res := make([]Event, 0, len(s.Events))
	boundary := -1
	if latest != nil {
		res = append(res, *latest)
		boundary = CompactionBoundary(s.Events, latest.Actions.Compaction)
	}
	for i, ev := range s.Events {
		if ev.IsCompaction() || ev.IsPartial() || ev.Content == nil {
			continue
		}
		if i <= boundary {
			continue
		}
		res = append(res, ev)
	}
	return res
}

// Clone returns a deep copy safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{
		ID:             s.ID,
		AppName:        s.AppName,
		UserID:         s.UserID,
		State:          make(map[string]any, len(s.State)),
		Events:         make([]Event, len(s.Events)),
		LastUpdateTime: s.LastUpdateTime,
	}
	for k, v := range s.State {
		clone.State[k] = v
	}
	copy(clone.Events, s.Events)
	return clone
}

// SessionKey identifies a session within a store. Sessions are scoped by
// application and user so app: and user: state shards resolve unambiguously.
type SessionKey struct {
	AppName   string
	UserID    string
	SessionID string
}

// GetOptions narrows the event window returned by SessionStore.Get. The
// merged state view is always complete.
type GetOptions struct {
	// NumRecentEvents caps the window to the N most recent events (0 = all).
	NumRecentEvents int
	// After restricts the window to events strictly after the timestamp.
	After *time.Time
}

// SessionStore persists sessions: an append-only per-session event log plus
// the derived scoped state. AppendEvent is atomic per session (the store's
// single critical section for that session id); unrelated sessions proceed
// fully in parallel.
type SessionStore interface {
	Create(ctx context.Context, key SessionKey, initialState map[string]any) (*Session, error)
	Get(ctx context.Context, key SessionKey, opts *GetOptions) (*Session, error)
	List(ctx context.Context, appName, userID string) ([]*Session, error)
	Delete(ctx context.Context, key SessionKey) error
	AppendEvent(ctx context.Context, key SessionKey, ev Event) error
}
