// Package session provides SessionStore implementations: a process-local
// in-memory store and a file-backed store persisting the same layout through
// the afs abstraction.
package session

import (
	"context"
	"maps"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/agenttree/agenttree/core"
)

// record is one session's durable data. Session-scope state and the event
// log live here; app: and user: shards live on the store so they are shared
// across sessions. The embedded mutex is the per-session critical section:
// appends to different sessions never contend.
type record struct {
	mu   sync.Mutex
	sess *core.Session // State holds session-scope keys only
}

// InMemoryStore is a volatile SessionStore storing sessions in process-local
// maps. Safe for concurrent access; suited to tests and ephemeral servers.
// Returned sessions are detached copies carrying the merged three-tier state
// view.
type InMemoryStore struct {
	mu        sync.RWMutex
	sessions  map[string]*record
	appState  map[string]map[string]any            // appName -> state
	userState map[string]map[string]map[string]any // appName -> userID -> state
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions:  map[string]*record{},
		appState:  map[string]map[string]any{},
		userState: map[string]map[string]map[string]any{},
	}
}

func storeKey(key core.SessionKey) string {
	return key.AppName + "\x00" + key.UserID + "\x00" + key.SessionID
}

// Create allocates a session, routing any provided initial state into its
// scopes (temp: entries are discarded). An empty SessionID is generated.
func (s *InMemoryStore) Create(_ context.Context, key core.SessionKey, initialState map[string]any) (*core.Session, error) {
	if key.AppName == "" {
		return nil, core.NewValidationError("app_name", "must not be empty")
	}
	if key.SessionID == "" {
		key.SessionID = uuid.NewString()
	}

	appDelta, userDelta, sessionState := core.SplitStateDelta(initialState)

	s.mu.Lock()
	maps.Copy(s.appScopeLocked(key.AppName), appDelta)
	maps.Copy(s.userScopeLocked(key.AppName, key.UserID), userDelta)

	sess := core.NewSession(key.AppName, key.UserID, key.SessionID)
	sess.State = sessionState
	s.sessions[storeKey(key)] = &record{sess: sess}
	s.mu.Unlock()

	return s.Get(context.Background(), key, nil)
}

// Get returns a detached copy of the session with the merged app/user/session
// state view and the requested event window, or ErrSessionNotFound.
func (s *InMemoryStore) Get(_ context.Context, key core.SessionKey, opts *core.GetOptions) (*core.Session, error) {
	s.mu.RLock()
	rec, ok := s.sessions[storeKey(key)]
	if !ok {
		s.mu.RUnlock()
		return nil, core.ErrSessionNotFound
	}
	appCopy := cloneState(s.appState[key.AppName])
	var userCopy map[string]any
	if users, ok := s.userState[key.AppName]; ok {
		userCopy = cloneState(users[key.UserID])
	}
	s.mu.RUnlock()

	rec.mu.Lock()
	view := rec.sess.Clone()
	rec.mu.Unlock()

	view.State = core.MergeScopes(appCopy, userCopy, view.State)
	view.Events = windowEvents(view.Events, opts)
	return view, nil
}

// List returns detached copies of all sessions for an app, optionally
// filtered by user, ordered by session id for determinism.
func (s *InMemoryStore) List(ctx context.Context, appName, userID string) ([]*core.Session, error) {
	s.mu.RLock()
	var keys []core.SessionKey
	for _, rec := range s.sessions {
		rec.mu.Lock()
		k := rec.sess.Key()
		rec.mu.Unlock()
		if k.AppName != appName {
			continue
		}
		if userID != "" && k.UserID != userID {
			continue
		}
		keys = append(keys, k)
	}
	s.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool { return keys[i].SessionID < keys[j].SessionID })

	sessions := make([]*core.Session, 0, len(keys))
	for _, k := range keys {
		sess, err := s.Get(ctx, k, nil)
		if err != nil {
			continue // deleted concurrently
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

// Delete removes a session and its log. Shared app:/user: state is retained.
func (s *InMemoryStore) Delete(_ context.Context, key core.SessionKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[storeKey(key)]; !ok {
		return core.ErrSessionNotFound
	}
	delete(s.sessions, storeKey(key))
	return nil
}

// AppendEvent is the per-session critical section: it splits the event's
// state delta by scope prefix, merges each piece into the matching scope map
// (discarding temp: entries), and appends the event to the log, atomically
// with respect to other appends on the same session.
func (s *InMemoryStore) AppendEvent(_ context.Context, key core.SessionKey, ev core.Event) error {
	s.mu.RLock()
	rec, ok := s.sessions[storeKey(key)]
	s.mu.RUnlock()
	if !ok {
		return core.ErrSessionNotFound
	}

	appDelta, userDelta, sessionDelta := core.SplitStateDelta(ev.Actions.StateDelta)

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if len(appDelta) > 0 || len(userDelta) > 0 {
		s.mu.Lock()
		maps.Copy(s.appScopeLocked(key.AppName), appDelta)
		maps.Copy(s.userScopeLocked(key.AppName, key.UserID), userDelta)
		s.mu.Unlock()
	}
	if len(sessionDelta) > 0 {
		rec.sess.ApplyStateDelta(sessionDelta)
	}
	if ev.ID == "" {
		ev.ID = core.NewID()
	}
	rec.sess.AddEvent(ev)
	return nil
}

func (s *InMemoryStore) appScopeLocked(appName string) map[string]any {
	if s.appState[appName] == nil {
		s.appState[appName] = map[string]any{}
	}
	return s.appState[appName]
}

func (s *InMemoryStore) userScopeLocked(appName, userID string) map[string]any {
	if s.userState[appName] == nil {
		s.userState[appName] = map[string]map[string]any{}
	}
	if s.userState[appName][userID] == nil {
		s.userState[appName][userID] = map[string]any{}
	}
	return s.userState[appName][userID]
}

func cloneState(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	maps.Copy(out, m)
	return out
}

// windowEvents applies GetOptions to an event slice already in log order.
func windowEvents(events []core.Event, opts *core.GetOptions) []core.Event {
	if opts == nil {
		return events
	}
	if opts.After != nil {
		idx := sort.Search(len(events), func(i int) bool {
			return events[i].Timestamp.After(*opts.After)
		})
		events = events[idx:]
	}
	if opts.NumRecentEvents > 0 && len(events) > opts.NumRecentEvents {
		events = events[len(events)-opts.NumRecentEvents:]
	}
	return events
}
