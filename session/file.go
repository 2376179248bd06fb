package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"

	"github.com/agenttree/agenttree/core"
)

// FileStore is a SessionStore persisting sessions as JSON documents through
// the afs abstraction, so the base URL can be a local directory, mem:// in
// tests, or any scheme afs supports. Layout:
//
//	<base>/<app>/appstate.json
//	<base>/<app>/<user>/userstate.json
//	<base>/<app>/<user>/sessions/<session>.json
//
// The per-session critical section is a striped in-process mutex; the store
// assumes a single writer process per base URL.
type FileStore struct {
	baseURL string
	fs      afs.Service

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewFileStore creates a file-backed session store rooted at baseURL.
func NewFileStore(baseURL string) *FileStore {
	return &FileStore{
		baseURL: baseURL,
		fs:      afs.New(),
		locks:   map[string]*sync.Mutex{},
	}
}

// persistedSession is the on-disk session document. State carries only
// session-scope keys; app/user shards live in their own documents.
type persistedSession struct {
	ID             string         `json:"id"`
	AppName        string         `json:"app_name"`
	UserID         string         `json:"user_id"`
	State          map[string]any `json:"state"`
	Events         []core.Event   `json:"events"`
	LastUpdateTime time.Time      `json:"last_update_time"`
}

func (s *FileStore) sessionURL(key core.SessionKey) string {
	return url.Join(s.baseURL, key.AppName, key.UserID, "sessions", key.SessionID+".json")
}

func (s *FileStore) appStateURL(appName string) string {
	return url.Join(s.baseURL, appName, "appstate.json")
}

func (s *FileStore) userStateURL(appName, userID string) string {
	return url.Join(s.baseURL, appName, userID, "userstate.json")
}

// lockFor returns the striped per-session mutex for key.
func (s *FileStore) lockFor(key core.SessionKey) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := storeKey(key)
	if s.locks[k] == nil {
		s.locks[k] = &sync.Mutex{}
	}
	return s.locks[k]
}

func (s *FileStore) readJSON(ctx context.Context, URL string, out any) (bool, error) {
	ok, err := s.fs.Exists(ctx, URL)
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", URL, err)
	}
	if !ok {
		return false, nil
	}
	data, err := s.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", URL, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", URL, err)
	}
	return true, nil
}

func (s *FileStore) writeJSON(ctx context.Context, URL string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", URL, err)
	}
	if err := s.fs.Upload(ctx, URL, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write %s: %w", URL, err)
	}
	return nil
}

func (s *FileStore) readScope(ctx context.Context, URL string) (map[string]any, error) {
	state := map[string]any{}
	if _, err := s.readJSON(ctx, URL, &state); err != nil {
		return nil, err
	}
	return state, nil
}

func (s *FileStore) mergeScope(ctx context.Context, URL string, delta map[string]any) error {
	if len(delta) == 0 {
		return nil
	}
	state, err := s.readScope(ctx, URL)
	if err != nil {
		return err
	}
	maps.Copy(state, delta)
	return s.writeJSON(ctx, URL, state)
}

// Create allocates a session document, routing initial state into scopes.
func (s *FileStore) Create(ctx context.Context, key core.SessionKey, initialState map[string]any) (*core.Session, error) {
	if key.AppName == "" {
		return nil, core.NewValidationError("app_name", "must not be empty")
	}
	if key.SessionID == "" {
		key.SessionID = uuid.NewString()
	}

	lock := s.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	appDelta, userDelta, sessionState := core.SplitStateDelta(initialState)
	if err := s.mergeScope(ctx, s.appStateURL(key.AppName), appDelta); err != nil {
		return nil, err
	}
	if err := s.mergeScope(ctx, s.userStateURL(key.AppName, key.UserID), userDelta); err != nil {
		return nil, err
	}

	doc := persistedSession{
		ID:             key.SessionID,
		AppName:        key.AppName,
		UserID:         key.UserID,
		State:          sessionState,
		Events:         []core.Event{},
		LastUpdateTime: time.Now().UTC(),
	}
	if err := s.writeJSON(ctx, s.sessionURL(key), doc); err != nil {
		return nil, err
	}
	return s.assemble(ctx, key, doc, nil)
}

// Get loads the session document plus app/user shards into a merged view.
func (s *FileStore) Get(ctx context.Context, key core.SessionKey, opts *core.GetOptions) (*core.Session, error) {
	var doc persistedSession
	ok, err := s.readJSON(ctx, s.sessionURL(key), &doc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	return s.assemble(ctx, key, doc, opts)
}

func (s *FileStore) assemble(ctx context.Context, key core.SessionKey, doc persistedSession, opts *core.GetOptions) (*core.Session, error) {
	appState, err := s.readScope(ctx, s.appStateURL(key.AppName))
	if err != nil {
		return nil, err
	}
	userState, err := s.readScope(ctx, s.userStateURL(key.AppName, key.UserID))
	if err != nil {
		return nil, err
	}
	sess := core.NewSession(doc.AppName, doc.UserID, doc.ID)
	sess.State = core.MergeScopes(appState, userState, doc.State)
	sess.Events = windowEvents(doc.Events, opts)
	sess.LastUpdateTime = doc.LastUpdateTime
	return sess, nil
}

// List enumerates session documents for an app, optionally one user.
func (s *FileStore) List(ctx context.Context, appName, userID string) ([]*core.Session, error) {
	var keys []core.SessionKey
	userDirs := []string{userID}
	if userID == "" {
		objects, err := s.fs.List(ctx, url.Join(s.baseURL, appName))
		if err != nil {
			return nil, nil // app directory absent
		}
		userDirs = userDirs[:0]
		for _, obj := range objects {
			if obj.IsDir() && obj.Name() != appName {
				userDirs = append(userDirs, obj.Name())
			}
		}
	}
	for _, user := range userDirs {
		objects, err := s.fs.List(ctx, url.Join(s.baseURL, appName, user, "sessions"))
		if err != nil {
			continue
		}
		for _, obj := range objects {
			if obj.IsDir() || !strings.HasSuffix(obj.Name(), ".json") {
				continue
			}
			keys = append(keys, core.SessionKey{
				AppName:   appName,
				UserID:    user,
				SessionID: strings.TrimSuffix(obj.Name(), ".json"),
			})
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].SessionID < keys[j].SessionID })

	sessions := make([]*core.Session, 0, len(keys))
	for _, k := range keys {
		sess, err := s.Get(ctx, k, nil)
		if err != nil {
			continue
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

// Delete removes the session document. Shared scope documents are retained.
func (s *FileStore) Delete(ctx context.Context, key core.SessionKey) error {
	URL := s.sessionURL(key)
	ok, err := s.fs.Exists(ctx, URL)
	if err != nil {
		return err
	}
	if !ok {
		return core.ErrSessionNotFound
	}
	return s.fs.Delete(ctx, URL)
}

// AppendEvent rewrites the session document with the event appended and its
// state delta folded into the scope documents, under the per-session lock.
func (s *FileStore) AppendEvent(ctx context.Context, key core.SessionKey, ev core.Event) error {
	lock := s.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	var doc persistedSession
	ok, err := s.readJSON(ctx, s.sessionURL(key), &doc)
	if err != nil {
		return err
	}
	if !ok {
		return core.ErrSessionNotFound
	}

	appDelta, userDelta, sessionDelta := core.SplitStateDelta(ev.Actions.StateDelta)
	if err := s.mergeScope(ctx, s.appStateURL(key.AppName), appDelta); err != nil {
		return err
	}
	if err := s.mergeScope(ctx, s.userStateURL(key.AppName, key.UserID), userDelta); err != nil {
		return err
	}
	if doc.State == nil {
		doc.State = map[string]any{}
	}
	maps.Copy(doc.State, sessionDelta)

	if ev.ID == "" {
		ev.ID = core.NewID()
	}
	if n := len(doc.Events); n > 0 && ev.Timestamp.Before(doc.Events[n-1].Timestamp) {
		ev.Timestamp = doc.Events[n-1].Timestamp
	}
	doc.Events = append(doc.Events, ev)
	doc.LastUpdateTime = time.Now().UTC()

	return s.writeJSON(ctx, s.sessionURL(key), doc)
}
