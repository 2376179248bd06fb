// Package artifact provides ArtifactStore implementations. The orchestrator
// only bookkeeps artifact versions through event artifact_delta entries;
// tools use the store for the actual bytes.
package artifact

import (
	"sort"
	"sync"

	"github.com/agenttree/agenttree/core"
)

// InMemoryStore is a volatile, versioned ArtifactStore. Every Save appends a
// new version; Load returns the latest.
type InMemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string][][]byte // sessionID -> artifactID -> versions
}

// NewInMemoryStore constructs an empty in-memory artifact store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{data: map[string]map[string][][]byte{}}
}

// Save appends a new version of the artifact.
func (s *InMemoryStore) Save(sessionID, artifactID string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data[sessionID] == nil {
		s.data[sessionID] = map[string][][]byte{}
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.data[sessionID][artifactID] = append(s.data[sessionID][artifactID], cp)
	return nil
}

// Load returns the latest version of the artifact.
func (s *InMemoryStore) Load(sessionID, artifactID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions, ok := s.data[sessionID][artifactID]
	if !ok || len(versions) == 0 {
		return nil, core.NewValidationError("artifact_id", "not found: "+artifactID)
	}
	latest := versions[len(versions)-1]
	cp := make([]byte, len(latest))
	copy(cp, latest)
	return cp, nil
}

// Version returns the number of saved versions for an artifact (0 if absent).
func (s *InMemoryStore) Version(sessionID, artifactID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data[sessionID][artifactID])
}

// List returns the sorted artifact ids stored for the session.
func (s *InMemoryStore) List(sessionID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.data[sessionID]))
	for id := range s.data[sessionID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes all versions of an artifact.
func (s *InMemoryStore) Delete(sessionID, artifactID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[sessionID][artifactID]; !ok {
		return core.NewValidationError("artifact_id", "not found: "+artifactID)
	}
	delete(s.data[sessionID], artifactID)
	return nil
}
