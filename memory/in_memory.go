// Package memory provides a MemoryStore keeping conversational snippets in
// process memory with naive keyword search. Sufficient for tests and demos;
// production deployments plug an embedding-backed implementation.
package memory

import (
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/agenttree/agenttree/core"
)

type entry struct {
	id       string
	content  string
	metadata map[string]any
}

// InMemoryStore is a volatile MemoryStore with substring keyword scoring.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]entry // sessionID -> entries
}

// NewInMemoryStore constructs an empty in-memory memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: map[string][]entry{}}
}

// Store appends a memory snippet for the session.
func (s *InMemoryStore) Store(sessionID, content string, metadata map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[sessionID] = append(s.entries[sessionID], entry{
		id:       uuid.NewString(),
		content:  content,
		metadata: metadata,
	})
	return nil
}

// Search scores stored snippets by the fraction of query terms they contain.
func (s *InMemoryStore) Search(sessionID, query string, limit int) ([]core.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	terms := strings.Fields(strings.ToLower(query))
	var results []core.SearchResult
	for _, e := range s.entries[sessionID] {
		lower := strings.ToLower(e.content)
		matched := 0
		for _, t := range terms {
			if strings.Contains(lower, t) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		results = append(results, core.SearchResult{
			ID:       e.id,
			Content:  e.content,
			Score:    float64(matched) / float64(len(terms)),
			Metadata: e.metadata,
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Delete removes one snippet by id.
func (s *InMemoryStore) Delete(sessionID, memoryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.entries[sessionID]
	for i, e := range entries {
		if e.id == memoryID {
			s.entries[sessionID] = append(entries[:i], entries[i+1:]...)
			return nil
		}
	}
	return core.NewValidationError("memory_id", "not found: "+memoryID)
}
