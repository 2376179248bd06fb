package core

// ArtifactStore persists binary artifacts scoped by session. The orchestrator
// never writes artifacts itself; events reference them through artifact_delta
// bookkeeping and tools use this interface for the actual bytes.
type ArtifactStore interface {
	Save(sessionID, artifactID string, data []byte) error
	Load(sessionID, artifactID string) ([]byte, error)
	List(sessionID string) ([]string, error)
	Delete(sessionID, artifactID string) error
}

// SearchResult is a retrieved memory item with relevance score and metadata.
type SearchResult struct {
	ID       string
	Content  string
	Score    float64
	Metadata map[string]any
}

// MemoryStore persists and retrieves conversational memory snippets. Search
// can be backed by embeddings, keywords or any heuristic.
type MemoryStore interface {
	Store(sessionID, content string, metadata map[string]any) error
	Search(sessionID, query string, limit int) ([]SearchResult, error)
	Delete(sessionID, memoryID string) error
}
