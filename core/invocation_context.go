package core

import (
	"context"
	"fmt"
	"maps"

	"github.com/agenttree/agenttree/logging"
)

// InvocationContext is the per-invocation execution scope handed to an
// Agent's Run method. It aggregates:
//
//   - The ambient cancellation Context
//   - Identity (session key, invocation id, agent info, branch label)
//   - The external input content
//   - The Emit channel feeding the runner's serialized consumer
//   - Backing collaborators (session, artifact, memory stores)
//   - The scratch Session view plus pending StateDelta / Artifact buffers
//
// Mutations staged via SetState accumulate in StateDelta until the next
// EmitEvent folds them into the outgoing event's actions; the runner then
// applies them to scratch and persisted state in arrival order. Child
// contexts derived for composite agents get fresh buffers so siblings never
// share staged-but-unemitted state.
type InvocationContext struct {
	Context      context.Context
	Key          SessionKey
	InvocationID string
	Agent        AgentInfo
	UserContent  Content
	Emit         chan<- Event
	SessionStore SessionStore
	ArtifactStore ArtifactStore
	MemoryStore  MemoryStore
	Limiter      *ModelLimiter
	Session      *Session
	StateDelta   map[string]any
	Artifacts    []string
	Branch       string

	*loggerAdapter
}

// NewInvocationContext constructs a context with empty delta buffers.
func NewInvocationContext(
	ctx context.Context,
	key SessionKey,
	invocationID string,
	agent AgentInfo,
	userContent Content,
	maxModelCalls int,
	emit chan<- Event,
	sess *Session,
	sessionStore SessionStore,
	artifactStore ArtifactStore,
	memoryStore MemoryStore,
	logger logging.Logger,
) *InvocationContext {
	return &InvocationContext{
		Context:       ctx,
		Key:           key,
		InvocationID:  invocationID,
		Agent:         agent,
		UserContent:   userContent,
		Emit:          emit,
		Session:       sess,
		SessionStore:  sessionStore,
		ArtifactStore: artifactStore,
		MemoryStore:   memoryStore,
		Limiter:       NewModelLimiter(maxModelCalls),
		StateDelta:    map[string]any{},
		Artifacts:     []string{},
		loggerAdapter: newLoggerAdapter(logger),
	}
}

// Done mirrors context.Context's Done.
func (ic *InvocationContext) Done() <-chan struct{} { return ic.Context.Done() }

// Err returns the cancellation error, if any.
func (ic *InvocationContext) Err() error { return ic.Context.Err() }

// SessionID returns the session identifier of this invocation.
func (ic *InvocationContext) SessionID() string { return ic.Key.SessionID }

// GetState returns a staged value if present, else the scratch session value.
func (ic *InvocationContext) GetState(k string) (any, bool) {
	if v, ok := ic.StateDelta[k]; ok {
		return v, true
	}
	if ic.Session != nil {
		return ic.Session.GetState(k)
	}
	return nil, false
}

// SetState stages a mutation; it travels with the next emitted event.
func (ic *InvocationContext) SetState(k string, v any) { ic.StateDelta[k] = v }

// ApplyStateDelta merges all pairs from d into the staged delta.
func (ic *InvocationContext) ApplyStateDelta(d map[string]any) {
	maps.Copy(ic.StateDelta, d)
}

// AddArtifact stages an artifact id to be attached to the next emitted event.
func (ic *InvocationContext) AddArtifact(id string) { ic.Artifacts = append(ic.Artifacts, id) }

// SaveArtifact stores bytes in the ArtifactStore and stages the id.
func (ic *InvocationContext) SaveArtifact(id string, data []byte) error {
	if ic.ArtifactStore == nil {
		return fmt.Errorf("artifact store not configured")
	}
	if err := ic.ArtifactStore.Save(ic.SessionID(), id, data); err != nil {
		return err
	}
	ic.AddArtifact(id)
	return nil
}

// LoadArtifact retrieves previously saved artifact bytes.
func (ic *InvocationContext) LoadArtifact(id string) ([]byte, error) {
	if ic.ArtifactStore == nil {
		return nil, fmt.Errorf("artifact store not configured")
	}
	return ic.ArtifactStore.Load(ic.SessionID(), id)
}

// SearchMemory queries the MemoryStore for relevant content.
func (ic *InvocationContext) SearchMemory(q string, limit int) ([]SearchResult, error) {
	if ic.MemoryStore == nil {
		return []SearchResult{}, nil
	}
	return ic.MemoryStore.Search(ic.SessionID(), q, limit)
}

// StoreMemory appends content plus metadata to the MemoryStore.
func (ic *InvocationContext) StoreMemory(content string, md map[string]any) error {
	if ic.MemoryStore == nil {
		return fmt.Errorf("memory store not configured")
	}
	return ic.MemoryStore.Store(ic.SessionID(), content, md)
}

// ConversationHistory returns the rendered (compaction-shadowed) history of
// the scratch session.
func (ic *InvocationContext) ConversationHistory() []Event {
	if ic.Session == nil {
		return []Event{}
	}
	return ic.Session.ConversationHistory()
}

// NewChildContext derives a context for a nested execution path: same
// identity and services, a caller-chosen emit channel, fresh delta buffers,
// and an optional branch label. Composite agents use it to isolate or
// intercept child output.
func (ic *InvocationContext) NewChildContext(emit chan<- Event, branch string) *InvocationContext {
	finalBranch := ic.Branch
	if branch != "" {
		finalBranch = branch
	}
	return &InvocationContext{
		Context:       ic.Context,
		Key:           ic.Key,
		InvocationID:  ic.InvocationID,
		Agent:         ic.Agent,
		UserContent:   ic.UserContent,
		Emit:          emit,
		SessionStore:  ic.SessionStore,
		ArtifactStore: ic.ArtifactStore,
		MemoryStore:   ic.MemoryStore,
		Limiter:       ic.Limiter,
		Session:       ic.Session,
		StateDelta:    map[string]any{}, // fresh buffers
		Artifacts:     []string{},
		Branch:        finalBranch,
		loggerAdapter: ic.loggerAdapter,
	}
}

// WithAgent returns a copy of the context attributed to another agent. Used
// when a composite hands the turn to a child.
func (ic *InvocationContext) WithAgent(info AgentInfo) *InvocationContext {
	c := ic.NewChildContext(ic.Emit, ic.Branch)
	c.Agent = info
	maps.Copy(c.StateDelta, ic.StateDelta)
	return c
}

// EmitEvent folds pending StateDelta / Artifacts into ev.Actions, sends it on
// the Emit channel, then resets the buffers. Returns the cancellation error
// if the context ends before emission.
func (ic *InvocationContext) EmitEvent(ev Event) error {
	// Staged deltas only ride persisted events; partials are forwarded but
	// never appended, so folding into them would lose the mutation.
	fold := !ev.IsPartial()
	if fold {
		if len(ic.StateDelta) > 0 {
			if ev.Actions.StateDelta == nil {
				ev.Actions.StateDelta = map[string]any{}
			}
			maps.Copy(ev.Actions.StateDelta, ic.StateDelta)
		}
		if len(ic.Artifacts) > 0 {
			if ev.Actions.ArtifactDelta == nil {
				ev.Actions.ArtifactDelta = map[string]int{}
			}
			for _, id := range ic.Artifacts {
				ev.Actions.ArtifactDelta[id]++
			}
		}
	}
	if ic.Branch != "" && ev.Branch == nil {
		b := ic.Branch
		ev.Branch = &b
	}

	select {
	case <-ic.Context.Done():
		return ic.Context.Err()
	case ic.Emit <- ev:
	}

	if fold {
		ic.StateDelta = map[string]any{}
		ic.Artifacts = []string{}
	}
	return nil
}
