// Package runner orchestrates invocations: it admits one turn per session,
// routes the external input to the active agent, serializes the resulting
// event stream into durable order, applies state deltas, resolves transfers
// and triggers log compaction.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/agenttree/agenttree/artifact"
	"github.com/agenttree/agenttree/compaction"
	"github.com/agenttree/agenttree/core"
	"github.com/agenttree/agenttree/logging"
	"github.com/agenttree/agenttree/memory"
	"github.com/agenttree/agenttree/session"
	"github.com/agenttree/agenttree/tracing"
)

// TransferMode selects what happens after a transfer event is routed.
type TransferMode int

const (
	// TransferContinue runs the target agent immediately within the same
	// invocation. The default.
	TransferContinue TransferMode = iota

	// TransferHandoff ends the turn after recording the new active agent;
	// the target answers the next input.
	TransferHandoff
)

// SessionBusyPolicy selects how a second concurrent submission to the same
// session is handled.
type SessionBusyPolicy int

const (
	// BusyQueue serializes submissions: a new turn waits for the running one.
	// The default.
	BusyQueue SessionBusyPolicy = iota

	// BusyReject fails the submission immediately with ErrSessionBusy.
	BusyReject
)

// Options holds dependency and configuration overrides passed to New.
type Options struct {
	// AppName scopes sessions and app-level state.
	AppName string
	// TransferMode controls transfer continuation within a turn.
	TransferMode TransferMode
	// SessionBusyPolicy controls concurrent submissions to one session.
	SessionBusyPolicy SessionBusyPolicy
	// EventBufferSize sets channel buffering for event streams.
	EventBufferSize int
	// MaxModelCalls caps model calls per invocation (0 = unlimited).
	MaxModelCalls int
	// Compactor, when set, is consulted after every completed turn.
	Compactor *compaction.Compactor

	SessionStore  core.SessionStore
	ArtifactStore core.ArtifactStore
	MemoryStore   core.MemoryStore
	Logger        logging.Logger
}

// Runner coordinates execution over a fixed agent tree. Public methods are
// safe for concurrent use; invocations of distinct sessions run fully in
// parallel while events within one invocation are applied by a single
// serialized consumer.
type Runner struct {
	root   core.Agent
	router *TransferRouter

	appName         string
	transferMode    TransferMode
	busyPolicy      SessionBusyPolicy
	eventBufferSize int
	maxModelCalls   int
	compactor       *compaction.Compactor

	sessionStore  core.SessionStore
	artifactStore core.ArtifactStore
	memoryStore   core.MemoryStore
	logger        logging.Logger

	mu           sync.Mutex
	sessionLocks map[string]*sync.Mutex
	activeRuns   map[string]context.CancelFunc
}

// New constructs a Runner with optional overrides.
func New(root core.Agent, optFns ...func(o *Options)) *Runner {
	opts := Options{
		AppName:         "default",
		EventBufferSize: 100,
		MaxModelCalls:   100,
		SessionStore:    session.NewInMemoryStore(),
		ArtifactStore:   artifact.NewInMemoryStore(),
		MemoryStore:     memory.NewInMemoryStore(),
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Runner{
		root:            root,
		router:          NewTransferRouter(root),
		appName:         opts.AppName,
		transferMode:    opts.TransferMode,
		busyPolicy:      opts.SessionBusyPolicy,
		eventBufferSize: opts.EventBufferSize,
		maxModelCalls:   opts.MaxModelCalls,
		compactor:       opts.Compactor,
		sessionStore:    opts.SessionStore,
		artifactStore:   opts.ArtifactStore,
		memoryStore:     opts.MemoryStore,
		logger:          opts.Logger,
		sessionLocks:    map[string]*sync.Mutex{},
		activeRuns:      map[string]context.CancelFunc{},
	}
}

// Run starts an asynchronous invocation for the given session and returns the
// invocation id plus the live event and error streams. Both channels close
// when the turn ends. With BusyReject, a session that already has a turn in
// flight fails immediately with ErrSessionBusy.
func (r *Runner) Run(
	ctx context.Context,
	userID, sessionID string,
	input core.Content,
) (string, <-chan core.Event, <-chan error, error) {
	key := core.SessionKey{AppName: r.appName, UserID: userID, SessionID: sessionID}
	invocationID := core.NewID()

	lock := r.sessionLock(key)
	locked := false
	if r.busyPolicy == BusyReject {
		if !lock.TryLock() {
			return "", nil, nil, core.ErrSessionBusy
		}
		locked = true
	}

	eventsCh := make(chan core.Event, r.eventBufferSize)
	errorsCh := make(chan error, 1)

	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.activeRuns[invocationID] = cancel
	r.mu.Unlock()

	go func() {
		defer func() {
			close(eventsCh)
			close(errorsCh)
			lock.Unlock()
			cancel()
			r.mu.Lock()
			delete(r.activeRuns, invocationID)
			r.mu.Unlock()
		}()
		if !locked {
			lock.Lock()
		}
		r.execute(ctx, key, invocationID, input, eventsCh, errorsCh)
	}()

	return invocationID, eventsCh, errorsCh, nil
}

// Cancel aborts a running invocation by id.
func (r *Runner) Cancel(invocationID string) error {
	r.mu.Lock()
	cancel, exists := r.activeRuns[invocationID]
	r.mu.Unlock()
	if !exists {
		return fmt.Errorf("invocation %s not found", invocationID)
	}
	cancel()
	return nil
}

func (r *Runner) sessionLock(key core.SessionKey) *sync.Mutex {
	id := key.AppName + "\x00" + key.UserID + "\x00" + key.SessionID
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.sessionLocks[id]
	if !ok {
		lock = &sync.Mutex{}
		r.sessionLocks[id] = lock
	}
	return lock
}

// execute runs one full turn: get or create the session, append the user
// event, then alternate agent segments and event consumption until no
// transfer continuation remains.
func (r *Runner) execute(
	ctx context.Context,
	key core.SessionKey,
	invocationID string,
	input core.Content,
	eventsCh chan<- core.Event,
	errorsCh chan<- error,
) {
	ctx, span := tracing.StartSpan(ctx, "runner.run")
	span.WithAttributes(map[string]string{
		"session_id":    key.SessionID,
		"invocation_id": invocationID,
	})
	var turnErr error
	defer func() { span.End(turnErr) }()

	sess, err := r.getOrCreateSession(ctx, key)
	if err != nil {
		turnErr = err
		r.fail(ctx, errorsCh, err)
		return
	}
	// A freshly created session may carry a generated id; appends must
	// follow it.
	key = sess.Key()

	current := r.startingAgent(sess)

	userEvent := core.NewUserContentEvent(invocationID, &input)
	if err := r.sessionStore.AppendEvent(ctx, key, userEvent); err != nil {
		turnErr = &core.PersistenceError{Op: "append", Err: err}
		r.fail(ctx, errorsCh, turnErr)
		return
	}
	sess.AddEvent(userEvent)

	limiter := core.NewModelLimiter(r.maxModelCalls)

	for {
		next, err := r.runSegment(ctx, key, invocationID, input, current, sess, limiter, eventsCh, errorsCh)
		if err != nil {
			turnErr = err
			break
		}
		if next == nil || r.transferMode == TransferHandoff {
			break
		}
		r.logger.Debug("runner.transfer.continue", "from", current.Name(), "to", next.Name(), "invocation", invocationID)
		current = next
	}

	sess.ClearTempState()
	r.maybeCompact(ctx, key, sess, invocationID)
}

// runSegment executes one agent until it finishes, consuming its events in
// arrival order. It returns the transfer target when the segment ended with
// a routed transfer.
func (r *Runner) runSegment(
	ctx context.Context,
	key core.SessionKey,
	invocationID string,
	input core.Content,
	agent core.Agent,
	sess *core.Session,
	limiter *core.ModelLimiter,
	eventsCh chan<- core.Event,
	errorsCh chan<- error,
) (core.Agent, error) {
	emit := make(chan core.Event, r.eventBufferSize)
	ictx := core.NewInvocationContext(
		ctx, key, invocationID,
		core.AgentInfo{Name: agent.Name(), Type: "agent"},
		input, r.maxModelCalls, emit, sess,
		r.sessionStore, r.artifactStore, r.memoryStore, r.logger,
	)
	ictx.Limiter = limiter // one model budget per invocation, across transfers

	done := make(chan error, 1)
	go func() {
		done <- agent.Run(ictx)
		close(emit)
	}()

	var pending core.Agent
	for ev := range emit {
		next, err := r.applyEvent(ctx, key, sess, ev, eventsCh)
		if err != nil {
			// Failed persistence or routing ends the invocation; drain the
			// producer so it can finish.
			go func() {
				for range emit {
				}
			}()
			<-done
			r.fail(ctx, errorsCh, err)
			return nil, err
		}
		if next != nil {
			pending = next
		}
	}

	if err := <-done; err != nil {
		r.logger.Error("runner.agent.failed", "agent", agent.Name(), "invocation", invocationID, "error", err.Error())
		errEvent := core.NewErrorEvent(invocationID, agent.Name(), "agent_error", err.Error())
		if appendErr := r.sessionStore.AppendEvent(ctx, key, errEvent); appendErr == nil {
			sess.AddEvent(errEvent)
		}
		r.deliver(ctx, eventsCh, errEvent)
		r.fail(ctx, errorsCh, err)
		return nil, err
	}
	return pending, nil
}

// applyEvent is the serialized consumer step: route transfers, apply the
// state delta to the scratch view, persist completed events, forward to the
// caller. Returns the resolved transfer target, if any.
func (r *Runner) applyEvent(
	ctx context.Context,
	key core.SessionKey,
	sess *core.Session,
	ev core.Event,
	eventsCh chan<- core.Event,
) (core.Agent, error) {
	var pending core.Agent
	if target, ok := ev.TransferTarget(); ok {
		resolved, err := r.router.Resolve(ev.Author, target)
		if err != nil {
			// An unroutable transfer is terminal for the invocation: the
			// offending event is replaced by an error event, prior events
			// stay persisted and no state is mutated.
			r.logger.Warn("runner.transfer.rejected", "from", ev.Author, "target", target)
			errEvent := core.NewErrorEvent(ev.InvocationID, ev.Author, "routing_error", err.Error())
			if appendErr := r.sessionStore.AppendEvent(ctx, key, errEvent); appendErr == nil {
				sess.AddEvent(errEvent)
			}
			r.deliver(ctx, eventsCh, errEvent)
			return nil, err
		}
		pending = resolved
		if ev.Actions.StateDelta == nil {
			ev.Actions.StateDelta = map[string]any{}
		}
		// The routing decision rides the same event as the transfer, so
		// replay reproduces it.
		ev.Actions.StateDelta[core.StateKeyActiveAgent] = resolved.Name()
	}

	// Deltas are only honored on persisted events; a delta riding a partial
	// would mutate scratch state without a durable counterpart.
	if !ev.IsPartial() {
		if len(ev.Actions.StateDelta) > 0 {
			sess.ApplyStateDelta(ev.Actions.StateDelta)
		}
		if err := r.sessionStore.AppendEvent(ctx, key, ev); err != nil {
			return nil, &core.PersistenceError{Op: "append", Err: err}
		}
		sess.AddEvent(ev)
	}

	r.deliver(ctx, eventsCh, ev)
	return pending, nil
}

func (r *Runner) startingAgent(sess *core.Session) core.Agent {
	name := ""
	if v, ok := sess.GetState(core.StateKeyActiveAgent); ok {
		if s, ok := v.(string); ok {
			name = s
		}
	}
	return r.router.ResolveActive(name)
}

func (r *Runner) getOrCreateSession(ctx context.Context, key core.SessionKey) (*core.Session, error) {
	sess, err := r.sessionStore.Get(ctx, key, nil)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, core.ErrSessionNotFound) {
		return nil, &core.PersistenceError{Op: "get", Err: err}
	}
	sess, err = r.sessionStore.Create(ctx, key, nil)
	if err != nil {
		return nil, &core.PersistenceError{Op: "create", Err: err}
	}
	return sess, nil
}

func (r *Runner) maybeCompact(ctx context.Context, key core.SessionKey, sess *core.Session, invocationID string) {
	if r.compactor == nil {
		return
	}
	compacted, err := r.compactor.MaybeCompact(ctx, r.sessionStore, key, sess, invocationID)
	if err != nil {
		// Compaction is best effort; the uncompacted log stays valid.
		r.logger.Warn("runner.compaction.failed", "session", key.SessionID, "error", err.Error())
		return
	}
	if compacted {
		r.logger.Info("runner.compaction.applied", "session", key.SessionID)
	}
}

func (r *Runner) deliver(ctx context.Context, eventsCh chan<- core.Event, ev core.Event) {
	select {
	case eventsCh <- ev:
	case <-ctx.Done():
	}
}

// fail reports the first error of a turn; later errors are already implied by
// the first and get dropped.
func (r *Runner) fail(_ context.Context, errorsCh chan<- error, err error) {
	select {
	case errorsCh <- err:
	default:
	}
}
