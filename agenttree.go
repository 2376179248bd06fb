// Package agenttree provides a high-level façade over the runner and service
// abstractions (sessions, artifacts, memory & logging) for building
// multi-agent orchestration systems on an event-sourced session log. Most
// applications interact with this package by:
//  1. Building an agent tree (llm, sequential, parallel, loop, custom)
//  2. Creating an AgentTree via New() (optionally overriding default in-memory services)
//  3. Submitting turns asynchronously (Run) or synchronously (RunSync)
//
// The façade delegates orchestration to runner.Runner while keeping setup and
// usage ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply durable store
// implementations and a structured logger.
package agenttree

import (
	"context"

	"github.com/agenttree/agenttree/core"
	"github.com/agenttree/agenttree/runner"
)

// Options configures the AgentTree instance. It mirrors runner.Options; see
// that type for field semantics.
type Options = runner.Options

// AgentTree is the high-level façade aggregating the underlying runner and services.
type AgentTree struct {
	runner *runner.Runner
}

// New creates a new AgentTree over the given root agent with optional
// overrides. Any unset service is initialized with an in-memory implementation.
func New(root core.Agent, optFns ...func(o *Options)) *AgentTree {
	return &AgentTree{runner: runner.New(root, optFns...)}
}

// Runner exposes the underlying runner for callers needing Cancel or direct
// store access.
func (t *AgentTree) Runner() *runner.Runner { return t.runner }

// Run starts an asynchronous turn returning the invocation id plus event &
// error channels. Both channels close when the turn completes.
func (t *AgentTree) Run(
	ctx context.Context,
	userID string,
	sessionID string,
	input core.Content,
) (string, <-chan core.Event, <-chan error, error) {
	return t.runner.Run(ctx, userID, sessionID, input)
}

// RunSync is a synchronous helper that drains the async channels, accumulates
// events and returns the invocation id.
func (t *AgentTree) RunSync(
	ctx context.Context,
	userID string,
	sessionID string,
	input core.Content,
) (string, []core.Event, error) {
	invocationID, eventsCh, errorsCh, err := t.runner.Run(ctx, userID, sessionID, input)
	if err != nil {
		return "", nil, err
	}

	var events []core.Event
	for {
		select {
		case <-ctx.Done():
			return invocationID, events, ctx.Err()

		case ev, ok := <-eventsCh:
			if !ok {
				// Stream closed; surface a terminal error if one was queued.
				select {
				case err := <-errorsCh:
					return invocationID, events, err
				default:
					return invocationID, events, nil
				}
			}
			events = append(events, ev)

		case err := <-errorsCh:
			if err != nil {
				return invocationID, events, err
			}
		}
	}
}
