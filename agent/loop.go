package agent

import (
	"fmt"
	"time"

	"github.com/agenttree/agenttree/core"
)

// DefaultMaxIterations is the loop ceiling applied when none is configured.
// The ceiling is a hard bound: a loop never runs past it regardless of what
// the child does.
const DefaultMaxIterations = 100

// LoopAgent executes a single child repeatedly against the same session. The
// loop ends when the child escalates, when the iteration ceiling is reached,
// or when the child errors (configurable). The current iteration number is
// staged under the ephemeral temp:loop_iteration key so the child can read
// it without the counter ever reaching persisted state.
type LoopAgent struct {
	BaseAgent
	child         core.Agent
	maxIterations int
	interval      time.Duration
	stopOnError   bool
}

// LoopOption configures a LoopAgent.
type LoopOption func(*LoopAgent)

// WithMaxIterations sets the iteration ceiling. Values below 1 keep the
// default.
func WithMaxIterations(n int) LoopOption {
	return func(l *LoopAgent) {
		if n >= 1 {
			l.maxIterations = n
		}
	}
}

// WithInterval sets a delay between iterations, useful for polling loops.
func WithInterval(d time.Duration) LoopOption {
	return func(l *LoopAgent) { l.interval = d }
}

// WithContinueOnError keeps iterating when the child errors instead of
// stopping the loop.
func WithContinueOnError() LoopOption {
	return func(l *LoopAgent) { l.stopOnError = false }
}

// NewLoopAgent creates a looping coordinator around a child agent.
// Defaults: 100 iterations, no interval, stop on first error.
func NewLoopAgent(name string, child core.Agent, opts ...LoopOption) *LoopAgent {
	l := &LoopAgent{
		BaseAgent:     NewBaseAgent(name),
		child:         child,
		maxIterations: DefaultMaxIterations,
		stopOnError:   true,
	}
	for _, o := range opts {
		o(l)
	}
	_ = l.SetSubAgents(child)
	return l
}

// MaxIterations returns the configured iteration ceiling.
func (l *LoopAgent) MaxIterations() int { return l.maxIterations }

// Run implements core.Agent.
func (l *LoopAgent) Run(ictx *core.InvocationContext) error {
	for i := 1; i <= l.maxIterations; i++ {
		select {
		case <-ictx.Done():
			return ictx.Err()
		default:
		}

		ictx.LogDebug("agent.loop.iteration", "agent", l.Name(), "iteration", i, "max", l.maxIterations)

		iteration := i
		escalated, err := interceptRun(ictx, l.child, ictx.Branch, func(cctx *core.InvocationContext) {
			cctx.SetState(core.StateKeyLoopIteration, iteration)
		})
		if escalated {
			ictx.LogDebug("agent.loop.escalated", "agent", l.Name(), "iteration", i)
			return nil
		}
		if err != nil {
			if l.stopOnError {
				return fmt.Errorf("loop iteration %d failed for agent %s: %w", i, l.child.Name(), err)
			}
			ictx.LogWarn("agent.loop.iteration_failed", "agent", l.Name(), "iteration", i, "error", err.Error())
		}

		if l.interval > 0 && i < l.maxIterations {
			select {
			case <-ictx.Done():
				return ictx.Err()
			case <-time.After(l.interval):
			}
		}
	}

	ictx.LogDebug("agent.loop.ceiling_reached", "agent", l.Name(), "iterations", l.maxIterations)
	return nil
}
