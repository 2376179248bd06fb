package agent

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/agenttree/agenttree/core"
)

// ParallelAgent executes its children concurrently, one goroutine per child.
// All children emit into the shared event stream, so each child's own events
// stay ordered while events of different children interleave arbitrarily.
// Branch labels ("Parent.Child") attribute interleaved events to their
// producer.
//
// Failure handling is configurable: by default a failing child does not
// disturb its siblings and all failures are joined into the returned error.
// With WithFailFast the first failure cancels the remaining children and is
// returned alone.
type ParallelAgent struct {
	BaseAgent
	children []core.Agent
	failFast bool
	timeout  time.Duration
}

// ParallelOption configures a ParallelAgent.
type ParallelOption func(*ParallelAgent)

// WithFailFast makes the first child failure cancel all siblings.
func WithFailFast() ParallelOption {
	return func(p *ParallelAgent) { p.failFast = true }
}

// WithTimeout bounds the total execution time of all children.
func WithTimeout(d time.Duration) ParallelOption {
	return func(p *ParallelAgent) { p.timeout = d }
}

// NewParallelAgent creates a parallel coordinator over the given children.
func NewParallelAgent(name string, children []core.Agent, opts ...ParallelOption) *ParallelAgent {
	p := &ParallelAgent{
		BaseAgent: NewBaseAgent(name),
		children:  children,
	}
	for _, o := range opts {
		o(p)
	}
	_ = p.SetSubAgents(children...)
	return p
}

// Run implements core.Agent.
func (p *ParallelAgent) Run(ictx *core.InvocationContext) error {
	ctx := ictx.Context
	cancel := context.CancelFunc(func() {})
	if p.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
	} else if p.failFast {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	var (
		wg       sync.WaitGroup
		errs     = make([]error, len(p.children))
		once     sync.Once
		firstErr error
	)

	for i, child := range p.children {
		wg.Add(1)
		go func(idx int, c core.Agent) {
			defer wg.Done()

			branch := buildBranchPath(ictx.Branch, p.Name()+"."+c.Name())
			cctx := ictx.NewChildContext(ictx.Emit, branch)
			cctx.Context = ctx
			cctx.Agent = agentInfo(c)

			if err := c.Run(cctx); err != nil {
				wrapped := &core.ChildExecutionError{Agent: c.Name(), Err: err}
				if p.failFast {
					once.Do(func() {
						firstErr = wrapped
						cancel()
					})
					return
				}
				errs[idx] = wrapped
			}
		}(i, child)
	}

	wg.Wait()

	if p.failFast {
		return firstErr
	}
	return errors.Join(errs...)
}
