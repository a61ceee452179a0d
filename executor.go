package rclmesh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fastQM/rclmesh/rmw"
)

const defaultIdleDelay = time.Millisecond

// Executor drives the subscriptions of its nodes with a polling loop. It
// holds no ownership: subscriptions closed elsewhere simply drop out of the
// dispatch pass. The core imposes no scheduler policy beyond this loop; a
// caller may also run SpinOnce from its own scheduling.
type Executor struct {
	logger    *slog.Logger
	idleDelay time.Duration

	mu    sync.Mutex
	nodes []*Node
}

type executorOptions struct {
	logger    *slog.Logger
	idleDelay time.Duration
}

// ExecutorOption adjusts executor construction.
type ExecutorOption func(*executorOptions)

// WithIdleDelay sets how long Spin sleeps after a pass that dispatched
// nothing.
func WithIdleDelay(d time.Duration) ExecutorOption {
	return func(o *executorOptions) { o.idleDelay = d }
}

// WithExecutorLogger routes dispatch fault reports to l.
func WithExecutorLogger(l *slog.Logger) ExecutorOption {
	return func(o *executorOptions) { o.logger = l }
}

func NewExecutor(opts ...ExecutorOption) *Executor {
	o := executorOptions{logger: slog.Default(), idleDelay: defaultIdleDelay}
	for _, opt := range opts {
		opt(&o)
	}
	return &Executor{logger: o.logger, idleDelay: o.idleDelay}
}

// AddNode registers a node's subscriptions with the executor.
func (e *Executor) AddNode(n *Node) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nodes = append(e.nodes, n)
}

// RemoveNode drops a node from the executor. Its subscriptions stay usable
// through Take.
func (e *Executor) RemoveNode(n *Node) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, have := range e.nodes {
		if have == n {
			e.nodes = append(e.nodes[:i], e.nodes[i+1:]...)
			return
		}
	}
}

// SpinOnce performs one dispatch pass: for every live subscription, allocate
// a buffer, attempt a take, and on data invoke the callback. An empty take is
// nothing to do this cycle and is skipped silently. Real faults are joined
// into the returned error; the pass still visits every subscription. The
// return count is the number of callbacks invoked.
func (e *Executor) SpinOnce() (int, error) {
	e.mu.Lock()
	nodes := append([]*Node(nil), e.nodes...)
	e.mu.Unlock()

	dispatched := 0
	var faults []error
	for _, node := range nodes {
		for _, sub := range node.liveSubscriptions() {
			n, err := spinSubscription(sub)
			dispatched += n
			if err != nil {
				faults = append(faults, err)
			}
		}
	}
	return dispatched, errors.Join(faults...)
}

// spinSubscription drains one subscription through the type-erased dispatch
// capabilities, stopping at the first empty take.
func spinSubscription(sub dispatcher) (int, error) {
	handle := sub.subscriptionHandle()
	dispatched := 0
	for {
		buf := sub.newBuffer()
		st := handle.with(func(r rmw.Subscription) rmw.Status {
			return r.Take(&buf.Data, nil)
		})
		switch st {
		case rmw.StatusOK:
			err := sub.dispatch(buf)
			buf.Release()
			if err != nil {
				return dispatched, err
			}
			dispatched++
		case rmw.StatusTakeFailed:
			buf.Release()
			return dispatched, nil
		case rmw.StatusSubscriptionInvalid:
			buf.Release()
			if !handle.alive() {
				// Closed between the liveness snapshot and the take; its
				// absence is not a fault.
				return dispatched, nil
			}
			return dispatched, fmt.Errorf("executor take: %w", statusError(st))
		default:
			buf.Release()
			return dispatched, fmt.Errorf("executor take: %w", statusError(st))
		}
	}
}

// Spin polls until ctx is done. Faults are reported through the logger and
// the loop keeps going; passes that dispatch nothing back off by the idle
// delay.
func (e *Executor) Spin(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, err := e.SpinOnce()
		if err != nil {
			e.logger.Error("dispatch pass", "err", err)
		}
		if n == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(e.idleDelay):
			}
		}
	}
}
