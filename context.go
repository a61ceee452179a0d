package rclmesh

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/fastQM/rclmesh/rmw"
)

// Context is the root of the ownership graph: middleware initialization
// shared by every node created from it. Multiple contexts may coexist; each
// owns an independent middleware resource with independent shutdown.
//
// Close drops only the application's reference. The middleware context is
// finalized when the last node (and transitively the last publisher or
// subscription) created from it is closed as well.
type Context struct {
	handle    *resourceHandle[rmw.Context]
	logger    *slog.Logger
	closeOnce sync.Once
}

type contextOptions struct {
	logger *slog.Logger
}

// ContextOption adjusts context construction.
type ContextOption func(*contextOptions)

// WithLogger routes diagnostics (finalization faults, executor errors) to l
// instead of slog.Default().
func WithLogger(l *slog.Logger) ContextOption {
	return func(o *contextOptions) { o.logger = l }
}

// Init initializes a context from process arguments over the given
// middleware. Construction failure is fatal to the caller's setup: there is
// no degraded mode, and the error is never retryable.
func Init(args []string, mw rmw.Middleware, opts ...ContextOption) (*Context, error) {
	o := contextOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	res, st := mw.ContextInit(args)
	if st != rmw.StatusOK {
		return nil, fmt.Errorf("init %s context: %w", mw.Name(), statusError(st))
	}
	return &Context{
		handle: newHandle("context", res, nil, o.logger),
		logger: o.logger,
	}, nil
}

// OK reports whether the middleware context is currently usable. It is safe
// to call concurrently with any other context operation and returns false
// once the resource has been finalized.
func (c *Context) OK() bool {
	var valid bool
	c.handle.with(func(r rmw.Context) rmw.Status {
		valid = r.IsValid()
		return rmw.StatusOK
	})
	return valid
}

// NewNode creates a node in the root namespace.
func (c *Context) NewNode(name string) (*Node, error) {
	return NewNode(c, name, "")
}

// Close releases the application's reference to the context. Safe to call
// more than once.
func (c *Context) Close() {
	c.closeOnce.Do(c.handle.release)
}
