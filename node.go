package rclmesh

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/fastQM/rclmesh/rmw"
)

// Node is a named entity under a context. It owns its middleware resource,
// keeps the context alive while it exists, and tracks the subscriptions
// created under it through non-owning registry entries: a subscription's
// lifetime is governed by whoever holds the value returned at creation time,
// and the node only observes which are still live.
type Node struct {
	handle  *resourceHandle[rmw.Node]
	context *resourceHandle[rmw.Context]
	logger  *slog.Logger

	name      string
	namespace string

	mu   sync.Mutex
	subs []dispatcher

	closeOnce sync.Once
}

// NewNode creates a node under ctx. An empty namespace is equivalent to "/",
// and a namespace lacking a leading slash is canonicalized by prefixing one;
// validation beyond that is the middleware's.
func NewNode(ctx *Context, name, namespace string) (*Node, error) {
	switch {
	case namespace == "":
		namespace = "/"
	case namespace[0] != '/':
		namespace = "/" + namespace
	}

	var res rmw.Node
	st := ctx.handle.with(func(r rmw.Context) rmw.Status {
		var st rmw.Status
		res, st = r.NodeInit(name, namespace, rmw.DefaultNodeOptions())
		return st
	})
	if st != rmw.StatusOK {
		return nil, fmt.Errorf("create node %q in %q: %w", name, namespace, statusError(st))
	}

	ctx.handle.retain()
	return &Node{
		handle:    newHandle("node", res, ctx.handle, ctx.logger),
		context:   ctx.handle,
		logger:    ctx.logger,
		name:      name,
		namespace: namespace,
	}, nil
}

func (n *Node) Name() string { return n.name }

func (n *Node) Namespace() string { return n.namespace }

// FullyQualifiedName returns the namespace-qualified node name.
func (n *Node) FullyQualifiedName() string {
	if n.namespace == "/" {
		return "/" + n.name
	}
	return n.namespace + "/" + n.name
}

// Close releases the node's reference to its resource. The resource is
// finalized once every publisher and subscription created under the node has
// been closed too, and the context strictly after that.
func (n *Node) Close() {
	n.closeOnce.Do(n.handle.release)
}

// registerSubscription records a non-owning dispatch entry for d.
func (n *Node) registerSubscription(d dispatcher) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subs = append(n.subs, d)
}

// liveSubscriptions snapshots the registry, pruning entries whose resource
// has been finalized. Pruning is lazy: a closed subscription simply stops
// appearing, it is never an error.
func (n *Node) liveSubscriptions() []dispatcher {
	n.mu.Lock()
	defer n.mu.Unlock()
	live := n.subs[:0]
	for _, d := range n.subs {
		if d.subscriptionHandle().alive() {
			live = append(live, d)
		}
	}
	clear(n.subs[len(live):])
	n.subs = live
	return append([]dispatcher(nil), live...)
}
