package rclmesh

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/fastQM/rclmesh/rmw"
)

// finalizer is the part of every middleware resource the handle needs for
// teardown.
type finalizer interface {
	Fini() rmw.Status
}

type releaser interface {
	release()
}

// resourceHandle wraps one middleware resource behind a mutex and a reference
// count. The mutex serializes every middleware call, because the wrapped
// resource is not safe for concurrent calls. The count starts at one for the
// creating owner; each child retains its parent's handle, so a resource is
// finalized only after every child released it. Parent-after-children order
// falls out of the count chain with no explicit sequencing.
type resourceHandle[R finalizer] struct {
	mu        sync.Mutex
	res       R
	refs      atomic.Int32
	finalized atomic.Bool
	parent    releaser
	kind      string
	logger    *slog.Logger
}

func newHandle[R finalizer](kind string, res R, parent releaser, logger *slog.Logger) *resourceHandle[R] {
	h := &resourceHandle[R]{res: res, parent: parent, kind: kind, logger: logger}
	h.refs.Store(1)
	return h
}

// with runs op against the resource with exclusive access. Liveness is not
// checked here: a finalized resource rejects calls with its own status code,
// which keeps validity reporting truthful at the middleware.
func (h *resourceHandle[R]) with(op func(R) rmw.Status) rmw.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return op(h.res)
}

func (h *resourceHandle[R]) alive() bool {
	return !h.finalized.Load()
}

// retain adds a reference. Callers must already hold one.
func (h *resourceHandle[R]) retain() {
	h.refs.Add(1)
}

// release drops a reference. The last release acquires exclusive access one
// final time, finalizes the resource, and only then releases the parent. A
// finalization fault has no caller left to receive an error; it is reported
// through the logger and the teardown continues.
func (h *resourceHandle[R]) release() {
	if h.refs.Add(-1) != 0 {
		return
	}
	h.finalized.Store(true)
	h.mu.Lock()
	st := h.res.Fini()
	h.mu.Unlock()
	if st != rmw.StatusOK {
		h.logger.Error("finalize failed", "resource", h.kind, "status", st.String())
	}
	if h.parent != nil {
		h.parent.release()
	}
}
