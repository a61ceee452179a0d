package rclmesh

import (
	"testing"
	"time"

	"github.com/fastQM/rclmesh/rmw/inmem"
)

// testDeadline bounds every polling loop in the package tests.
const testDeadline = 3 * time.Second

// testMsg is the message type used across the package tests.
type testMsg struct {
	Seq  int64  `cbor:"seq"`
	Text string `cbor:"text"`
}

// newTestContext returns a context over a fresh in-process middleware and
// closes it when the test finishes.
func newTestContext(t *testing.T) *Context {
	t.Helper()
	ctx, err := Init(nil, inmem.New())
	if err != nil {
		t.Fatalf("init context: %v", err)
	}
	t.Cleanup(ctx.Close)
	return ctx
}

func newTestNode(t *testing.T, ctx *Context, name string) *Node {
	t.Helper()
	node, err := ctx.NewNode(name)
	if err != nil {
		t.Fatalf("create node %q: %v", name, err)
	}
	t.Cleanup(node.Close)
	return node
}

// waitFor polls cond until it returns true or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
