package inmem

import (
	"testing"

	"github.com/fastQM/rclmesh/rmw"
)

func mustNode(t *testing.T, mw *Middleware) rmw.Node {
	t.Helper()
	ctx, st := mw.ContextInit(nil)
	if st != rmw.StatusOK {
		t.Fatalf("context init: %v", st)
	}
	node, st := ctx.NodeInit("tester", "/", rmw.DefaultNodeOptions())
	if st != rmw.StatusOK {
		t.Fatalf("node init: %v", st)
	}
	return node
}

func TestTakeEmptyReportsTakeFailed(t *testing.T) {
	node := mustNode(t, New())
	sub, st := node.SubscriptionInit("test.Msg", "chatter", rmw.QoSProfile{})
	if st != rmw.StatusOK {
		t.Fatalf("subscription init: %v", st)
	}
	var buf []byte
	if st := sub.Take(&buf, nil); st != rmw.StatusTakeFailed {
		t.Fatalf("take on empty queue: got %v, want take failed", st)
	}
}

func TestPublishDelivers(t *testing.T) {
	mw := New()
	node := mustNode(t, mw)
	pub, st := node.PublisherInit("test.Msg", "chatter", rmw.QoSProfile{})
	if st != rmw.StatusOK {
		t.Fatalf("publisher init: %v", st)
	}
	sub, st := node.SubscriptionInit("test.Msg", "chatter", rmw.QoSProfile{})
	if st != rmw.StatusOK {
		t.Fatalf("subscription init: %v", st)
	}

	if st := pub.Publish([]byte("hello")); st != rmw.StatusOK {
		t.Fatalf("publish: %v", st)
	}
	var buf []byte
	var info rmw.MessageInfo
	if st := sub.Take(&buf, &info); st != rmw.StatusOK {
		t.Fatalf("take: %v", st)
	}
	if string(buf) != "hello" {
		t.Fatalf("took %q, want %q", buf, "hello")
	}
	if info.Sender != pub.GID() {
		t.Fatalf("sender GID mismatch: got %v, want %v", info.Sender, pub.GID())
	}
	if info.SequenceNumber != 1 {
		t.Fatalf("sequence number: got %d, want 1", info.SequenceNumber)
	}
}

func TestKeepLastDepthEvictsOldest(t *testing.T) {
	mw := New()
	node := mustNode(t, mw)
	pub, _ := node.PublisherInit("test.Msg", "chatter", rmw.QoSProfile{})
	sub, st := node.SubscriptionInit("test.Msg", "chatter", rmw.QoSProfile{
		History: rmw.HistoryKeepLast,
		Depth:   2,
	})
	if st != rmw.StatusOK {
		t.Fatalf("subscription init: %v", st)
	}

	for _, payload := range []string{"a", "b", "c"} {
		if st := pub.Publish([]byte(payload)); st != rmw.StatusOK {
			t.Fatalf("publish %q: %v", payload, st)
		}
	}

	var buf []byte
	for _, want := range []string{"b", "c"} {
		if st := sub.Take(&buf, nil); st != rmw.StatusOK {
			t.Fatalf("take: %v", st)
		}
		if string(buf) != want {
			t.Fatalf("took %q, want %q", buf, want)
		}
	}
	if st := sub.Take(&buf, nil); st != rmw.StatusTakeFailed {
		t.Fatalf("queue should be drained, got %v", st)
	}
}

func TestTransientLocalDeliversToLateJoiner(t *testing.T) {
	mw := New()
	node := mustNode(t, mw)
	qos := rmw.QoSProfile{
		History:    rmw.HistoryKeepLast,
		Depth:      5,
		Durability: rmw.DurabilityTransientLocal,
	}
	pub, st := node.PublisherInit("test.Msg", "chatter", qos)
	if st != rmw.StatusOK {
		t.Fatalf("publisher init: %v", st)
	}
	if st := pub.Publish([]byte("early")); st != rmw.StatusOK {
		t.Fatalf("publish: %v", st)
	}

	sub, st := node.SubscriptionInit("test.Msg", "chatter", qos)
	if st != rmw.StatusOK {
		t.Fatalf("subscription init: %v", st)
	}
	var buf []byte
	if st := sub.Take(&buf, nil); st != rmw.StatusOK {
		t.Fatalf("late joiner take: %v", st)
	}
	if string(buf) != "early" {
		t.Fatalf("took %q, want %q", buf, "early")
	}
}

func TestFinalizedResourcesRejectUse(t *testing.T) {
	mw := New()
	node := mustNode(t, mw)
	pub, _ := node.PublisherInit("test.Msg", "chatter", rmw.QoSProfile{})
	sub, _ := node.SubscriptionInit("test.Msg", "chatter", rmw.QoSProfile{})

	if st := pub.Fini(); st != rmw.StatusOK {
		t.Fatalf("publisher fini: %v", st)
	}
	if st := pub.Publish([]byte("x")); st != rmw.StatusPublisherInvalid {
		t.Fatalf("publish after fini: got %v, want publisher invalid", st)
	}
	if st := pub.Fini(); st != rmw.StatusInvalidArgument {
		t.Fatalf("double fini: got %v, want invalid argument", st)
	}

	if st := sub.Fini(); st != rmw.StatusOK {
		t.Fatalf("subscription fini: %v", st)
	}
	var buf []byte
	if st := sub.Take(&buf, nil); st != rmw.StatusSubscriptionInvalid {
		t.Fatalf("take after fini: got %v, want subscription invalid", st)
	}
}

func TestTopicTypeConflict(t *testing.T) {
	mw := New()
	node := mustNode(t, mw)
	if _, st := node.PublisherInit("test.A", "chatter", rmw.QoSProfile{}); st != rmw.StatusOK {
		t.Fatalf("first publisher: %v", st)
	}
	if _, st := node.SubscriptionInit("test.B", "chatter", rmw.QoSProfile{}); st != rmw.StatusError {
		t.Fatalf("conflicting type: got %v, want error", st)
	}
}

func TestContextInvalidAfterFini(t *testing.T) {
	mw := New()
	ctx, _ := mw.ContextInit(nil)
	if !ctx.IsValid() {
		t.Fatal("fresh context should be valid")
	}
	if st := ctx.Fini(); st != rmw.StatusOK {
		t.Fatalf("fini: %v", st)
	}
	if ctx.IsValid() {
		t.Fatal("context should be invalid after fini")
	}
	if _, st := ctx.NodeInit("n", "/", rmw.DefaultNodeOptions()); st != rmw.StatusInvalidArgument {
		t.Fatalf("node init on finalized context: got %v, want invalid argument", st)
	}
}
