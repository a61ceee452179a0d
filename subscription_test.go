package rclmesh

import (
	"errors"
	"sync/atomic"
	"testing"
)

func TestTakeEmptyIsNotAnError(t *testing.T) {
	ctx := newTestContext(t)
	node := newTestNode(t, ctx, "listener")

	var calls atomic.Int32
	sub, err := NewSubscription(node, "chatter", DefaultQoS(), func(*testMsg) {
		calls.Add(1)
	})
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	defer sub.Close()

	m, ok, err := sub.Take()
	if err != nil {
		t.Fatalf("empty take must not fail: %v", err)
	}
	if ok || m != nil {
		t.Fatalf("empty take returned (%v, %v), want (nil, false)", m, ok)
	}
	if calls.Load() != 0 {
		t.Fatal("empty take must not invoke the callback")
	}
}

func TestPublishThenTakeRoundTrip(t *testing.T) {
	ctx := newTestContext(t)

	node, err := NewNode(ctx, "n", "")
	if err != nil {
		t.Fatalf("create node: %v", err)
	}
	defer node.Close()

	pub, err := NewPublisher[testMsg](node, "t", DefaultQoS())
	if err != nil {
		t.Fatalf("create publisher: %v", err)
	}
	defer pub.Close()
	sub, err := NewSubscription(node, "t", DefaultQoS(), func(*testMsg) {})
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	defer sub.Close()

	want := testMsg{Seq: 42, Text: "M1"}
	if err := pub.Publish(&want); err != nil {
		t.Fatalf("publish: %v", err)
	}

	// Delivery is asynchronous in general, so poll with a bound.
	var got *testMsg
	waitFor(t, testDeadline, func() bool {
		m, ok, err := sub.Take()
		if err != nil {
			t.Fatalf("take: %v", err)
		}
		got = m
		return ok
	})
	if *got != want {
		t.Fatalf("took %+v, want %+v", *got, want)
	}
}

func TestTakeOnClosedSubscription(t *testing.T) {
	ctx := newTestContext(t)
	node := newTestNode(t, ctx, "listener")

	sub, err := NewSubscription(node, "chatter", DefaultQoS(), func(*testMsg) {})
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	sub.Close()

	if _, _, err := sub.Take(); !errors.Is(err, ErrSubscriptionInvalid) {
		t.Fatalf("take after close: got %v, want ErrSubscriptionInvalid", err)
	}
}

func TestSetCallback(t *testing.T) {
	ctx := newTestContext(t)
	node := newTestNode(t, ctx, "listener")

	var first, second atomic.Int32
	sub, err := NewSubscription(node, "chatter", DefaultQoS(), func(*testMsg) {
		first.Add(1)
	})
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	defer sub.Close()
	pub, err := NewPublisher[testMsg](node, "chatter", DefaultQoS())
	if err != nil {
		t.Fatalf("create publisher: %v", err)
	}
	defer pub.Close()

	sub.SetCallback(func(*testMsg) { second.Add(1) })

	if err := pub.Publish(&testMsg{Seq: 1}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	exec := NewExecutor()
	exec.AddNode(node)
	waitFor(t, testDeadline, func() bool {
		if _, err := exec.SpinOnce(); err != nil {
			t.Fatalf("spin: %v", err)
		}
		return second.Load() == 1
	})
	if first.Load() != 0 {
		t.Fatal("replaced callback must not be invoked")
	}
}

func TestSubscriptionCreationErrors(t *testing.T) {
	ctx := newTestContext(t)
	node := newTestNode(t, ctx, "listener")

	if _, err := NewSubscription(node, "/bad//topic", DefaultQoS(), func(*testMsg) {}); !errors.Is(err, ErrInvalidTopicName) {
		t.Fatalf("expected ErrInvalidTopicName, got %v", err)
	}

	node.Close()
	if _, err := NewSubscription(node, "chatter", DefaultQoS(), func(*testMsg) {}); !errors.Is(err, ErrNodeInvalid) {
		t.Fatalf("expected ErrNodeInvalid on closed node, got %v", err)
	}
}
