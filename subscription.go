package rclmesh

import (
	"fmt"
	"sync"

	"github.com/fastQM/rclmesh/msg"
	"github.com/fastQM/rclmesh/rmw"
)

// dispatcher is the type-erased capability set through which an executor
// drives a heterogeneous collection of subscriptions: identify the resource
// handle for polling, allocate a buffer compatible with the subscription's
// take, and dispatch a filled buffer to the stored callback.
type dispatcher interface {
	subscriptionHandle() *resourceHandle[rmw.Subscription]
	newBuffer() *msg.Native
	dispatch(buf *msg.Native) error
}

// Subscription is a typed receive endpoint attached to a node. The callback
// is guarded so a single subscription never runs its callback reentrantly
// from two goroutines; distinct subscriptions may be dispatched concurrently.
type Subscription[T any] struct {
	handle  *resourceHandle[rmw.Subscription]
	support msg.TypeSupport
	topic   string

	cbMu     sync.Mutex
	callback func(*T)

	closeOnce sync.Once
}

// NewSubscription creates a subscription on topic with the default CBOR type
// support for T and registers it in the node's dispatch registry. The node
// never owns the subscription; the returned value is the owning reference,
// and closing it is what finalizes the resource.
func NewSubscription[T any](node *Node, topic string, qos QoSProfile, callback func(*T)) (*Subscription[T], error) {
	return NewSubscriptionWithSupport[T](node, topic, qos, msg.CBOR[T](), callback)
}

// NewSubscriptionWithSupport creates a subscription with an explicit type
// support.
func NewSubscriptionWithSupport[T any](node *Node, topic string, qos QoSProfile, support msg.TypeSupport, callback func(*T)) (*Subscription[T], error) {
	var res rmw.Subscription
	st := node.handle.with(func(r rmw.Node) rmw.Status {
		var st rmw.Status
		res, st = r.SubscriptionInit(support.TypeName(), topic, qos.toRMW())
		return st
	})
	if st != rmw.StatusOK {
		return nil, fmt.Errorf("create subscription on %q: %w", topic, statusError(st))
	}

	node.handle.retain()
	s := &Subscription[T]{
		handle:   newHandle("subscription", res, node.handle, node.logger),
		support:  support,
		topic:    topic,
		callback: callback,
	}
	node.registerSubscription(s)
	return s, nil
}

// Topic returns the topic name the subscription was created with.
func (s *Subscription[T]) Topic() string { return s.topic }

// SetCallback replaces the stored callback. It waits for an in-flight
// dispatch on this subscription to finish.
func (s *Subscription[T]) SetCallback(callback func(*T)) {
	s.cbMu.Lock()
	s.callback = callback
	s.cbMu.Unlock()
}

// Take polls for one pending message. It returns (m, true, nil) when a
// message was pending, (nil, false, nil) when nothing was (an ordinary
// outcome, not an error), and (nil, false, err) on a real fault.
func (s *Subscription[T]) Take() (*T, bool, error) {
	buf := s.support.NewNative()
	defer buf.Release()

	st := s.takeInto(buf)
	switch st {
	case rmw.StatusOK:
	case rmw.StatusTakeFailed:
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("take on %q: %w", s.topic, statusError(st))
	}

	m := new(T)
	if err := s.support.FromNative(buf, m); err != nil {
		return nil, false, fmt.Errorf("take on %q: %w", s.topic, err)
	}
	return m, true, nil
}

// takeInto runs the middleware take against buf under the handle's lock.
func (s *Subscription[T]) takeInto(buf *msg.Native) rmw.Status {
	return s.handle.with(func(r rmw.Subscription) rmw.Status {
		return r.Take(&buf.Data, nil)
	})
}

// Close releases the subscription's reference to its resource. The node's
// registry entry goes dead and is pruned lazily during the next dispatch
// pass.
func (s *Subscription[T]) Close() {
	s.closeOnce.Do(s.handle.release)
}

func (s *Subscription[T]) subscriptionHandle() *resourceHandle[rmw.Subscription] {
	return s.handle
}

func (s *Subscription[T]) newBuffer() *msg.Native {
	return s.support.NewNative()
}

func (s *Subscription[T]) dispatch(buf *msg.Native) error {
	m := new(T)
	if err := s.support.FromNative(buf, m); err != nil {
		return fmt.Errorf("dispatch on %q: %w", s.topic, err)
	}
	s.cbMu.Lock()
	cb := s.callback
	defer s.cbMu.Unlock()
	if cb != nil {
		cb(m)
	}
	return nil
}
