package rclmesh

import (
	"fmt"
	"sync"

	"github.com/fastQM/rclmesh/msg"
	"github.com/fastQM/rclmesh/rmw"
)

// Publisher is a typed send endpoint attached to a node. It carries no
// message state; Publish may be called from any number of goroutines.
type Publisher[T any] struct {
	handle    *resourceHandle[rmw.Publisher]
	support   msg.TypeSupport
	topic     string
	closeOnce sync.Once
}

// NewPublisher creates a publisher on topic with the default CBOR type
// support for T.
func NewPublisher[T any](node *Node, topic string, qos QoSProfile) (*Publisher[T], error) {
	return NewPublisherWithSupport[T](node, topic, qos, msg.CBOR[T]())
}

// NewPublisherWithSupport creates a publisher with an explicit type support.
func NewPublisherWithSupport[T any](node *Node, topic string, qos QoSProfile, support msg.TypeSupport) (*Publisher[T], error) {
	var res rmw.Publisher
	st := node.handle.with(func(r rmw.Node) rmw.Status {
		var st rmw.Status
		res, st = r.PublisherInit(support.TypeName(), topic, qos.toRMW())
		return st
	})
	if st != rmw.StatusOK {
		return nil, fmt.Errorf("create publisher on %q: %w", topic, statusError(st))
	}

	node.handle.retain()
	return &Publisher[T]{
		handle:  newHandle("publisher", res, node.handle, node.logger),
		support: support,
		topic:   topic,
	}, nil
}

// Topic returns the topic name the publisher was created with.
func (p *Publisher[T]) Topic() string { return p.topic }

// GID returns the publisher's global identifier.
func (p *Publisher[T]) GID() rmw.GID {
	var gid rmw.GID
	p.handle.with(func(r rmw.Publisher) rmw.Status {
		gid = r.GID()
		return rmw.StatusOK
	})
	return gid
}

// Publish encodes m and hands it to the middleware. The native representation
// is released exactly once whether or not the middleware call succeeds.
// Errors are reported, never retried here; retry policy belongs to the
// caller.
func (p *Publisher[T]) Publish(m *T) error {
	native, err := p.support.ToNative(m)
	if err != nil {
		return fmt.Errorf("publish on %q: %w", p.topic, err)
	}
	defer native.Release()

	st := p.handle.with(func(r rmw.Publisher) rmw.Status {
		return r.Publish(native.Data)
	})
	if st != rmw.StatusOK {
		return fmt.Errorf("publish on %q: %w", p.topic, statusError(st))
	}
	return nil
}

// Close releases the publisher's reference to its resource.
func (p *Publisher[T]) Close() {
	p.closeOnce.Do(p.handle.release)
}
