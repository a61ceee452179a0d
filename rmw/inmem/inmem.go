// Package inmem is a process-local middleware binding. Contexts created from
// the same Middleware value share one topic table, so publishers and
// subscriptions in a single process see each other without any network. It
// backs the test suite and single-process deployments.
package inmem

import (
	"sync"
	"time"

	"github.com/fastQM/rclmesh/rmw"
)

// defaultDepth is used when a profile asks for system-default history.
const defaultDepth = 10

type sample struct {
	data []byte
	info rmw.MessageInfo
}

type topic struct {
	typeName string
	subs     map[rmw.GID]*subscription
	retained []sample
}

// Middleware is an in-process transport. The zero value is not usable; call
// New.
type Middleware struct {
	mu     sync.Mutex
	topics map[string]*topic
}

func New() *Middleware {
	return &Middleware{topics: make(map[string]*topic)}
}

func (m *Middleware) Name() string { return "inmem" }

func (m *Middleware) ContextInit(args []string) (rmw.Context, rmw.Status) {
	return &context{mw: m, args: append([]string(nil), args...), valid: true}, rmw.StatusOK
}

// getTopic returns the table entry for name, creating it on first use. A
// type name conflict with an existing entry reports an unspecified error:
// endpoints on one topic must agree on the message type.
func (m *Middleware) getTopic(name, typeName string) (*topic, rmw.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.topics[name]
	if !ok {
		t = &topic{typeName: typeName, subs: make(map[rmw.GID]*subscription)}
		m.topics[name] = t
		return t, rmw.StatusOK
	}
	if t.typeName != typeName {
		return nil, rmw.StatusError
	}
	return t, rmw.StatusOK
}

type context struct {
	mw    *Middleware
	args  []string
	mu    sync.Mutex
	valid bool
}

func (c *context) IsValid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.valid
}

func (c *context) Fini() rmw.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid {
		return rmw.StatusInvalidArgument
	}
	c.valid = false
	return rmw.StatusOK
}

func (c *context) NodeInit(name, namespace string, opts rmw.NodeOptions) (rmw.Node, rmw.Status) {
	if !c.IsValid() {
		return nil, rmw.StatusInvalidArgument
	}
	if st := rmw.ValidateNodeName(name); st != rmw.StatusOK {
		return nil, st
	}
	if st := rmw.ValidateNamespace(namespace); st != rmw.StatusOK {
		return nil, st
	}
	return &node{mw: c.mw, name: name, namespace: namespace, valid: true}, rmw.StatusOK
}

type node struct {
	mw        *Middleware
	name      string
	namespace string
	mu        sync.Mutex
	valid     bool
}

func (n *node) isValid() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.valid
}

func (n *node) Fini() rmw.Status {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.valid {
		return rmw.StatusInvalidArgument
	}
	n.valid = false
	return rmw.StatusOK
}

func (n *node) PublisherInit(typeName, topicName string, qos rmw.QoSProfile) (rmw.Publisher, rmw.Status) {
	if !n.isValid() {
		return nil, rmw.StatusNodeInvalid
	}
	if st := rmw.ValidateTopicName(topicName); st != rmw.StatusOK {
		return nil, st
	}
	t, st := n.mw.getTopic(topicName, typeName)
	if st != rmw.StatusOK {
		return nil, st
	}
	return &publisher{mw: n.mw, topic: t, gid: rmw.NewGID(), qos: qos, valid: true}, rmw.StatusOK
}

func (n *node) SubscriptionInit(typeName, topicName string, qos rmw.QoSProfile) (rmw.Subscription, rmw.Status) {
	if !n.isValid() {
		return nil, rmw.StatusNodeInvalid
	}
	if st := rmw.ValidateTopicName(topicName); st != rmw.StatusOK {
		return nil, st
	}
	t, st := n.mw.getTopic(topicName, typeName)
	if st != rmw.StatusOK {
		return nil, st
	}
	s := &subscription{mw: n.mw, topic: t, gid: rmw.NewGID(), depth: queueDepth(qos), valid: true}
	n.mw.mu.Lock()
	if qos.Durability == rmw.DurabilityTransientLocal {
		for _, smp := range t.retained {
			s.push(smp)
		}
	}
	t.subs[s.gid] = s
	n.mw.mu.Unlock()
	return s, rmw.StatusOK
}

func queueDepth(qos rmw.QoSProfile) int {
	switch qos.History {
	case rmw.HistoryKeepAll:
		return 0 // unbounded
	case rmw.HistoryKeepLast:
		if qos.Depth > 0 {
			return qos.Depth
		}
	}
	return defaultDepth
}

type publisher struct {
	mw    *Middleware
	topic *topic
	gid   rmw.GID
	qos   rmw.QoSProfile
	seq   uint64
	mu    sync.Mutex
	valid bool
}

func (p *publisher) GID() rmw.GID { return p.gid }

func (p *publisher) Publish(payload []byte) rmw.Status {
	p.mu.Lock()
	if !p.valid {
		p.mu.Unlock()
		return rmw.StatusPublisherInvalid
	}
	p.seq++
	seq := p.seq
	p.mu.Unlock()

	smp := sample{
		data: append([]byte(nil), payload...),
		info: rmw.MessageInfo{Sender: p.gid, SequenceNumber: seq, Received: time.Now()},
	}

	p.mw.mu.Lock()
	defer p.mw.mu.Unlock()
	if p.qos.Durability == rmw.DurabilityTransientLocal {
		p.topic.retained = append(p.topic.retained, smp)
		if depth := queueDepth(p.qos); depth > 0 && len(p.topic.retained) > depth {
			p.topic.retained = p.topic.retained[len(p.topic.retained)-depth:]
		}
	}
	for _, s := range p.topic.subs {
		s.push(smp)
	}
	return rmw.StatusOK
}

func (p *publisher) Fini() rmw.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.valid {
		return rmw.StatusInvalidArgument
	}
	p.valid = false
	return rmw.StatusOK
}

type subscription struct {
	mw    *Middleware
	topic *topic
	gid   rmw.GID
	depth int

	mu    sync.Mutex
	queue []sample
	valid bool
}

func (s *subscription) GID() rmw.GID { return s.gid }

// push appends a sample, evicting the oldest when the depth bound is hit.
func (s *subscription) push(smp sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.valid {
		return
	}
	s.queue = append(s.queue, smp)
	if s.depth > 0 && len(s.queue) > s.depth {
		s.queue = s.queue[len(s.queue)-s.depth:]
	}
}

func (s *subscription) Take(buf *[]byte, info *rmw.MessageInfo) rmw.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.valid {
		return rmw.StatusSubscriptionInvalid
	}
	if len(s.queue) == 0 {
		return rmw.StatusTakeFailed
	}
	smp := s.queue[0]
	s.queue = s.queue[1:]
	*buf = append((*buf)[:0], smp.data...)
	if info != nil {
		*info = smp.info
	}
	return rmw.StatusOK
}

func (s *subscription) Fini() rmw.Status {
	s.mu.Lock()
	if !s.valid {
		s.mu.Unlock()
		return rmw.StatusInvalidArgument
	}
	s.valid = false
	s.queue = nil
	s.mu.Unlock()

	s.mw.mu.Lock()
	delete(s.topic.subs, s.gid)
	s.mw.mu.Unlock()
	return rmw.StatusOK
}
