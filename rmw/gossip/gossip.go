// Package gossip is the libp2p middleware binding. A context owns a libp2p
// host and a gossipsub router; publishers and subscriptions map to gossipsub
// topics, joined once per context and reference counted. Messages travel in a
// small CBOR envelope carrying the wire type name, sender GID, and a per
// publisher sequence number.
package gossip

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	libp2p "github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	mdns "github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/fastQM/rclmesh/rmw"
)

// Options configures the libp2p transport backing a context.
type Options struct {
	ListenAddrs     []string
	Bootstrap       []string
	Rendezvous      string
	EnableMDNS      bool
	IdentityKeyFile string
	// Logger receives discovery and bootstrap diagnostics. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// Middleware creates gossipsub-backed contexts. Each context owns an
// independent host; two contexts in one process are distinct peers.
type Middleware struct {
	opts Options
}

func New(opts Options) *Middleware {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Middleware{opts: opts}
}

func (m *Middleware) Name() string { return "gossip" }

func (m *Middleware) ContextInit(args []string) (rmw.Context, rmw.Status) {
	listenAddrs := make([]ma.Multiaddr, 0, len(m.opts.ListenAddrs))
	for _, s := range m.opts.ListenAddrs {
		if s == "" {
			continue
		}
		a, err := ma.NewMultiaddr(s)
		if err != nil {
			m.opts.Logger.Error("invalid listen multiaddr", "addr", s, "err", err)
			return nil, rmw.StatusInvalidArgument
		}
		listenAddrs = append(listenAddrs, a)
	}
	if len(listenAddrs) == 0 {
		a, _ := ma.NewMultiaddr("/ip4/0.0.0.0/tcp/0")
		listenAddrs = append(listenAddrs, a)
	}

	libp2pOpts := []libp2p.Option{libp2p.ListenAddrs(listenAddrs...)}
	if m.opts.IdentityKeyFile != "" {
		key, err := loadOrCreateIdentityKey(m.opts.IdentityKeyFile)
		if err != nil {
			m.opts.Logger.Error("load identity key", "path", m.opts.IdentityKeyFile, "err", err)
			return nil, rmw.StatusError
		}
		libp2pOpts = append(libp2pOpts, libp2p.Identity(key))
	}

	runCtx, cancel := context.WithCancel(context.Background())
	h, err := libp2p.New(libp2pOpts...)
	if err != nil {
		cancel()
		m.opts.Logger.Error("create host", "err", err)
		return nil, rmw.StatusError
	}
	ps, err := pubsub.NewGossipSub(runCtx, h)
	if err != nil {
		_ = h.Close()
		cancel()
		m.opts.Logger.Error("create gossipsub", "err", err)
		return nil, rmw.StatusError
	}

	c := &ctxRes{
		runCtx: runCtx,
		cancel: cancel,
		host:   h,
		ps:     ps,
		logger: m.opts.Logger,
		topics: make(map[string]*topicRef),
		valid:  true,
	}

	m.opts.Logger.Info("gossip host ready", "peer", h.ID(), "addrs", c.PeerAddrs())

	if m.opts.EnableMDNS {
		service := mdns.NewMdnsService(h, m.opts.Rendezvous, &mdnsNotifee{host: h, logger: m.opts.Logger})
		if err := service.Start(); err != nil {
			m.opts.Logger.Warn("mdns start", "err", err)
		}
	}
	for _, raw := range m.opts.Bootstrap {
		if raw == "" {
			continue
		}
		addr, err := ma.NewMultiaddr(raw)
		if err != nil {
			m.opts.Logger.Warn("skip bootstrap addr", "addr", raw, "err", err)
			continue
		}
		info, err := peer.AddrInfoFromP2pAddr(addr)
		if err != nil {
			m.opts.Logger.Warn("skip bootstrap addr", "addr", raw, "err", err)
			continue
		}
		if err := h.Connect(runCtx, *info); err != nil {
			m.opts.Logger.Warn("bootstrap connect failed", "peer", info.ID, "err", err)
		} else {
			m.opts.Logger.Info("connected bootstrap peer", "peer", info.ID)
		}
	}

	return c, rmw.StatusOK
}

// envelope is the gossipsub wire format.
type envelope struct {
	Type   string  `cbor:"t"`
	Sender rmw.GID `cbor:"g"`
	Seq    uint64  `cbor:"n"`
	Data   []byte  `cbor:"d"`
}

type topicRef struct {
	topic *pubsub.Topic
	refs  int
}

type ctxRes struct {
	runCtx context.Context
	cancel context.CancelFunc
	host   host.Host
	ps     *pubsub.PubSub
	logger *slog.Logger

	mu     sync.Mutex
	topics map[string]*topicRef
	valid  bool
}

func (c *ctxRes) IsValid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.valid
}

func (c *ctxRes) Fini() rmw.Status {
	c.mu.Lock()
	if !c.valid {
		c.mu.Unlock()
		return rmw.StatusInvalidArgument
	}
	c.valid = false
	topics := c.topics
	c.topics = nil
	c.mu.Unlock()

	c.cancel()
	for _, ref := range topics {
		_ = ref.topic.Close()
	}
	if err := c.host.Close(); err != nil {
		c.logger.Error("close host", "err", err)
		return rmw.StatusError
	}
	return rmw.StatusOK
}

// PeerAddrs returns the host's fully qualified listen addresses, usable as
// bootstrap addresses for other peers.
func (c *ctxRes) PeerAddrs() []string {
	out := make([]string, 0, len(c.host.Addrs()))
	for _, addr := range c.host.Addrs() {
		out = append(out, fmt.Sprintf("%s/p2p/%s", addr, c.host.ID()))
	}
	return out
}

func (c *ctxRes) joinTopic(name string) (*pubsub.Topic, rmw.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid {
		return nil, rmw.StatusInvalidArgument
	}
	if ref, ok := c.topics[name]; ok {
		ref.refs++
		return ref.topic, rmw.StatusOK
	}
	t, err := c.ps.Join(name)
	if err != nil {
		c.logger.Error("join topic", "topic", name, "err", err)
		return nil, rmw.StatusError
	}
	c.topics[name] = &topicRef{topic: t, refs: 1}
	return t, rmw.StatusOK
}

func (c *ctxRes) leaveTopic(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ref, ok := c.topics[name]
	if !ok {
		return
	}
	ref.refs--
	if ref.refs == 0 {
		_ = ref.topic.Close()
		delete(c.topics, name)
	}
}

func (c *ctxRes) NodeInit(name, namespace string, opts rmw.NodeOptions) (rmw.Node, rmw.Status) {
	if !c.IsValid() {
		return nil, rmw.StatusInvalidArgument
	}
	if st := rmw.ValidateNodeName(name); st != rmw.StatusOK {
		return nil, st
	}
	if st := rmw.ValidateNamespace(namespace); st != rmw.StatusOK {
		return nil, st
	}
	return &nodeRes{ctx: c, name: name, namespace: namespace, valid: true}, rmw.StatusOK
}

type nodeRes struct {
	ctx       *ctxRes
	name      string
	namespace string
	mu        sync.Mutex
	valid     bool
}

func (n *nodeRes) isValid() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.valid
}

func (n *nodeRes) Fini() rmw.Status {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.valid {
		return rmw.StatusInvalidArgument
	}
	n.valid = false
	return rmw.StatusOK
}

func (n *nodeRes) PublisherInit(typeName, topicName string, qos rmw.QoSProfile) (rmw.Publisher, rmw.Status) {
	if !n.isValid() {
		return nil, rmw.StatusNodeInvalid
	}
	if st := rmw.ValidateTopicName(topicName); st != rmw.StatusOK {
		return nil, st
	}
	t, st := n.ctx.joinTopic(topicName)
	if st != rmw.StatusOK {
		return nil, st
	}
	return &pubRes{
		ctx:       n.ctx,
		topic:     t,
		topicName: topicName,
		typeName:  typeName,
		gid:       rmw.NewGID(),
		valid:     true,
	}, rmw.StatusOK
}

type pubRes struct {
	ctx       *ctxRes
	topic     *pubsub.Topic
	topicName string
	typeName  string
	gid       rmw.GID

	mu    sync.Mutex
	seq   uint64
	valid bool
}

func (p *pubRes) GID() rmw.GID { return p.gid }

func (p *pubRes) Publish(payload []byte) rmw.Status {
	p.mu.Lock()
	if !p.valid {
		p.mu.Unlock()
		return rmw.StatusPublisherInvalid
	}
	p.seq++
	seq := p.seq
	p.mu.Unlock()

	raw, err := cbor.Marshal(envelope{Type: p.typeName, Sender: p.gid, Seq: seq, Data: payload})
	if err != nil {
		return rmw.StatusError
	}
	if err := p.topic.Publish(p.ctx.runCtx, raw); err != nil {
		p.ctx.logger.Error("publish", "topic", p.topicName, "err", err)
		return rmw.StatusError
	}
	return rmw.StatusOK
}

func (p *pubRes) Fini() rmw.Status {
	p.mu.Lock()
	if !p.valid {
		p.mu.Unlock()
		return rmw.StatusInvalidArgument
	}
	p.valid = false
	p.mu.Unlock()
	p.ctx.leaveTopic(p.topicName)
	return rmw.StatusOK
}

func (n *nodeRes) SubscriptionInit(typeName, topicName string, qos rmw.QoSProfile) (rmw.Subscription, rmw.Status) {
	if !n.isValid() {
		return nil, rmw.StatusNodeInvalid
	}
	if st := rmw.ValidateTopicName(topicName); st != rmw.StatusOK {
		return nil, st
	}
	t, st := n.ctx.joinTopic(topicName)
	if st != rmw.StatusOK {
		return nil, st
	}
	sub, err := t.Subscribe()
	if err != nil {
		n.ctx.leaveTopic(topicName)
		n.ctx.logger.Error("subscribe", "topic", topicName, "err", err)
		return nil, rmw.StatusError
	}

	pumpCtx, cancel := context.WithCancel(n.ctx.runCtx)
	s := &subRes{
		ctx:       n.ctx,
		topicName: topicName,
		typeName:  typeName,
		gid:       rmw.NewGID(),
		depth:     queueDepth(qos),
		sub:       sub,
		cancel:    cancel,
		valid:     true,
	}
	go s.pump(pumpCtx)
	return s, rmw.StatusOK
}

func queueDepth(qos rmw.QoSProfile) int {
	switch qos.History {
	case rmw.HistoryKeepAll:
		return 0
	case rmw.HistoryKeepLast:
		if qos.Depth > 0 {
			return qos.Depth
		}
	}
	return 10
}

type sample struct {
	data []byte
	info rmw.MessageInfo
}

type subRes struct {
	ctx       *ctxRes
	topicName string
	typeName  string
	gid       rmw.GID
	depth     int
	sub       *pubsub.Subscription
	cancel    context.CancelFunc

	mu    sync.Mutex
	queue []sample
	valid bool
}

func (s *subRes) GID() rmw.GID { return s.gid }

// pump drains the gossipsub subscription into the take queue so Take stays
// non-blocking. Envelopes with a mismatched type name are dropped.
func (s *subRes) pump(ctx context.Context) {
	for {
		m, err := s.sub.Next(ctx)
		if err != nil {
			return
		}
		var env envelope
		if err := cbor.Unmarshal(m.Data, &env); err != nil {
			s.ctx.logger.Warn("drop malformed envelope", "topic", s.topicName, "err", err)
			continue
		}
		if env.Type != s.typeName {
			s.ctx.logger.Warn("drop mismatched type", "topic", s.topicName, "got", env.Type, "want", s.typeName)
			continue
		}
		smp := sample{
			data: env.Data,
			info: rmw.MessageInfo{Sender: env.Sender, SequenceNumber: env.Seq, Received: time.Now()},
		}
		s.mu.Lock()
		if s.valid {
			s.queue = append(s.queue, smp)
			if s.depth > 0 && len(s.queue) > s.depth {
				s.queue = s.queue[len(s.queue)-s.depth:]
			}
		}
		s.mu.Unlock()
	}
}

func (s *subRes) Take(buf *[]byte, info *rmw.MessageInfo) rmw.Status {
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

func (s *subRes) Fini() rmw.Status {
	s.mu.Lock()
	if !s.valid {
		s.mu.Unlock()
		return rmw.StatusInvalidArgument
	}
	s.valid = false
	s.queue = nil
	s.mu.Unlock()

	s.cancel()
	s.sub.Cancel()
	s.ctx.leaveTopic(s.topicName)
	return rmw.StatusOK
}

type mdnsNotifee struct {
	host   host.Host
	logger *slog.Logger
}

func (n *mdnsNotifee) HandlePeerFound(info peer.AddrInfo) {
	if err := n.host.Connect(context.Background(), info); err != nil {
		n.logger.Warn("mdns connect failed", "peer", info.ID, "err", err)
	}
}

func loadOrCreateIdentityKey(path string) (crypto.PrivKey, error) {
	if b, err := os.ReadFile(path); err == nil && len(b) > 0 {
		key, err := crypto.UnmarshalPrivateKey(b)
		if err != nil {
			return nil, fmt.Errorf("unmarshal private key: %w", err)
		}
		return key, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir key dir: %w", err)
	}
	key, _, err := crypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key: %w", err)
	}
	raw, err := crypto.MarshalPrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("marshal private key: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return nil, fmt.Errorf("write private key: %w", err)
	}
	return key, nil
}
