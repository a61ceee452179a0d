package rmw

import (
	"time"

	"github.com/google/uuid"
)

// Status is the result code of a middleware call. Bindings must report the
// most specific code that applies; the client layer maps each code to a
// distinct error.
type Status int

const (
	StatusOK Status = iota
	// StatusError is an unspecified middleware failure.
	StatusError
	StatusInvalidArgument
	StatusBadAlloc
	StatusAlreadyInit
	StatusNodeInvalid
	StatusInvalidNodeName
	StatusInvalidNamespace
	StatusInvalidTopicName
	StatusPublisherInvalid
	StatusSubscriptionInvalid
	// StatusTakeFailed means no message was pending. It is an ordinary
	// outcome of Take, not a fault.
	StatusTakeFailed
)

var statusNames = map[Status]string{
	StatusOK:                  "ok",
	StatusError:               "error",
	StatusInvalidArgument:     "invalid argument",
	StatusBadAlloc:            "allocation failure",
	StatusAlreadyInit:         "already initialized",
	StatusNodeInvalid:         "node invalid",
	StatusInvalidNodeName:     "invalid node name",
	StatusInvalidNamespace:    "invalid namespace",
	StatusInvalidTopicName:    "invalid topic name",
	StatusPublisherInvalid:    "publisher invalid",
	StatusSubscriptionInvalid: "subscription invalid",
	StatusTakeFailed:          "take failed",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown status"
}

// GID is a global identifier for a publisher or subscription endpoint.
type GID [16]byte

// NewGID returns a random GID.
func NewGID() GID {
	return GID(uuid.New())
}

func (g GID) String() string {
	return uuid.UUID(g).String()
}

// MessageInfo accompanies every message returned by Take.
type MessageInfo struct {
	Sender         GID
	SequenceNumber uint64
	Received       time.Time
}

// QoSProfile is the flat policy structure consumed by bindings. The client
// layer translates its own profile field-for-field into this struct and never
// branches on the values itself.
type QoSProfile struct {
	History                   HistoryPolicy
	Depth                     int
	Reliability               ReliabilityPolicy
	Durability                DurabilityPolicy
	AvoidNamespaceConventions bool
}

type HistoryPolicy int

const (
	HistorySystemDefault HistoryPolicy = iota
	HistoryKeepLast
	HistoryKeepAll
)

type ReliabilityPolicy int

const (
	ReliabilitySystemDefault ReliabilityPolicy = iota
	ReliabilityReliable
	ReliabilityBestEffort
)

type DurabilityPolicy int

const (
	DurabilitySystemDefault DurabilityPolicy = iota
	DurabilityTransientLocal
	DurabilityVolatile
)

// NodeOptions carries per-node middleware settings.
type NodeOptions struct {
	// DomainID partitions discovery; nodes only see peers in the same domain.
	DomainID uint32
	// UseGlobalArguments lets the node pick up context-level remappings.
	UseGlobalArguments bool
}

// DefaultNodeOptions returns the options used when the caller passes none.
func DefaultNodeOptions() NodeOptions {
	return NodeOptions{DomainID: 0, UseGlobalArguments: true}
}

// Middleware creates contexts for one transport implementation.
type Middleware interface {
	// Name identifies the binding ("inmem", "gossip").
	Name() string
	// ContextInit initializes a fresh context from process arguments. The
	// returned context is active; a second Fini is rejected with
	// StatusAlreadyInit by bindings that detect reuse.
	ContextInit(args []string) (Context, Status)
}

// Context is an initialized middleware context resource.
type Context interface {
	// IsValid reports whether the resource is usable. It returns false once
	// Fini has run.
	IsValid() bool
	NodeInit(name, namespace string, opts NodeOptions) (Node, Status)
	Fini() Status
}

// Node is an initialized middleware node resource.
type Node interface {
	PublisherInit(typeName, topic string, qos QoSProfile) (Publisher, Status)
	SubscriptionInit(typeName, topic string, qos QoSProfile) (Subscription, Status)
	Fini() Status
}

// Publisher is an initialized middleware publisher resource.
type Publisher interface {
	GID() GID
	// Publish sends one encoded message. The binding must not retain payload
	// after the call returns.
	Publish(payload []byte) Status
	Fini() Status
}

// Subscription is an initialized middleware subscription resource.
type Subscription interface {
	GID() GID
	// Take pops one pending message into buf, overwriting its contents, and
	// fills info if non-nil. It never blocks: StatusTakeFailed reports that
	// nothing was pending.
	Take(buf *[]byte, info *MessageInfo) Status
	Fini() Status
}
