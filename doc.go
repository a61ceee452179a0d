// Package rclmesh is a client runtime for publish/subscribe middleware.
//
// Applications initialize a [Context] over a middleware binding, create
// [Node] values under it, and attach typed [Publisher] and [Subscription]
// endpoints to exchange messages over topics. The transport itself is
// pluggable through the rmw package: rmw/gossip runs over libp2p gossipsub,
// rmw/inmem stays in process.
//
// Every entity wraps an opaque middleware resource that is not safe for
// concurrent calls; the runtime serializes access through one lock per
// resource and finalizes resources in strict parent-after-children order via
// reference counting: a context outlives its nodes, and a node outlives its
// publishers and subscriptions, with no explicit sequencing anywhere. Close
// an entity when done with it; the last Close in the graph tears the
// middleware down.
//
// An [Executor] polls the live subscriptions of its nodes and dispatches
// their callbacks through a type-erased interface, so one loop can drive any
// mix of message types. Subscriptions are polled, never pushed: a take that
// finds nothing pending is an ordinary outcome and costs no error handling.
package rclmesh
