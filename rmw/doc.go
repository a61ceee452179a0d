// Package rmw defines the middleware boundary of rclmesh.
//
// A middleware binding supplies opaque resources (context, node, publisher,
// subscription) behind the interfaces in this package. Every operation returns
// a Status code that the client layer maps to its error taxonomy; bindings do
// not wrap or retry. Resources are not safe for concurrent calls. The client
// layer serializes access to each resource through its own lock, so bindings
// may assume at most one in-flight call per resource.
//
// Two bindings ship with the module: rmw/inmem (process-local, used by tests
// and single-process deployments) and rmw/gossip (libp2p gossipsub).
package rmw
