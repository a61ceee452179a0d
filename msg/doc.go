// Package msg is the message marshalling boundary of rclmesh.
//
// A TypeSupport converts typed message values to and from their native wire
// representation. The client layer never inspects payload bytes itself: it
// obtains a Native from the type support, hands its bytes to the middleware,
// and releases it when done. Release must be called exactly once per Native,
// on both success and error paths.
//
// CBOR returns the default type support for a struct type, encoding with
// canonical CBOR and deriving the wire type name from the Go type.
package msg
