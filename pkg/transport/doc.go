// Package transport defines the network primitive consumed by the session
// and the error taxonomy all transport failures are translated into.
//
// The session never depends on a concrete protocol engine. It drives a
// Transport through five operations (connect, begin authentication,
// authenticate, attach, disconnect) and observes two kinds of unsolicited
// signals: connection loss (Transport.OnDisconnect) and link faults
// (Link.OnError).
//
// # Error Taxonomy
//
// Transport failures are mapped by Translate into a closed set of kinds:
//
//	KindUnauthorized       credential rejected
//	KindNotFound           endpoint or entity does not exist
//	KindResourceExhausted  quota, throttling, size limits
//	KindNotConnected       no usable connection
//	KindTransport          anything else
//
// Errors already carrying a Kind pass through Translate unchanged, so
// callers using errors.Is against ErrUnauthorized and friends always see a
// single, shallow layer.
//
// The AMQP implementation lives in the amqp subpackage.
package transport
