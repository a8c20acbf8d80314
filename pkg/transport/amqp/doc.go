// Package amqp implements transport.Transport over AMQP 1.0 using
// github.com/Azure/go-amqp.
//
// Connect dials amqps://<host>:5671 with SASL ANONYMOUS and TLS, then opens
// one AMQP session that carries every link. Authentication uses
// claims-based security: BeginAuthentication attaches a sender and a
// receiver on the $cbs node, and Authenticate sends a put-token request and
// waits for the correlated status reply.
//
// The $cbs reply loop also watches the connection. When it fails for any
// reason other than a Disconnect, the handler registered with OnDisconnect
// is called once with the error.
//
// Remote errors keep their AMQP condition (for example
// "amqp:unauthorized-access"), so transport.Translate can classify them.
package amqp
