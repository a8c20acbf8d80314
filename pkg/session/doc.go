// Package session implements the hub connection state machine.
//
// A Session moves through five states:
//
//	DISCONNECTED --connect--> CONNECTING --connected--> AUTHENTICATING
//	    ^                         |                          |
//	    |                       error                  authenticated
//	    |                         v                          v
//	    +------------------- DISCONNECTING <--error/disconnect-- AUTHENTICATED
//
// One driver goroutine owns all session state. Public methods post a command
// and wait for the reply; transport calls run on their own goroutines and
// post completions back. Every state change increments an epoch, and a
// completion carrying an older epoch is discarded, so a connect that
// finishes after a Disconnect cannot move the session.
//
// Commands issued while CONNECTING, AUTHENTICATING or DISCONNECTING are
// queued and replayed in order once the session is AUTHENTICATED or
// DISCONNECTED. Send and the receiver getters connect implicitly when the
// session is disconnected.
//
// Teardown visits the device-bound sender link, the feedback receiver link,
// the file notification receiver link, and finally the connection, one at a
// time. A teardown caused by an error force-detaches links locally and
// reports that error; a requested Disconnect detaches gracefully and
// reports the first step that failed.
//
// With a *credential.Signer the session renews the token before it expires
// and re-authenticates on the existing connection.
//
// # Basic Usage
//
//	s, err := session.New(session.Config{
//	    Host:       "myhub.azure-devices.net",
//	    Credential: signer,
//	    Transport:  amqp.New(amqp.Config{}),
//	    Logger:     slog.Default(),
//	})
//	if err != nil {
//	    return err
//	}
//	defer s.Close(ctx)
//
//	msg := message.NewMessage([]byte("reboot"))
//	if err := s.Send(ctx, msg, "device-1"); err != nil {
//	    return err
//	}
package session
