package session

import (
	"github.com/hublink/hublink-go/pkg/link"
	"github.com/hublink/hublink-go/pkg/log"
	"github.com/hublink/hublink-go/pkg/transport"
)

// handler processes ev in the current state and returns the next state.
// Returning the current state means no transition.
type handler func(s *Session, ev *event) State

// transitions is the state machine. An event without an entry is deferred
// in transient states and dropped in stable ones.
var transitions map[State]map[eventKind]handler

func init() {
	transitions = map[State]map[eventKind]handler{
		StateDisconnected: {
			evConnect:                  (*Session).connectFromDisconnected,
			evDisconnect:               (*Session).alreadyDisconnected,
			evSend:                     (*Session).connectFromDisconnected,
			evFeedbackReceiver:         (*Session).connectFromDisconnected,
			evFileNotificationReceiver: (*Session).connectFromDisconnected,
			evUpdateCredential:         (*Session).storeCredential,
			evTransportError:           (*Session).swallowTransportError,
			evClose:                    (*Session).closeFromDisconnected,
		},
		StateConnecting: {
			evConnected:      (*Session).connected,
			evDisconnect:     (*Session).requestTeardown,
			evClose:          (*Session).requestClose,
			evTransportError: (*Session).failTransient,
		},
		StateAuthenticating: {
			evAuthenticated:  (*Session).authenticated,
			evDisconnect:     (*Session).requestTeardown,
			evClose:          (*Session).requestClose,
			evTransportError: (*Session).failTransient,
		},
		StateAuthenticated: {
			evConnect:                  (*Session).alreadyConnected,
			evDisconnect:               (*Session).requestTeardown,
			evSend:                     (*Session).send,
			evFeedbackReceiver:         (*Session).feedbackReceiver,
			evFileNotificationReceiver: (*Session).fileNotificationReceiver,
			evUpdateCredential:         (*Session).updateCredential,
			evRenew:                    (*Session).renew,
			evReauthenticated:          (*Session).reauthenticated,
			evTransportError:           (*Session).connectionLost,
			evClose:                    (*Session).requestClose,
		},
		StateDisconnecting: {
			evTornDown: (*Session).tornDown,
		},
	}
}

// Disconnected

func (s *Session) connectFromDisconnected(ev *event) State {
	s.connectWaiters = append(s.connectWaiters, ev)
	return StateConnecting
}

func (s *Session) alreadyDisconnected(ev *event) State {
	ev.respond(result{})
	return StateDisconnected
}

func (s *Session) storeCredential(ev *event) State {
	s.cred = ev.cred
	s.credGen++
	s.logger.Debug("credential stored for next connect")
	ev.respond(result{})
	return StateDisconnected
}

// swallowTransportError handles a connection loss reported after teardown
// already ran, typically the peer's own close racing a Disconnect. It must
// not notify or answer anyone.
func (s *Session) swallowTransportError(ev *event) State {
	s.logger.Debug("ignoring transport error while disconnected", "error", ev.err)
	return StateDisconnected
}

func (s *Session) closeFromDisconnected(ev *event) State {
	ev.respond(result{})
	s.stopped = true
	return StateDisconnected
}

// Connecting and Authenticating

func (s *Session) connected(ev *event) State {
	if ev.err != nil {
		err := transport.Translate(ev.err)
		s.logger.Debug("transport connect failed", "error", err)
		s.captureError(log.LayerTransport, err, "connect")
		return s.beginTeardown(err, nil)
	}
	return StateAuthenticating
}

func (s *Session) authenticated(ev *event) State {
	s.cfg.Metrics.Authentication(metricsAuthKind(log.AuthInitial), ev.err == nil)
	s.captureAuth(log.AuthInitial, ev.err == nil, s.cred)

	if ev.err != nil {
		err := transport.Translate(ev.err)
		s.logger.Debug("authentication failed", "error", err)
		return s.beginTeardown(err, nil)
	}
	return StateAuthenticated
}

func (s *Session) requestTeardown(ev *event) State {
	return s.beginTeardown(nil, ev)
}

func (s *Session) requestClose(ev *event) State {
	s.closing = true
	return s.beginTeardown(nil, ev)
}

func (s *Session) failTransient(ev *event) State {
	err := transport.Translate(ev.err)
	s.captureError(log.LayerTransport, err, "unsolicited during "+s.state.String())
	return s.beginTeardown(err, nil)
}

// Authenticated

func (s *Session) alreadyConnected(ev *event) State {
	ev.respond(result{})
	return StateAuthenticated
}

func (s *Session) send(ev *event) State {
	s.sendMessage(ev)
	return StateAuthenticated
}

func (s *Session) feedbackReceiver(ev *event) State {
	s.getReceiver(ev, link.EndpointFeedback)
	return StateAuthenticated
}

func (s *Session) fileNotificationReceiver(ev *event) State {
	s.getReceiver(ev, link.EndpointFileNotifications)
	return StateAuthenticated
}

func (s *Session) updateCredential(ev *event) State {
	// A pending renewal would re-extend the credential being replaced.
	s.renewal.Cancel()
	s.credGen++
	s.reauthenticate(ev.cred, log.AuthUpdate, ev)
	return StateAuthenticated
}

func (s *Session) renew(_ *event) State {
	s.renewCredential()
	return StateAuthenticated
}

func (s *Session) reauthenticated(ev *event) State {
	return s.finishReauthentication(ev)
}

func (s *Session) connectionLost(ev *event) State {
	err := transport.Translate(ev.err)
	s.logger.Warn("connection lost", "error", err)
	s.captureError(log.LayerTransport, err, "unsolicited")
	s.notify = true
	return s.beginTeardown(err, nil)
}

// Disconnecting

func (s *Session) tornDown(ev *event) State {
	s.outcome = ev.err
	return StateDisconnected
}
