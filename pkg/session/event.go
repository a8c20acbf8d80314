package session

import (
	"context"

	"github.com/hublink/hublink-go/pkg/credential"
	"github.com/hublink/hublink-go/pkg/log"
	"github.com/hublink/hublink-go/pkg/message"
	"github.com/hublink/hublink-go/pkg/receiver"
)

// eventKind identifies an input to the state machine.
type eventKind uint8

const (
	// Commands issued by callers.
	evConnect eventKind = iota
	evDisconnect
	evSend
	evFeedbackReceiver
	evFileNotificationReceiver
	evUpdateCredential
	evClose

	// Unsolicited connection loss reported by the transport.
	evTransportError

	// Completions of transport calls, tagged with the issuing epoch.
	evConnected
	evAuthenticated
	evReauthenticated
	evTornDown

	// Renewal timer fire.
	evRenew
)

var eventNames = map[eventKind]string{
	evConnect:                  "connect",
	evDisconnect:               "disconnect",
	evSend:                     "send",
	evFeedbackReceiver:         "feedback_receiver",
	evFileNotificationReceiver: "file_notification_receiver",
	evUpdateCredential:         "update_credential",
	evClose:                    "close",
	evTransportError:           "transport_error",
	evConnected:                "connected",
	evAuthenticated:            "authenticated",
	evReauthenticated:          "reauthenticated",
	evTornDown:                 "torn_down",
	evRenew:                    "renew",
}

func (k eventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return "unknown"
}

// command reports whether k is a caller command.
func (k eventKind) command() bool {
	return k <= evClose
}

// completion reports whether k is an epoch-tagged transport completion.
func (k eventKind) completion() bool {
	return k >= evConnected && k <= evTornDown
}

// deferrable reports whether k is queued when the current state has no
// handler for it.
func (k eventKind) deferrable() bool {
	return k.command() || k == evTransportError
}

// result is the reply to a command.
type result struct {
	receiver *receiver.Receiver
	err      error
}

// event is one input to the driver loop.
type event struct {
	kind eventKind

	// epoch is the session epoch when the transport call was issued.
	epoch uint64

	// err is the completion or unsolicited error.
	err error

	// Command arguments.
	msg      *message.Message
	deviceID string
	cred     credential.Credential

	// reauth carries the credential and trigger of a re-authentication,
	// and the command that requested it (nil for renewals).
	trigger log.AuthTrigger
	origin  *event

	// credGen is the credential generation a re-authentication was
	// issued under.
	credGen uint64

	// fn runs on the driver without going through the transition table.
	fn func()

	reply chan result
}

// respond delivers r to the waiting caller. A command is answered at most
// once; later responses are dropped.
func (ev *event) respond(r result) {
	if ev == nil || ev.reply == nil {
		return
	}
	select {
	case ev.reply <- r:
	default:
	}
}

func (ev *event) fail(err error) {
	ev.respond(result{err: err})
}

func newCommand(kind eventKind) *event {
	return &event{kind: kind, reply: make(chan result, 1)}
}

// wait blocks for the reply to ev, the caller's context, or session
// shutdown.
func (s *Session) wait(ctx context.Context, ev *event) result {
	select {
	case s.events <- ev:
	case <-s.done:
		return result{err: ErrClosed}
	case <-ctx.Done():
		return result{err: ctx.Err()}
	}

	select {
	case r := <-ev.reply:
		return r
	case <-ctx.Done():
		return result{err: ctx.Err()}
	case <-s.done:
		select {
		case r := <-ev.reply:
			return r
		default:
			return result{err: ErrClosed}
		}
	}
}

// post delivers an internal event to the driver. It reports false if the
// session has stopped.
func (s *Session) post(ev *event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

// dispatch runs fn on the driver goroutine.
func (s *Session) dispatch(fn func()) {
	s.post(&event{fn: fn})
}
