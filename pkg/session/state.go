package session

// State represents the session state.
type State uint8

const (
	// StateDisconnected indicates no transport connection.
	StateDisconnected State = iota

	// StateConnecting indicates a transport connect is in flight.
	StateConnecting

	// StateAuthenticating indicates the CBS handshake is in flight.
	StateAuthenticating

	// StateAuthenticated indicates a usable, authenticated connection.
	StateAuthenticated

	// StateDisconnecting indicates teardown is in progress.
	StateDisconnecting
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateAuthenticating:
		return "AUTHENTICATING"
	case StateAuthenticated:
		return "AUTHENTICATED"
	case StateDisconnecting:
		return "DISCONNECTING"
	default:
		return "UNKNOWN"
	}
}

// Transient reports whether commands issued in this state are deferred.
func (s State) Transient() bool {
	switch s {
	case StateConnecting, StateAuthenticating, StateDisconnecting:
		return true
	default:
		return false
	}
}
