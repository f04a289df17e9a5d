package reconnect

// State represents the handshake state.
type State uint8

const (
	// StateCreated indicates the helper is constructed but idle; no I/O
	// has happened yet.
	StateCreated State = iota

	// StateAwaitingReadiness indicates the helper needs
	// advertisement-derived configuration before messages can flow.
	StateAwaitingReadiness

	// StateInProgress indicates message exchange is under way.
	StateInProgress

	// StateCompleted indicates the handshake succeeded and the car id is
	// resolved. Terminal.
	StateCompleted

	// StateFailed indicates the handshake aborted. Terminal; the caller
	// must discard the session.
	StateFailed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "CREATED"
	case StateAwaitingReadiness:
		return "AWAITING_READINESS"
	case StateInProgress:
		return "IN_PROGRESS"
	case StateCompleted:
		return "COMPLETED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// terminal reports whether no further messages are processed in s.
func (s State) terminal() bool {
	return s == StateCompleted || s == StateFailed
}
