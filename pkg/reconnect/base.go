package reconnect

import (
	"sync"

	"github.com/carlink-protocol/carlink-go/pkg/log"
	"github.com/carlink-protocol/carlink-go/pkg/security"
	"github.com/carlink-protocol/carlink-go/pkg/transport"
)

// helperBase holds the state shared by all handshake variants. Mutable
// state is written only under mu; inbound messages may arrive on an I/O
// goroutine distinct from the caller's.
type helperBase struct {
	mu sync.Mutex

	version    security.Version
	peripheral transport.Peripheral
	logger     log.Logger

	state   State
	carID   string
	failure error

	ready   bool
	onReady func()
}

func newHelperBase(v security.Version, peripheral transport.Peripheral, initial State, logger log.Logger) helperBase {
	if logger == nil {
		logger = log.NoopLogger{}
	}
	return helperBase{
		version:    v,
		peripheral: peripheral,
		state:      initial,
		logger:     logger,
	}
}

// SecurityVersion returns the version fixed at construction.
func (h *helperBase) SecurityVersion() security.Version {
	return h.version
}

// Peripheral returns the peripheral this attempt is scoped to.
func (h *helperBase) Peripheral() transport.Peripheral {
	return h.peripheral
}

// CarID returns the verified car identifier, empty until completion.
func (h *helperBase) CarID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.carID
}

// State returns the current handshake state.
func (h *helperBase) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Err returns the failure error, nil unless StateFailed.
func (h *helperBase) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.failure
}

// IsReadyForHandshake reports whether message exchange may start.
func (h *helperBase) IsReadyForHandshake() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ready
}

// OnReadyForHandshake registers a single-shot readiness callback,
// firing immediately if readiness was already reached.
func (h *helperBase) OnReadyForHandshake(fn func()) {
	h.mu.Lock()
	if h.ready {
		h.mu.Unlock()
		if fn != nil {
			fn()
		}
		return
	}
	h.onReady = fn
	h.mu.Unlock()
}

// markReady opens the readiness gate and fires the pending callback.
func (h *helperBase) markReady() {
	h.mu.Lock()
	if h.ready {
		h.mu.Unlock()
		return
	}
	h.ready = true
	fn := h.onReady
	h.onReady = nil
	h.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// OnResolvedSecurityVersion aborts unless the peer confirmed the
// version the helper was constructed for.
func (h *helperBase) OnResolvedSecurityVersion(v security.Version) error {
	if v == h.version {
		return nil
	}
	err := &MismatchedSecurityVersionError{Expected: h.version, Resolved: v}
	h.fail(err)
	return err
}

// setState transitions the handshake state and logs the change.
func (h *helperBase) setState(s State) {
	h.mu.Lock()
	old := h.state
	h.state = s
	h.mu.Unlock()

	if old != s {
		h.logger.Log(h.stateEvent(old, s, ""))
	}
}

// fail moves the handshake to StateFailed, recording the first error.
// A failure arriving in a terminal state is ignored.
func (h *helperBase) fail(err error) {
	h.mu.Lock()
	if h.state.terminal() {
		h.mu.Unlock()
		return
	}
	old := h.state
	h.state = StateFailed
	h.failure = err
	h.mu.Unlock()

	h.logger.Log(h.stateEvent(old, StateFailed, err.Error()))
}

// complete moves the handshake to StateCompleted with the resolved car
// id. Returns false if the handshake was already terminal.
func (h *helperBase) complete(carID string) bool {
	h.mu.Lock()
	if h.state.terminal() {
		h.mu.Unlock()
		return false
	}
	old := h.state
	h.state = StateCompleted
	h.carID = carID
	h.mu.Unlock()

	h.logger.Log(h.stateEvent(old, StateCompleted, ""))
	return true
}

// terminalState reports the state if terminal, for early returns in
// HandleMessage.
func (h *helperBase) terminalState() (State, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state, h.state.terminal()
}

// stateEvent builds a handshake state-change log event.
func (h *helperBase) stateEvent(old, new State, reason string) log.Event {
	ev := log.NewStateChangeEvent(log.LayerHandshake, "handshake", old.String(), new.String(), reason)
	ev.PeripheralID = h.peripheral.Identifier()
	ev.SecurityVersion = h.version.String()
	h.mu.Lock()
	ev.CarID = h.carID
	h.mu.Unlock()
	return ev
}
