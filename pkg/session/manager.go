package session

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/carlink-protocol/carlink-go/pkg/log"
	"github.com/carlink-protocol/carlink-go/pkg/oob"
	"github.com/carlink-protocol/carlink-go/pkg/reconnect"
	"github.com/carlink-protocol/carlink-go/pkg/transport"
)

// Session errors.
var (
	// ErrSessionExists indicates a handshake is already live for the
	// (peripheral, protocol) pair. Two handshakes must never race over
	// the same underlying transport resource.
	ErrSessionExists = errors.New("session already exists for peripheral and protocol")

	// ErrManagerClosed indicates the manager has been shut down.
	ErrManagerClosed = errors.New("session manager closed")
)

// sessionKey identifies a live session slot.
type sessionKey struct {
	peripheralID string
	protocol     string
}

// Session is one live handshake attempt with its owned resources. A
// session is created through Manager.Begin and torn down exactly once
// through Close, regardless of how many callers race to close it.
type Session struct {
	// ID uniquely identifies the session (UUID).
	ID string

	peripheral transport.Peripheral
	protocol   string
	helper     reconnect.Helper
	stream     transport.MessageStream
	provider   oob.TokenProvider

	manager   *Manager
	closeOnce sync.Once
}

// Peripheral returns the peripheral this session is bound to.
func (s *Session) Peripheral() transport.Peripheral {
	return s.peripheral
}

// Protocol returns the protocol name this session occupies.
func (s *Session) Protocol() string {
	return s.protocol
}

// Helper returns the handshake helper driving this session.
func (s *Session) Helper() reconnect.Helper {
	return s.helper
}

// Stream returns the session's message stream.
func (s *Session) Stream() transport.MessageStream {
	return s.stream
}

// Close tears the session down deterministically: any pending token
// request resolves with nil, the provider's resources close, the stream
// closes, and the manager slot frees. Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.provider != nil {
			s.provider.Reset()
			s.provider.CloseForRequests()
		}
		if s.stream != nil {
			s.stream.SetMessageHandler(nil)
			_ = s.stream.Close()
		}
		s.manager.release(s)
	})
}

// Manager enforces the one-live-handshake rule: at most one session may
// exist per (peripheral, protocol) pair at a time. A second concurrent
// attempt is rejected, not serialized.
type Manager struct {
	mu       sync.Mutex
	sessions map[sessionKey]*Session
	closed   bool

	onSessionEnded func(*Session)
	logger         log.Logger
}

// NewManager creates a session manager. Pass a nil logger to disable
// logging.
func NewManager(logger log.Logger) *Manager {
	if logger == nil {
		logger = log.NoopLogger{}
	}
	return &Manager{
		sessions: make(map[sessionKey]*Session),
		logger:   logger,
	}
}

// Begin claims the (peripheral, protocol) slot and returns the new live
// session. The provider may be nil for versions without a token
// dependency.
func (m *Manager) Begin(peripheral transport.Peripheral, protocol string, helper reconnect.Helper,
	stream transport.MessageStream, provider oob.TokenProvider) (*Session, error) {

	key := sessionKey{peripheralID: peripheral.Identifier(), protocol: protocol}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}
	if _, exists := m.sessions[key]; exists {
		m.mu.Unlock()
		return nil, ErrSessionExists
	}

	s := &Session{
		ID:         uuid.NewString(),
		peripheral: peripheral,
		protocol:   protocol,
		helper:     helper,
		stream:     stream,
		provider:   provider,
		manager:    m,
	}
	m.sessions[key] = s
	m.mu.Unlock()

	ev := log.NewStateChangeEvent(log.LayerSession, "session", "", "LIVE", "")
	ev.SessionID = s.ID
	ev.PeripheralID = key.peripheralID
	m.logger.Log(ev)

	return s, nil
}

// Get returns the live session for a (peripheral, protocol) pair.
func (m *Manager) Get(peripheralID, protocol string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionKey{peripheralID: peripheralID, protocol: protocol}]
	return s, ok
}

// ActiveCount returns the number of live sessions.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// CloseAll tears down every live session. The manager stays usable.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

// Shutdown tears down every live session and rejects further Begin
// calls.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.CloseAll()
}

// OnSessionEnded sets a callback invoked after each session teardown.
func (m *Manager) OnSessionEnded(fn func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSessionEnded = fn
}

// release frees the session's slot. Called exactly once per session via
// Session.Close.
func (m *Manager) release(s *Session) {
	key := sessionKey{peripheralID: s.peripheral.Identifier(), protocol: s.protocol}

	m.mu.Lock()
	// Only remove the slot if it still belongs to this session.
	if current, ok := m.sessions[key]; ok && current == s {
		delete(m.sessions, key)
	}
	fn := m.onSessionEnded
	m.mu.Unlock()

	ev := log.NewStateChangeEvent(log.LayerSession, "session", "LIVE", "ENDED", "")
	ev.SessionID = s.ID
	ev.PeripheralID = key.peripheralID
	m.logger.Log(ev)

	if fn != nil {
		fn(s)
	}
}
