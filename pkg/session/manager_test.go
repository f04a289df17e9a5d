package session

import (
	"errors"
	"sync"
	"testing"

	"github.com/carlink-protocol/carlink-go/pkg/oob"
	"github.com/carlink-protocol/carlink-go/pkg/reconnect"
	"github.com/carlink-protocol/carlink-go/pkg/security"
	"github.com/carlink-protocol/carlink-go/pkg/transport"
)

// closableStream counts Close calls for teardown assertions.
type closableStream struct {
	mu         sync.Mutex
	closeCalls int
}

func (s *closableStream) WriteMessage(data []byte, params transport.MessageParams) error {
	return nil
}

func (s *closableStream) SetMessageHandler(fn func(data []byte)) {}

func (s *closableStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCalls++
	return nil
}

func (s *closableStream) closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCalls
}

func newTestSession(t *testing.T, m *Manager, peripheralID, protocol string) (*Session, *closableStream) {
	t.Helper()

	peripheral := transport.RemotePeripheral{ID: peripheralID, DisplayName: "car"}
	helper := reconnect.NewHelper(security.VersionV1, peripheral, reconnect.Config{
		LocalDeviceID: "PHONE-123",
	})
	stream := &closableStream{}

	s, err := m.Begin(peripheral, protocol, helper, stream, oob.NewPassiveProvider())
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	return s, stream
}

func TestBeginAssignsUniqueIDs(t *testing.T) {
	m := NewManager(nil)
	a, _ := newTestSession(t, m, "p1", "companion-link")
	b, _ := newTestSession(t, m, "p2", "companion-link")

	if a.ID == "" || b.ID == "" {
		t.Fatal("expected non-empty session ids")
	}
	if a.ID == b.ID {
		t.Error("expected distinct session ids")
	}
}

func TestBeginRejectsDuplicate(t *testing.T) {
	m := NewManager(nil)
	s, _ := newTestSession(t, m, "p1", "companion-link")

	peripheral := transport.RemotePeripheral{ID: "p1"}
	helper := reconnect.NewHelper(security.VersionV1, peripheral, reconnect.Config{LocalDeviceID: "PHONE-123"})

	_, err := m.Begin(peripheral, "companion-link", helper, &closableStream{}, nil)
	if !errors.Is(err, ErrSessionExists) {
		t.Fatalf("Begin error = %v, want ErrSessionExists", err)
	}

	// A different protocol on the same peripheral is its own slot
	if _, err := m.Begin(peripheral, "side-channel", helper, &closableStream{}, nil); err != nil {
		t.Fatalf("Begin on second protocol failed: %v", err)
	}

	// Closing frees the slot for a fresh attempt
	s.Close()
	if _, err := m.Begin(peripheral, "companion-link", helper, &closableStream{}, nil); err != nil {
		t.Fatalf("Begin after Close failed: %v", err)
	}
}

func TestGet(t *testing.T) {
	m := NewManager(nil)
	s, _ := newTestSession(t, m, "p1", "companion-link")

	got, ok := m.Get("p1", "companion-link")
	if !ok || got != s {
		t.Fatal("expected Get to return the live session")
	}
	if _, ok := m.Get("p1", "other"); ok {
		t.Error("expected no session for an unclaimed protocol")
	}

	s.Close()
	if _, ok := m.Get("p1", "companion-link"); ok {
		t.Error("expected no session after Close")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	m := NewManager(nil)

	ended := 0
	m.OnSessionEnded(func(*Session) { ended++ })

	s, stream := newTestSession(t, m, "p1", "companion-link")
	s.Close()
	s.Close()
	s.Close()

	if stream.closed() != 1 {
		t.Errorf("stream Close calls = %d, want 1", stream.closed())
	}
	if ended != 1 {
		t.Errorf("OnSessionEnded calls = %d, want 1", ended)
	}
	if m.ActiveCount() != 0 {
		t.Errorf("ActiveCount = %d, want 0", m.ActiveCount())
	}
}

func TestCloseResolvesPendingTokenRequest(t *testing.T) {
	m := NewManager(nil)
	peripheral := transport.RemotePeripheral{ID: "p1"}
	helper := reconnect.NewHelper(security.VersionV4, peripheral, reconnect.Config{
		LocalDeviceID: "PHONE-123",
		TokenProvider: oob.NewPassiveProvider(),
	})
	provider := oob.NewPassiveProvider()

	s, err := m.Begin(peripheral, "companion-link", helper, &closableStream{}, provider)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	var resolved []oob.Token
	provider.RequestToken(func(tok oob.Token) { resolved = append(resolved, tok) })

	// Teardown must not leave the request dangling
	s.Close()

	if len(resolved) != 1 || resolved[0] != nil {
		t.Fatalf("pending completion resolved with %v, want exactly one nil", resolved)
	}
}

func TestCloseAll(t *testing.T) {
	m := NewManager(nil)
	_, s1 := newTestSession(t, m, "p1", "companion-link")
	_, s2 := newTestSession(t, m, "p2", "companion-link")

	m.CloseAll()

	if m.ActiveCount() != 0 {
		t.Errorf("ActiveCount = %d, want 0", m.ActiveCount())
	}
	if s1.closed() != 1 || s2.closed() != 1 {
		t.Error("expected every session stream closed exactly once")
	}

	// The manager stays usable after CloseAll
	if _, err := m.Begin(transport.RemotePeripheral{ID: "p3"}, "companion-link",
		reconnect.NewHelper(security.VersionV1, transport.RemotePeripheral{ID: "p3"}, reconnect.Config{LocalDeviceID: "PHONE-123"}),
		&closableStream{}, nil); err != nil {
		t.Fatalf("Begin after CloseAll failed: %v", err)
	}
}

func TestShutdown(t *testing.T) {
	m := NewManager(nil)
	newTestSession(t, m, "p1", "companion-link")

	m.Shutdown()

	if m.ActiveCount() != 0 {
		t.Errorf("ActiveCount = %d, want 0", m.ActiveCount())
	}

	peripheral := transport.RemotePeripheral{ID: "p2"}
	helper := reconnect.NewHelper(security.VersionV1, peripheral, reconnect.Config{LocalDeviceID: "PHONE-123"})
	if _, err := m.Begin(peripheral, "companion-link", helper, &closableStream{}, nil); !errors.Is(err, ErrManagerClosed) {
		t.Fatalf("Begin after Shutdown error = %v, want ErrManagerClosed", err)
	}
}

func TestConcurrentBeginSingleWinner(t *testing.T) {
	m := NewManager(nil)
	peripheral := transport.RemotePeripheral{ID: "p1"}

	const attempts = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	var wins, rejects int

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			helper := reconnect.NewHelper(security.VersionV1, peripheral, reconnect.Config{LocalDeviceID: "PHONE-123"})
			_, err := m.Begin(peripheral, "companion-link", helper, &closableStream{}, nil)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrSessionExists):
				rejects++
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("winners = %d, want exactly 1", wins)
	}
	if rejects != attempts-1 {
		t.Errorf("rejections = %d, want %d", rejects, attempts-1)
	}
}

func TestSessionAccessors(t *testing.T) {
	m := NewManager(nil)
	peripheral := transport.RemotePeripheral{ID: "p1", DisplayName: "My Car"}
	helper := reconnect.NewHelper(security.VersionV1, peripheral, reconnect.Config{LocalDeviceID: "PHONE-123"})
	stream := &closableStream{}

	s, err := m.Begin(peripheral, "companion-link", helper, stream, nil)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	defer s.Close()

	if s.Peripheral().Identifier() != "p1" {
		t.Errorf("Peripheral = %q, want p1", s.Peripheral().Identifier())
	}
	if s.Protocol() != "companion-link" {
		t.Errorf("Protocol = %q, want companion-link", s.Protocol())
	}
	if s.Helper() != helper {
		t.Error("expected the helper passed to Begin")
	}
	if s.Stream() != transport.MessageStream(stream) {
		t.Error("expected the stream passed to Begin")
	}
}
