package oob

import (
	"errors"
	"sync"

	"github.com/carlink-protocol/carlink-go/pkg/transport"
	"github.com/carlink-protocol/carlink-go/pkg/wire"
)

// Session provider errors.
var (
	ErrNoSessionStream = errors.New("accessory session stream unavailable")
)

// SessionProvider sources tokens from a live accessory session: it
// listens on a side-channel message stream and caches the token parsed
// from the first well-formed token message. Malformed side-channel
// messages are ignored; the handshake times out upstream if no token
// ever arrives.
type SessionProvider struct {
	mu          sync.Mutex
	stream      transport.MessageStream
	token       Token
	pending     *completionGate
	invalidated bool

	invalidateOnce sync.Once
}

// NewSessionProvider creates a provider over an accessory session
// stream. Construction fails if the stream is absent; a provider is
// never exposed half-built.
func NewSessionProvider(stream transport.MessageStream) (*SessionProvider, error) {
	if stream == nil {
		return nil, ErrNoSessionStream
	}

	p := &SessionProvider{stream: stream}
	stream.SetMessageHandler(p.handleSideChannelMessage)
	return p, nil
}

// handleSideChannelMessage parses one side-channel message. Anything
// that is not a well-formed token message is dropped without error.
func (p *SessionProvider) handleSideChannelMessage(data []byte) {
	msg, err := wire.DecodeMessage(data)
	if err != nil {
		return
	}
	tokenMsg, ok := msg.(*wire.OOBTokenMessage)
	if !ok {
		return
	}

	material, err := DeriveMaterial(tokenMsg)
	if err != nil {
		return
	}
	token, err := NewToken(material)
	if err != nil {
		return
	}

	p.mu.Lock()
	if p.invalidated {
		p.mu.Unlock()
		return
	}
	if g := p.pending; g != nil {
		p.pending = nil
		p.mu.Unlock()
		g.resolve(token)
		return
	}
	p.token = token
	p.mu.Unlock()
}

// RequestToken resolves immediately if a token is cached, or waits for
// the session to deliver one. After invalidation it resolves with nil.
func (p *SessionProvider) RequestToken(completion Completion) {
	gate := newCompletionGate(completion)

	p.mu.Lock()
	if p.invalidated {
		p.mu.Unlock()
		gate.resolve(nil)
		return
	}
	if p.token != nil {
		t := p.token
		p.mu.Unlock()
		gate.resolve(t)
		return
	}
	superseded := p.pending
	p.pending = gate
	p.mu.Unlock()

	if superseded != nil {
		superseded.resolve(nil)
	}
}

// Reset clears the cached token and resolves any pending request with
// nil. The session stays open; a later token message re-fills the cache.
func (p *SessionProvider) Reset() {
	p.mu.Lock()
	p.token = nil
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()

	if pending != nil {
		pending.resolve(nil)
	}
}

// PrepareForRequests is a no-op: the session was opened at construction.
func (p *SessionProvider) PrepareForRequests() {}

// CloseForRequests invalidates the provider. The accessory session is
// the provider's only resource, so closing the request window tears it
// down.
func (p *SessionProvider) CloseForRequests() {
	p.Invalidate()
}

// Invalidate tears the provider down: the side-channel handler is
// detached, the owned stream is closed exactly once, and any pending
// completion resolves with nil. Invalidate is idempotent and safe to
// call from both a disconnect notification and explicit teardown.
func (p *SessionProvider) Invalidate() {
	p.invalidateOnce.Do(func() {
		p.mu.Lock()
		p.invalidated = true
		p.token = nil
		pending := p.pending
		p.pending = nil
		stream := p.stream
		p.stream = nil
		p.mu.Unlock()

		if stream != nil {
			stream.SetMessageHandler(nil)
			_ = stream.Close()
		}
		if pending != nil {
			pending.resolve(nil)
		}
	})
}

// Compile-time interface satisfaction check.
var _ TokenProvider = (*SessionProvider)(nil)
