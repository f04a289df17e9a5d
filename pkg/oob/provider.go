package oob

import "sync"

// Completion receives the outcome of a token request: the token, or nil
// when none could be obtained. Each request's completion is invoked
// exactly once, possibly on a different goroutine than the caller's.
type Completion func(Token)

// TokenProvider supplies out-of-band tokens to the handshake.
//
// RequestToken must invoke its completion exactly once per call, either
// synchronously (token already cached) or later when a token arrives.
// Reset and provider teardown resolve any pending completion with nil
// rather than leaving it dangling.
type TokenProvider interface {
	// RequestToken asks for a token. The completion fires exactly once.
	RequestToken(completion Completion)

	// Reset clears any cached token. Idempotent; safe with no token
	// present. A pending completion is resolved with nil.
	Reset()

	// PrepareForRequests opens any resources needed to serve requests.
	PrepareForRequests()

	// CloseForRequests releases resources opened by PrepareForRequests.
	CloseForRequests()
}

// completionGate enforces the exactly-once contract for a single
// completion. Concurrent resolution attempts race safely: the first wins
// and the rest are no-ops.
type completionGate struct {
	mu   sync.Mutex
	fn   Completion
	done bool
}

func newCompletionGate(fn Completion) *completionGate {
	return &completionGate{fn: fn}
}

// resolve fires the completion with t if it has not fired yet.
func (g *completionGate) resolve(t Token) {
	g.mu.Lock()
	if g.done {
		g.mu.Unlock()
		return
	}
	g.done = true
	fn := g.fn
	g.fn = nil
	g.mu.Unlock()

	if fn != nil {
		fn(t)
	}
}

// PassiveProvider serves tokens pushed to it externally (e.g. by a
// platform notification carrying token material). It has no resources of
// its own; PrepareForRequests and CloseForRequests are no-ops.
type PassiveProvider struct {
	mu      sync.Mutex
	token   Token
	pending *completionGate
}

// NewPassiveProvider creates an empty passive provider.
func NewPassiveProvider() *PassiveProvider {
	return &PassiveProvider{}
}

// PostToken caches a pushed token, or resolves a pending request with it
// directly. A posted token replaces any previously cached one.
func (p *PassiveProvider) PostToken(t Token) {
	p.mu.Lock()
	if g := p.pending; g != nil {
		p.pending = nil
		p.mu.Unlock()
		g.resolve(t)
		return
	}
	p.token = t
	p.mu.Unlock()
}

// RequestToken resolves immediately from cache, or records the request
// until a token is posted. A new request supersedes a pending one; the
// superseded completion is resolved with nil.
func (p *PassiveProvider) RequestToken(completion Completion) {
	gate := newCompletionGate(completion)

	p.mu.Lock()
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

// Reset clears the cached token and resolves any pending request with nil.
func (p *PassiveProvider) Reset() {
	p.mu.Lock()
	p.token = nil
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()

	if pending != nil {
		pending.resolve(nil)
	}
}

// PrepareForRequests is a no-op for the passive provider.
func (p *PassiveProvider) PrepareForRequests() {}

// CloseForRequests is a no-op for the passive provider.
func (p *PassiveProvider) CloseForRequests() {}

// Compile-time interface satisfaction check.
var _ TokenProvider = (*PassiveProvider)(nil)
