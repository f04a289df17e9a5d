package transport

import (
	"sync"

	"github.com/google/uuid"
)

// pipeBuffer is the number of in-flight messages a pipe stream can hold
// before writes fail.
const pipeBuffer = 256

// Pipe returns two connected in-memory message streams. A message written
// to one is delivered to the other's handler, in write order, on a
// dedicated dispatch goroutine per direction. Pipes are used by tests and
// the simulator in place of a BLE or accessory transport.
func Pipe() (MessageStream, MessageStream) {
	a := newPipeStream()
	b := newPipeStream()
	a.peer = b
	b.peer = a
	go a.dispatch()
	go b.dispatch()
	return a, b
}

// pipeStream is one end of an in-memory message pipe.
type pipeStream struct {
	mu      sync.Mutex
	id      string
	peer    *pipeStream
	handler func(data []byte)
	cond    *sync.Cond

	inbox     chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newPipeStream() *pipeStream {
	s := &pipeStream{
		id:    uuid.NewString(),
		inbox: make(chan []byte, pipeBuffer),
		done:  make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// ID returns the stream's unique identifier.
func (s *pipeStream) ID() string {
	return s.id
}

// WriteMessage delivers a copy of data to the peer stream.
func (s *pipeStream) WriteMessage(data []byte, _ MessageParams) error {
	select {
	case <-s.done:
		return ErrStreamClosed
	case <-s.peer.done:
		return ErrStreamClosed
	default:
	}

	msg := make([]byte, len(data))
	copy(msg, data)

	select {
	case s.peer.inbox <- msg:
		return nil
	default:
		return ErrWriteFailed
	}
}

// SetMessageHandler registers the inbound callback and wakes the
// dispatcher so queued messages drain.
func (s *pipeStream) SetMessageHandler(fn func(data []byte)) {
	s.mu.Lock()
	s.handler = fn
	s.mu.Unlock()
	s.cond.Broadcast()
}

// Close tears down this end of the pipe. Idempotent.
func (s *pipeStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.cond.Broadcast()
	})
	return nil
}

// dispatch delivers inbound messages to the handler in arrival order.
// It parks while no handler is registered.
func (s *pipeStream) dispatch() {
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.inbox:
			s.mu.Lock()
			for s.handler == nil && !s.isClosed() {
				s.cond.Wait()
			}
			h := s.handler
			s.mu.Unlock()

			if s.isClosed() {
				return
			}
			h(msg)
		}
	}
}

// isClosed reports whether Close has been called.
func (s *pipeStream) isClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Compile-time interface satisfaction check.
var _ MessageStream = (*pipeStream)(nil)
