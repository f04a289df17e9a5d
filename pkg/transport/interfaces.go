package transport

import "errors"

// Transport errors.
var (
	ErrStreamClosed = errors.New("message stream closed")
	ErrWriteFailed  = errors.New("message write failed")
)

// Peripheral is a handle to a discovered remote device. It is owned by
// the transport layer; the handshake only reads from it.
type Peripheral interface {
	// Identifier returns the transport-level identifier of the peripheral.
	// This is not the car id; it is stable only for the current discovery.
	Identifier() string

	// Name returns the advertised name, if any.
	Name() string
}

// OperationType tags an outbound message with its purpose so the framing
// layer can route it.
type OperationType uint8

const (
	// OperationEncryptionHandshake tags messages that are part of the
	// reconnection or association handshake.
	OperationEncryptionHandshake OperationType = 0

	// OperationClientMessage tags application messages on an established
	// secure channel.
	OperationClientMessage OperationType = 1

	// OperationQuery tags query messages.
	OperationQuery OperationType = 2

	// OperationAck tags acknowledgment messages.
	OperationAck OperationType = 3
)

// String returns the operation type name.
func (o OperationType) String() string {
	switch o {
	case OperationEncryptionHandshake:
		return "ENCRYPTION_HANDSHAKE"
	case OperationClientMessage:
		return "CLIENT_MESSAGE"
	case OperationQuery:
		return "QUERY"
	case OperationAck:
		return "ACK"
	default:
		return "UNKNOWN"
	}
}

// MessageParams carries per-message metadata for an outbound write.
type MessageParams struct {
	// Recipient identifies the logical recipient on the peer.
	Recipient string

	// Operation tags the message purpose.
	Operation OperationType
}

// MessageStream delivers discrete, already de-framed messages in arrival
// order. Implementations are provided by the BLE or accessory transport;
// this package only defines the contract the handshake depends on.
//
// Inbound messages may be delivered on a dedicated I/O goroutine distinct
// from the caller's. Writes must be applied in call order; a write failure
// is reported synchronously, never silently dropped.
type MessageStream interface {
	// WriteMessage sends a message to the peer.
	WriteMessage(data []byte, params MessageParams) error

	// SetMessageHandler registers the inbound message callback. Passing
	// nil detaches the current handler. Messages arriving while no
	// handler is registered are queued and delivered in order once one
	// is registered.
	SetMessageHandler(fn func(data []byte))

	// Close tears down the stream. Close is idempotent; writes after
	// Close fail with ErrStreamClosed.
	Close() error
}
