package log

import (
	"time"
)

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID uniquely identifies the handshake session (UUID).
	SessionID string `cbor:"2,keyasint,omitempty"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// PeripheralID is the transport-level peer identifier.
	PeripheralID string `cbor:"6,keyasint,omitempty"`

	// CarID is the verified car identifier (populated after handshake success).
	CarID string `cbor:"7,keyasint,omitempty"`

	// SecurityVersion is the negotiated version name ("V1".."V4").
	SecurityVersion string `cbor:"8,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"9,keyasint,omitempty"`  // Transport layer
	StateChange *StateChangeEvent `cbor:"10,keyasint,omitempty"` // Handshake/session state
	Token       *TokenEvent       `cbor:"11,keyasint,omitempty"` // OOB token lifecycle
	Error       *ErrorEventData   `cbor:"12,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
	// DirectionNone indicates an event with no message flow.
	DirectionNone Direction = 2
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	case DirectionNone:
		return "NONE"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerTransport is the message stream layer (raw payload bytes).
	LayerTransport Layer = 0
	// LayerHandshake is the reconnection handshake layer.
	LayerHandshake Layer = 1
	// LayerSession is the session lifecycle layer.
	LayerSession Layer = 2
	// LayerToken is the out-of-band token layer.
	LayerToken Layer = 3
	// LayerRegistry is the associated-cars registry layer.
	LayerRegistry Layer = 4
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerHandshake:
		return "HANDSHAKE"
	case LayerSession:
		return "SESSION"
	case LayerToken:
		return "TOKEN"
	case LayerRegistry:
		return "REGISTRY"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a protocol message.
	CategoryMessage Category = 0
	// CategoryState indicates a state change.
	CategoryState Category = 1
	// CategoryToken indicates an OOB token lifecycle event.
	CategoryToken Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryState:
		return "STATE"
	case CategoryToken:
		return "TOKEN"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures a message payload at the transport layer.
type FrameEvent struct {
	// Size is the payload size in bytes.
	Size int `cbor:"1,keyasint"`

	// Operation is the operation tag of the message, if known.
	Operation string `cbor:"2,keyasint,omitempty"`
}

// StateChangeEvent captures a handshake or session state transition.
type StateChangeEvent struct {
	// Entity names what changed state ("handshake", "session", "provider").
	Entity string `cbor:"1,keyasint"`

	// OldState is the previous state name.
	OldState string `cbor:"2,keyasint"`

	// NewState is the new state name.
	NewState string `cbor:"3,keyasint"`

	// Reason provides context for the transition, if any.
	Reason string `cbor:"4,keyasint,omitempty"`
}

// TokenEvent captures an out-of-band token lifecycle event.
type TokenEvent struct {
	// Action is what happened ("requested", "resolved", "missing", "reset").
	Action string `cbor:"1,keyasint"`
}

// ErrorEventData captures an error at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Context describes the operation that failed.
	Context string `cbor:"2,keyasint,omitempty"`

	// Message is the error text.
	Message string `cbor:"3,keyasint"`
}

// NewStateChangeEvent builds a state-change event with the current time.
func NewStateChangeEvent(layer Layer, entity, oldState, newState, reason string) Event {
	return Event{
		Timestamp: time.Now(),
		Direction: DirectionNone,
		Layer:     layer,
		Category:  CategoryState,
		StateChange: &StateChangeEvent{
			Entity:   entity,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	}
}

// NewTokenEvent builds a token lifecycle event with the current time.
func NewTokenEvent(action string) Event {
	return Event{
		Timestamp: time.Now(),
		Direction: DirectionNone,
		Layer:     LayerToken,
		Category:  CategoryToken,
		Token:     &TokenEvent{Action: action},
	}
}

// NewErrorEvent builds an error event with the current time.
func NewErrorEvent(layer Layer, context string, err error) Event {
	return Event{
		Timestamp: time.Now(),
		Direction: DirectionNone,
		Layer:     layer,
		Category:  CategoryError,
		Error: &ErrorEventData{
			Layer:   layer,
			Context: context,
			Message: err.Error(),
		},
	}
}
