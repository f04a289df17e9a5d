package reconnect

import (
	"fmt"
	"unicode/utf8"

	"github.com/carlink-protocol/carlink-go/pkg/security"
	"github.com/carlink-protocol/carlink-go/pkg/transport"
)

// helperV1 runs the legacy v1 handshake: both sides exchange their
// device identifiers in the clear as raw fixed-length values. Order is
// fixed, not negotiated: this device sends first, then the car's
// identifier arrives.
type helperV1 struct {
	helperBase
	localDeviceID string
}

func newHelperV1(peripheral transport.Peripheral, cfg Config) *helperV1 {
	h := &helperV1{
		helperBase:    newHelperBase(security.VersionV1, peripheral, StateCreated, cfg.Logger),
		localDeviceID: cfg.LocalDeviceID,
	}
	// v1 needs no advertisement-derived configuration.
	h.markReady()
	return h
}

// PrepareForHandshake is a no-op for v1.
func (h *helperV1) PrepareForHandshake(advertisement []byte) error {
	return nil
}

// StartHandshake sends the local device identifier in the clear. One
// inbound message closes the loop.
func (h *helperV1) StartHandshake(stream transport.MessageStream) error {
	h.setState(StateInProgress)

	err := stream.WriteMessage([]byte(h.localDeviceID), transport.MessageParams{
		Operation: transport.OperationEncryptionHandshake,
	})
	if err != nil {
		err = fmt.Errorf("sending device id: %w", err)
		h.fail(err)
		return err
	}
	return nil
}

// HandleMessage expects the car's identifier as a raw value of the same
// fixed length as the local one. Anything else is a structural failure.
func (h *helperV1) HandleMessage(stream transport.MessageStream, message []byte) (bool, error) {
	if state, done := h.terminalState(); done {
		return state == StateCompleted, nil
	}

	if len(message) != len(h.localDeviceID) {
		err := fmt.Errorf("%w: expected %d bytes, got %d",
			ErrInvalidMessageLength, len(h.localDeviceID), len(message))
		h.fail(err)
		return false, err
	}
	if !utf8.Valid(message) {
		h.fail(ErrInvalidIdentifier)
		return false, ErrInvalidIdentifier
	}

	if !h.complete(string(message)) {
		return false, nil
	}
	return true, nil
}

// ConfigureSecureChannel needs no version-specific setup for v1.
func (h *helperV1) ConfigureSecureChannel(channel SecureChannel, stream transport.MessageStream, completion func(bool)) {
	completion(true)
}

// Compile-time interface satisfaction check.
var _ Helper = (*helperV1)(nil)
