package reconnect

import (
	"fmt"
	"unicode/utf8"

	"github.com/carlink-protocol/carlink-go/pkg/association"
	"github.com/carlink-protocol/carlink-go/pkg/security"
	"github.com/carlink-protocol/carlink-go/pkg/transport"
	"github.com/carlink-protocol/carlink-go/pkg/wire"
)

// helperV2 runs the shared v2/v3 handshake: the car advertises a salted
// digest of its identifier, the helper resolves it against the registry
// before any message flows, and identity confirmation travels as an
// encrypted-identity message over the already-secured stream. v2 and v3
// differ only in downstream secure-channel configuration, not handshake
// shape, so one type serves both.
type helperV2 struct {
	helperBase
	localDeviceID string
	registry      *association.Manager

	// pendingCarID is resolved from the advertisement and confirmed by
	// the peer's identity message.
	pendingCarID string
}

func newHelperV2(v security.Version, peripheral transport.Peripheral, cfg Config) *helperV2 {
	return &helperV2{
		helperBase:    newHelperBase(v, peripheral, StateAwaitingReadiness, cfg.Logger),
		localDeviceID: cfg.LocalDeviceID,
		registry:      cfg.Registry,
	}
}

// PrepareForHandshake resolves the salted advertisement against the
// registry. Malformed data fails synchronously; an unknown car means
// this is not a reconnection and the caller must associate first.
func (h *helperV2) PrepareForHandshake(advertisement []byte) error {
	carID, err := resolveSaltedAdvertisement(advertisement, h.registry.Identifiers())
	if err != nil {
		h.fail(err)
		return err
	}

	h.mu.Lock()
	h.pendingCarID = carID
	h.mu.Unlock()

	h.markReady()
	return nil
}

// StartHandshake announces the supported version range, prompting the
// car to disclose its identity.
func (h *helperV2) StartHandshake(stream transport.MessageStream) error {
	if !h.IsReadyForHandshake() {
		return ErrNotReady
	}
	h.setState(StateInProgress)

	challenge, err := wire.Marshal(&wire.VersionExchange{
		MsgType:    wire.MsgVersionExchange,
		MinVersion: uint8(h.version),
		MaxVersion: uint8(h.version),
	})
	if err != nil {
		h.fail(err)
		return err
	}

	err = stream.WriteMessage(challenge, transport.MessageParams{
		Operation: transport.OperationEncryptionHandshake,
	})
	if err != nil {
		err = fmt.Errorf("sending identity challenge: %w", err)
		h.fail(err)
		return err
	}
	return nil
}

// HandleMessage expects the car's encrypted-identity message and checks
// the disclosed identifier against the one the advertisement resolved.
func (h *helperV2) HandleMessage(stream transport.MessageStream, message []byte) (bool, error) {
	if state, done := h.terminalState(); done {
		return state == StateCompleted, nil
	}

	carID, err := h.decodeIdentity(message)
	if err != nil {
		h.fail(err)
		return false, err
	}

	h.mu.Lock()
	pending := h.pendingCarID
	h.mu.Unlock()

	if carID != pending {
		h.fail(ErrIdentityMismatch)
		return false, ErrIdentityMismatch
	}

	if !h.complete(carID) {
		return false, nil
	}
	return true, nil
}

// decodeIdentity extracts the car identifier from an inbound
// encrypted-identity message. The stream is the secured channel for
// v2/v3, so the payload is the identifier itself.
func (h *helperV2) decodeIdentity(message []byte) (string, error) {
	msg, err := wire.DecodeMessage(message)
	if err != nil {
		return "", err
	}
	identity, ok := msg.(*wire.EncryptedIdentity)
	if !ok {
		return "", fmt.Errorf("%w: unexpected message %T", wire.ErrInvalidMessage, msg)
	}
	if len(identity.Payload) == 0 || !utf8.Valid(identity.Payload) {
		return "", ErrInvalidIdentifier
	}
	return string(identity.Payload), nil
}

// ConfigureSecureChannel applies the version-specific channel
// configuration; v2 and v3 diverge here, not in the handshake.
func (h *helperV2) ConfigureSecureChannel(channel SecureChannel, stream transport.MessageStream, completion func(bool)) {
	if err := channel.ApplyVersion(h.version); err != nil {
		completion(false)
		return
	}
	completion(true)
}

// Compile-time interface satisfaction check.
var _ Helper = (*helperV2)(nil)
