package reconnect

import (
	"fmt"
	"unicode/utf8"

	"github.com/carlink-protocol/carlink-go/pkg/association"
	"github.com/carlink-protocol/carlink-go/pkg/log"
	"github.com/carlink-protocol/carlink-go/pkg/oob"
	"github.com/carlink-protocol/carlink-go/pkg/security"
	"github.com/carlink-protocol/carlink-go/pkg/transport"
	"github.com/carlink-protocol/carlink-go/pkg/wire"
)

// helperV4 runs the v4 handshake: like v2/v3 it resolves the car from
// the salted advertisement, but every identity-bearing payload is
// encrypted under the out-of-band token. If no token is obtainable the
// handshake fails before any identity bytes are transmitted; there is
// no fallback to an unencrypted path.
type helperV4 struct {
	helperBase
	localDeviceID string
	registry      *association.Manager
	provider      oob.TokenProvider

	pendingCarID string
	token        oob.Token
}

func newHelperV4(peripheral transport.Peripheral, cfg Config) *helperV4 {
	return &helperV4{
		helperBase:    newHelperBase(security.VersionV4, peripheral, StateAwaitingReadiness, cfg.Logger),
		localDeviceID: cfg.LocalDeviceID,
		registry:      cfg.Registry,
		provider:      cfg.TokenProvider,
	}
}

// PrepareForHandshake resolves the salted advertisement against the
// registry, same as v2/v3.
func (h *helperV4) PrepareForHandshake(advertisement []byte) error {
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

// StartHandshake requests the out-of-band token first; the identity
// message goes out only once a token is in hand. The provider may
// resolve asynchronously, in which case StartHandshake returns before
// the first write.
func (h *helperV4) StartHandshake(stream transport.MessageStream) error {
	if !h.IsReadyForHandshake() {
		return ErrNotReady
	}
	h.setState(StateInProgress)

	h.logger.Log(log.NewTokenEvent("requested"))
	h.provider.RequestToken(func(token oob.Token) {
		if token == nil {
			h.logger.Log(log.NewTokenEvent("missing"))
			h.fail(ErrNoOutOfBandToken)
			return
		}
		h.logger.Log(log.NewTokenEvent("resolved"))

		h.mu.Lock()
		h.token = token
		h.mu.Unlock()

		h.sendIdentity(stream, token)
	})

	// Surface a synchronously resolved failure to the caller.
	if h.State() == StateFailed {
		return h.Err()
	}
	return nil
}

// sendIdentity encrypts the local device id under the token and sends
// it as the opening identity message.
func (h *helperV4) sendIdentity(stream transport.MessageStream, token oob.Token) {
	sealed, err := token.Encrypt([]byte(h.localDeviceID))
	if err != nil {
		h.fail(err)
		return
	}

	payload, err := wire.Marshal(&wire.EncryptedIdentity{
		MsgType: wire.MsgEncryptedIdentity,
		Payload: sealed,
	})
	if err != nil {
		h.fail(err)
		return
	}

	err = stream.WriteMessage(payload, transport.MessageParams{
		Operation: transport.OperationEncryptionHandshake,
	})
	if err != nil {
		h.fail(fmt.Errorf("sending identity: %w", err))
	}
}

// HandleMessage expects the car's identity encrypted under the token.
// Undersized frames, bad nonces, and tag mismatches are all fatal; no
// partially trusted identity ever escapes.
func (h *helperV4) HandleMessage(stream transport.MessageStream, message []byte) (bool, error) {
	if state, done := h.terminalState(); done {
		return state == StateCompleted, nil
	}

	h.mu.Lock()
	token := h.token
	pending := h.pendingCarID
	h.mu.Unlock()

	if token == nil {
		h.fail(ErrNoOutOfBandToken)
		return false, ErrNoOutOfBandToken
	}

	msg, err := wire.DecodeMessage(message)
	if err != nil {
		h.fail(err)
		return false, err
	}
	identity, ok := msg.(*wire.EncryptedIdentity)
	if !ok {
		err := fmt.Errorf("%w: unexpected message %T", wire.ErrInvalidMessage, msg)
		h.fail(err)
		return false, err
	}

	plaintext, err := token.Decrypt(identity.Payload)
	if err != nil {
		h.fail(err)
		return false, err
	}
	if len(plaintext) == 0 || !utf8.Valid(plaintext) {
		h.fail(ErrInvalidIdentifier)
		return false, ErrInvalidIdentifier
	}

	carID := string(plaintext)
	if carID != pending {
		h.fail(ErrIdentityMismatch)
		return false, ErrIdentityMismatch
	}

	if !h.complete(carID) {
		return false, nil
	}
	return true, nil
}

// ConfigureSecureChannel installs the token as the channel's initial
// key material on top of the version configuration.
func (h *helperV4) ConfigureSecureChannel(channel SecureChannel, stream transport.MessageStream, completion func(bool)) {
	h.mu.Lock()
	token := h.token
	h.mu.Unlock()

	if token == nil {
		completion(false)
		return
	}
	if err := channel.ApplyVersion(h.version); err != nil {
		completion(false)
		return
	}
	if err := channel.InstallToken(token); err != nil {
		completion(false)
		return
	}
	completion(true)
}

// Compile-time interface satisfaction check.
var _ Helper = (*helperV4)(nil)
